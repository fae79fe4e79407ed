package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/AppleFlash/BackgroundRealm/internal/querysql"
	"github.com/AppleFlash/BackgroundRealm/internal/schema"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - Empty database
// 1 - records table
const currentSchemaVersion = 1

// Config configures Open.
type Config struct {
	// Path is the database file. ":memory:" opens a private in-memory
	// database.
	Path string

	// Schema lists the known kinds. Nil means schema.Default().
	Schema *schema.Schema

	// BusyTimeout bounds how long a statement waits for a lock.
	BusyTimeout time.Duration

	// Synchronous is the PRAGMA synchronous level.
	Synchronous string

	// Logger receives store diagnostics. Nil means slog.Default().
	Logger *slog.Logger
}

// DefaultConfig returns a Config for path with the default pragmas.
func DefaultConfig(path string) Config {
	return Config{
		Path:        path,
		BusyTimeout: 5 * time.Second,
		Synchronous: "NORMAL",
	}
}

// Store is a SQLite-backed object store with change observers.
// Safe for concurrent use.
type Store struct {
	db       *sql.DB
	path     string
	schema   *schema.Schema
	compiler *querysql.Compiler
	clock    *Clock
	logger   *slog.Logger

	mu        sync.Mutex
	observers map[uint64]*observer
	nextObs   uint64
	closed    bool
}

// Open creates or opens the database described by cfg.
// Applies required pragmas and migrations automatically.
//
// This function is idempotent - safe to call multiple times.
func Open(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, &Error{Op: "open", Err: fmt.Errorf("empty path")}
	}
	if cfg.Schema == nil {
		cfg.Schema = schema.Default()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.BusyTimeout <= 0 {
		cfg.BusyTimeout = 5 * time.Second
	}
	if cfg.Synchronous == "" {
		cfg.Synchronous = "NORMAL"
	}

	db, err := sql.Open("sqlite3", cfg.Path)
	if err != nil {
		return nil, &Error{Op: "open", Err: err}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, &Error{Op: "open", Err: fmt.Errorf("connect: %w", err)}
	}

	// SQLite only supports one writer at a time, and a private in-memory
	// database exists per connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := applyPragmas(db, cfg); err != nil {
		db.Close()
		return nil, &Error{Op: "open", Err: fmt.Errorf("apply pragmas: %w", err)}
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, &Error{Op: "open", Err: fmt.Errorf("apply schema: %w", err)}
	}

	var maxSeq int64
	if err := db.QueryRow("SELECT COALESCE(MAX(seq), 0) FROM records").Scan(&maxSeq); err != nil {
		db.Close()
		return nil, &Error{Op: "open", Err: fmt.Errorf("read seq: %w", err)}
	}

	s := &Store{
		db:        db,
		path:      cfg.Path,
		schema:    cfg.Schema,
		compiler:  querysql.NewCompiler(),
		clock:     NewClockAt(maxSeq),
		logger:    cfg.Logger.With("store", cfg.Path),
		observers: make(map[uint64]*observer),
	}
	s.logger.Debug("store opened", "seq", maxSeq)
	return s, nil
}

// Close drops every observer and closes the database.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	for id, o := range s.observers {
		o.cancelled.Store(true)
		delete(s.observers, id)
	}
	s.mu.Unlock()

	if err := s.db.Close(); err != nil {
		return &Error{Op: "close", Err: err}
	}
	return nil
}

// Path returns the database path the store was opened with.
func (s *Store) Path() string { return s.path }

// Schema returns the store's kinds.
func (s *Store) Schema() *schema.Schema { return s.schema }

// Kind looks up a kind by name.
func (s *Store) Kind(name string) (schema.Kind, error) {
	k, ok := s.schema.Kind(name)
	if !ok {
		return schema.Kind{}, fmt.Errorf("%w: %q", ErrUnknownKind, name)
	}
	return k, nil
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB, cfg Config) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		fmt.Sprintf("PRAGMA synchronous = %s", cfg.Synchronous),
		fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()),
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %q: %w", pragma, err)
		}
	}

	return nil
}

// applySchema creates tables if they don't exist and records the version.
// This function is idempotent.
func applySchema(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}
	if version > currentSchemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported %d", version, currentSchemaVersion)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}

	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}

// conn returns the transaction carried by ctx, or the database.
func (s *Store) conn(ctx context.Context) querier {
	if tx, ok := s.txFrom(ctx); ok {
		return tx.tx
	}
	return s.db
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}
