package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/AppleFlash/BackgroundRealm/internal/query"
	"github.com/AppleFlash/BackgroundRealm/internal/record"
	"github.com/AppleFlash/BackgroundRealm/internal/schema"
)

// UpdatePolicy decides what a save does when a record with the same primary
// key already exists. Keyless kinds always append.
type UpdatePolicy int

const (
	// UpdateError fails the save with ErrDuplicateKey.
	UpdateError UpdatePolicy = iota

	// UpdateModified overwrites the record only if its body changed.
	// Unchanged records keep their stamp and raise no notification.
	UpdateModified

	// UpdateAll always overwrites and restamps the record.
	UpdateAll
)

// String returns the policy name.
func (p UpdatePolicy) String() string {
	switch p {
	case UpdateError:
		return "error"
	case UpdateModified:
		return "modified"
	case UpdateAll:
		return "all"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

type txKey struct{}

// Tx is an open write transaction. It is only valid inside the closure
// passed to Update.
type Tx struct {
	store *Store
	tx    *sql.Tx
	dirty bool
}

// Update runs fn in a write transaction and commits if fn returns nil.
//
// If ctx already carries a transaction of this store, fn joins it inline
// and the outer Update commits. Observers are notified once after a commit
// that changed rows.
func (s *Store) Update(ctx context.Context, fn func(ctx context.Context, tx *Tx) error) error {
	if tx, ok := s.txFrom(ctx); ok {
		return fn(ctx, tx)
	}

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &Error{Op: "begin", Err: err}
	}
	defer sqlTx.Rollback() // No-op if committed

	tx := &Tx{store: s, tx: sqlTx}
	if err := fn(context.WithValue(ctx, txKey{}, tx), tx); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return &Error{Op: "commit", Err: err}
	}

	if tx.dirty {
		s.notify()
	}
	return nil
}

// InTransaction reports whether ctx carries an open transaction of s.
func (s *Store) InTransaction(ctx context.Context) bool {
	_, ok := s.txFrom(ctx)
	return ok
}

// HasTransaction reports whether ctx carries an open transaction of any
// store.
func HasTransaction(ctx context.Context) bool {
	_, ok := ctx.Value(txKey{}).(*Tx)
	return ok
}

func (s *Store) txFrom(ctx context.Context) (*Tx, bool) {
	tx, ok := ctx.Value(txKey{}).(*Tx)
	if !ok || tx.store != s {
		return nil, false
	}
	return tx, true
}

// DeleteAll removes every record of every kind.
func (s *Store) DeleteAll(ctx context.Context) error {
	return s.Update(ctx, func(ctx context.Context, tx *Tx) error {
		return tx.DeleteAll(ctx)
	})
}

// Save writes obj as a record of kind under policy.
func (tx *Tx) Save(ctx context.Context, kind string, obj record.Object, policy UpdatePolicy) error {
	k, err := tx.store.Kind(kind)
	if err != nil {
		return &Error{Op: "save", Err: err}
	}
	key, err := recordKey(k, obj)
	if err != nil {
		return &Error{Op: "save " + kind, Err: err}
	}
	body, err := record.Marshal(obj)
	if err != nil {
		return &Error{Op: "save " + kind, Err: err}
	}

	stmt := `INSERT INTO records (kind, key, body, seq) VALUES (?, ?, ?, ?)`
	if k.Keyed() {
		switch policy {
		case UpdateError:
		case UpdateModified:
			stmt += ` ON CONFLICT(kind, key) DO UPDATE SET body = excluded.body, seq = excluded.seq
				WHERE records.body <> excluded.body`
		case UpdateAll:
			stmt += ` ON CONFLICT(kind, key) DO UPDATE SET body = excluded.body, seq = excluded.seq`
		default:
			return &Error{Op: "save " + kind, Err: fmt.Errorf("unknown update policy %d", int(policy))}
		}
	}

	res, err := tx.tx.ExecContext(ctx, stmt, kind, key, string(body), tx.store.clock.Next())
	if err != nil {
		if isUniqueViolation(err) {
			return &Error{Op: "save " + kind, Err: fmt.Errorf("%w: %s", ErrDuplicateKey, key)}
		}
		return &Error{Op: "save " + kind, Err: err}
	}
	return tx.touched(res)
}

// Query is Store.Query inside the transaction.
func (tx *Tx) Query(ctx context.Context, q query.Query) ([]Record, error) {
	recs, err := tx.store.query(ctx, tx.tx, q)
	if err != nil {
		return nil, &Error{Op: "query " + q.Kind, Err: err}
	}
	return recs, nil
}

// Count is Store.Count inside the transaction.
func (tx *Tx) Count(ctx context.Context, q query.Query) (int, error) {
	n, err := tx.store.count(ctx, tx.tx, q)
	if err != nil {
		return 0, &Error{Op: "count " + q.Kind, Err: err}
	}
	return n, nil
}

// Delete removes every record matching q and returns how many were removed.
func (tx *Tx) Delete(ctx context.Context, q query.Query) (int64, error) {
	if _, err := tx.store.Kind(q.Kind); err != nil {
		return 0, &Error{Op: "delete", Err: err}
	}
	stmt, args, err := tx.store.compiler.Delete(q)
	if err != nil {
		return 0, &Error{Op: "delete " + q.Kind, Err: err}
	}
	res, err := tx.tx.ExecContext(ctx, stmt, args...)
	if err != nil {
		return 0, &Error{Op: "delete " + q.Kind, Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, &Error{Op: "delete " + q.Kind, Err: err}
	}
	if n > 0 {
		tx.dirty = true
	}
	return n, nil
}

// DeleteAll removes every record of every kind.
func (tx *Tx) DeleteAll(ctx context.Context) error {
	res, err := tx.tx.ExecContext(ctx, "DELETE FROM records")
	if err != nil {
		return &Error{Op: "delete all", Err: err}
	}
	return tx.touched(res)
}

func (tx *Tx) touched(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return &Error{Op: "rows affected", Err: err}
	}
	if n > 0 {
		tx.dirty = true
	}
	return nil
}

// recordKey returns the key column value for obj.
func recordKey(k schema.Kind, obj record.Object) (string, error) {
	if !k.Keyed() {
		return uuid.NewString(), nil
	}
	v := query.Lookup(obj, k.PrimaryKey)
	switch v.(type) {
	case record.String, record.Int:
	default:
		return "", fmt.Errorf("%w: field %q", ErrMissingKey, k.PrimaryKey)
	}
	data, err := record.MarshalValue(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
