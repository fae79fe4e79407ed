package cli

import (
	"context"
	"errors"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/AppleFlash/BackgroundRealm/internal/config"
	"github.com/AppleFlash/BackgroundRealm/internal/gateway"
	"github.com/AppleFlash/BackgroundRealm/internal/record"
	"github.com/AppleFlash/BackgroundRealm/internal/store"
	"github.com/AppleFlash/BackgroundRealm/internal/worker"
)

// session is an open store with a gateway in front of it, for the lifetime
// of one command.
type session struct {
	cfg     *config.Config
	store   *store.Store
	pool    *worker.Pool
	gateway *gateway.Gateway
	logger  *slog.Logger
}

// loadConfig reads the config file, if any, and applies flag overrides.
func loadConfig(opts *RootOptions) (*config.Config, error) {
	cfg := config.Default()
	if opts.ConfigPath != "" {
		loaded, err := config.Load(opts.ConfigPath)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to load config", err)
		}
		cfg = loaded
	}
	if opts.Database != "" {
		cfg.Store.Path = opts.Database
	}
	if opts.SchemaPath != "" {
		cfg.Schema = opts.SchemaPath
	}
	return cfg, nil
}

// newLogger logs to the command's stderr at the configured level, or debug
// with --verbose.
func newLogger(cmd *cobra.Command, cfg *config.Config, verbose bool) *slog.Logger {
	level := cfg.LogLevel()
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}

func openSession(cmd *cobra.Command, opts *RootOptions) (*session, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	logger := newLogger(cmd, cfg, opts.Verbose)

	storeCfg, err := cfg.StoreConfig(logger)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load schema", err)
	}
	logger.Debug("opening database", "path", storeCfg.Path)
	st, err := store.Open(storeCfg)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	poolOpts := []worker.Option{worker.WithLogger(logger)}
	if cfg.Listen.PerNameIsolation {
		poolOpts = append(poolOpts, worker.WithPerNameIsolation())
	}
	pool, err := worker.NewPool(poolOpts...)
	if err != nil {
		_ = st.Close()
		return nil, WrapExitError(ExitFailure, "failed to start workers", err)
	}

	gw, err := gateway.New(gateway.Config{
		Open:       store.Static(st),
		Pool:       pool,
		ListenName: cfg.Listen.WorkerName,
		Logger:     logger,
	})
	if err != nil {
		pool.Shutdown()
		_ = st.Close()
		return nil, WrapExitError(ExitFailure, "failed to create gateway", err)
	}

	return &session{cfg: cfg, store: st, pool: pool, gateway: gw, logger: logger}, nil
}

// Close releases the gateway, its workers and the store.
func (s *session) Close() {
	s.gateway.Close()
	s.pool.Shutdown()
	if err := s.store.Close(); err != nil {
		s.logger.Error("error closing database", "error", err)
	}
}

// withSession opens a session, runs fn and closes the session.
func withSession(cmd *cobra.Command, opts *RootOptions, fn func(ctx context.Context, s *session, out *OutputFormatter) error) error {
	out := opts.formatter(cmd)
	s, err := openSession(cmd, opts)
	if err != nil {
		return report(out, err)
	}
	defer s.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if err := fn(ctx, s, out); err != nil {
		return report(out, err)
	}
	return nil
}

// report prints err in JSON mode, where callers parse stdout, and returns
// it with an exit code attached.
func report(out *OutputFormatter, err error) error {
	if out.Format == "json" {
		_ = out.Error(ErrorCode(err), err.Error(), nil)
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return err
	}
	return WrapExitError(ExitFailure, "command failed", err)
}

func identity(obj record.Object) (record.Object, error) { return obj, nil }

var (
	objectDecoder gateway.Decoder[record.Object] = identity
	objectEncoder gateway.Encoder[record.Object] = identity
)
