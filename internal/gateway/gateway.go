package gateway

import (
	"context"
	"errors"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/AppleFlash/BackgroundRealm/internal/query"
	"github.com/AppleFlash/BackgroundRealm/internal/reactive"
	"github.com/AppleFlash/BackgroundRealm/internal/record"
	"github.com/AppleFlash/BackgroundRealm/internal/store"
	"github.com/AppleFlash/BackgroundRealm/internal/worker"
)

// DefaultListenName is the worker name subscriptions start under.
const DefaultListenName = "listen"

// Decoder maps a stored object to a domain value.
type Decoder[T any] func(record.Object) (T, error)

// Encoder maps a domain value to the object to store.
type Encoder[T any] func(T) (record.Object, error)

// Config configures New.
type Config struct {
	// Open yields the store. Required.
	Open store.Opener

	// Regular runs point operations and every subscriber callback. It must
	// be serial. Nil means a SerialQueue owned by the gateway.
	Regular reactive.Scheduler

	// Pool hosts store observers. Nil means a pool owned by the gateway.
	Pool *worker.Pool

	// ListenName is the worker name subscriptions request.
	ListenName string

	// Logger receives gateway diagnostics. Nil means slog.Default().
	Logger *slog.Logger

	// Registerer receives gateway metrics, and pool metrics for an owned
	// pool. Nil disables registration.
	Registerer prometheus.Registerer
}

// Gateway is the persistence gateway. Safe for concurrent use.
type Gateway struct {
	open       store.Opener
	regular    reactive.Scheduler
	listenName string
	pool       *worker.Pool
	logger     *slog.Logger
	metrics    *metrics

	ownedRegular *reactive.SerialQueue
	ownedPool    bool
}

// New creates a Gateway.
func New(cfg Config) (*Gateway, error) {
	if cfg.Open == nil {
		return nil, errors.New("gateway: Config.Open is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	g := &Gateway{
		open:       cfg.Open,
		regular:    cfg.Regular,
		listenName: cfg.ListenName,
		pool:       cfg.Pool,
		logger:     logger,
		metrics:    newMetrics(),
	}
	if g.listenName == "" {
		g.listenName = DefaultListenName
	}
	if cfg.Registerer != nil {
		if err := g.metrics.register(cfg.Registerer); err != nil {
			return nil, err
		}
	}
	if g.pool == nil {
		opts := []worker.Option{worker.WithLogger(logger)}
		if cfg.Registerer != nil {
			opts = append(opts, worker.WithRegisterer(cfg.Registerer))
		}
		pool, err := worker.NewPool(opts...)
		if err != nil {
			return nil, err
		}
		g.pool = pool
		g.ownedPool = true
	}
	if g.regular == nil {
		g.ownedRegular = reactive.NewSerialQueue("regular", logger)
		g.regular = g.ownedRegular
	}
	return g, nil
}

// Close shuts down the pool and regular queue the gateway created. Injected
// ones are left to their owner. The store is not closed.
func (g *Gateway) Close() {
	if g.ownedPool {
		g.pool.Shutdown()
	}
	if g.ownedRegular != nil {
		g.ownedRegular.Close()
	}
}

// Regular returns the gateway's regular execution context.
func (g *Gateway) Regular() reactive.Scheduler { return g.regular }

// point returns a Single running fn against the store on the regular
// context.
func point[T any](g *Gateway, op string, fn func(ctx context.Context, s *store.Store) (T, error)) reactive.Single[T] {
	return pointOn(context.Background(), g, op, g.regular, fn)
}

func pointOn[T any](ctx context.Context, g *Gateway, op string, sched reactive.Scheduler, fn func(ctx context.Context, s *store.Store) (T, error)) reactive.Single[T] {
	return reactive.FromFunc(op, sched, func() (T, error) {
		s, err := g.open(ctx)
		if err != nil {
			g.finish(op, err)
			var zero T
			return zero, err
		}
		v, err := fn(ctx, s)
		g.finish(op, err)
		return v, err
	})
}

func (g *Gateway) finish(op string, err error) {
	g.metrics.observe(op, err)
	if err != nil {
		g.logger.Debug("gateway operation failed", "op", op, "error", err)
		return
	}
	g.logger.Debug("gateway operation done", "op", op)
}

// Get returns the last record matching q, or nil when nothing matches.
func Get[T any](g *Gateway, q query.Query, dec Decoder[T]) reactive.Single[*T] {
	return point(g, "get", func(ctx context.Context, s *store.Store) (*T, error) {
		recs, err := s.Query(ctx, q)
		if err != nil {
			return nil, err
		}
		if len(recs) == 0 {
			return nil, nil
		}
		v, err := dec(recs[len(recs)-1].Body)
		if err != nil {
			return nil, err
		}
		return &v, nil
	})
}

// GetArray returns every record matching q.
func GetArray[T any](g *Gateway, q query.Query, dec Decoder[T]) reactive.Single[[]T] {
	return point(g, "get_array", func(ctx context.Context, s *store.Store) ([]T, error) {
		recs, err := s.Query(ctx, q)
		if err != nil {
			return nil, err
		}
		return decodeAll(recs, dec)
	})
}

// Count returns the number of records matching q.
func (g *Gateway) Count(q query.Query) reactive.Single[int] {
	return point(g, "count", func(ctx context.Context, s *store.Store) (int, error) {
		return s.Count(ctx, q)
	})
}

// Delete removes every record matching q.
func (g *Gateway) Delete(q query.Query) reactive.Single[struct{}] {
	return point(g, "delete", func(ctx context.Context, s *store.Store) (struct{}, error) {
		err := s.Update(ctx, func(ctx context.Context, tx *store.Tx) error {
			_, err := tx.Delete(ctx, q)
			return err
		})
		return struct{}{}, err
	})
}

// Save writes obj as a record of kind. Keyless kinds always append.
func Save[T any](g *Gateway, kind string, obj T, enc Encoder[T], policy store.UpdatePolicy) reactive.Single[struct{}] {
	return saveAll(g, "save", kind, []T{obj}, enc, policy)
}

// SaveAll writes objs as records of kind in one transaction.
func SaveAll[T any](g *Gateway, kind string, objs []T, enc Encoder[T], policy store.UpdatePolicy) reactive.Single[struct{}] {
	return saveAll(g, "save_all", kind, objs, enc, policy)
}

func saveAll[T any](g *Gateway, op, kind string, objs []T, enc Encoder[T], policy store.UpdatePolicy) reactive.Single[struct{}] {
	return point(g, op, func(ctx context.Context, s *store.Store) (struct{}, error) {
		bodies := make([]record.Object, len(objs))
		for i, obj := range objs {
			body, err := enc(obj)
			if err != nil {
				return struct{}{}, err
			}
			bodies[i] = body
		}
		err := s.Update(ctx, func(ctx context.Context, tx *store.Tx) error {
			for _, body := range bodies {
				if err := tx.Save(ctx, kind, body, policy); err != nil {
					return err
				}
			}
			return nil
		})
		return struct{}{}, err
	})
}

// UpdateAction runs fn in one write transaction.
//
// When ctx already carries a transaction (UpdateAction called from inside
// another transaction closure), fn runs inline on the calling goroutine and
// joins that transaction. Otherwise it runs on the regular context.
func (g *Gateway) UpdateAction(ctx context.Context, fn func(ctx context.Context, tx *store.Tx) error) reactive.Single[struct{}] {
	sched := g.regular
	if store.HasTransaction(ctx) {
		sched = reactive.Immediate
	}
	return pointOn(ctx, g, "update_action", sched, func(ctx context.Context, s *store.Store) (struct{}, error) {
		return struct{}{}, s.Update(ctx, fn)
	})
}

// DeleteAll synchronously removes every record. Meant for tests and
// teardown.
func (g *Gateway) DeleteAll(ctx context.Context) error {
	s, err := g.open(ctx)
	if err != nil {
		return err
	}
	err = s.DeleteAll(ctx)
	g.finish("delete_all", err)
	return err
}

func decodeAll[T any](recs []store.Record, dec Decoder[T]) ([]T, error) {
	out := make([]T, len(recs))
	for i, r := range recs {
		v, err := dec(r.Body)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
