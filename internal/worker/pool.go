package worker

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
)

// Pool tracks workers in an explicit table keyed by worker id and hands out
// reference-counted Handles.
//
// The composition root owns one Pool per process; tests build their own.
// All bookkeeping happens under one mutex.
type Pool struct {
	mu      sync.Mutex
	workers map[uint64]*Worker
	nextID  uint64

	perName  bool
	nameFunc func(string) string
	logger   *slog.Logger
	metrics  *metrics
}

// Option configures a Pool.
type Option func(*poolConfig)

type poolConfig struct {
	logger     *slog.Logger
	registerer prometheus.Registerer
	perName    bool
	nameFunc   func(string) string
}

// WithLogger sets the pool's logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *poolConfig) { c.logger = l }
}

// WithRegisterer registers the pool's metrics on reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(c *poolConfig) { c.registerer = reg }
}

// WithPerNameIsolation makes Start reuse only executing workers started
// under the same name.
func WithPerNameIsolation() Option {
	return func(c *poolConfig) { c.perName = true }
}

// WithNameFunc overrides how worker identities are derived from the
// requested name. Default: name + "-" + a random UUID.
func WithNameFunc(f func(name string) string) Option {
	return func(c *poolConfig) { c.nameFunc = f }
}

func defaultName(name string) string {
	return name + "-" + uuid.NewString()
}

// NewPool creates an empty pool. It returns an error only when metric
// registration fails.
func NewPool(opts ...Option) (*Pool, error) {
	cfg := poolConfig{
		logger:   slog.Default(),
		nameFunc: defaultName,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	m := newMetrics()
	if cfg.registerer != nil {
		if err := m.register(cfg.registerer); err != nil {
			return nil, err
		}
	}

	return &Pool{
		workers:  make(map[uint64]*Worker),
		perName:  cfg.perName,
		nameFunc: cfg.nameFunc,
		logger:   cfg.logger,
		metrics:  m,
	}, nil
}

// Start attaches one operation to a worker and schedules work on it.
//
// Under the pool lock it prunes workers that are no longer executing,
// reuses an executing worker if there is one, or creates and starts a new
// worker. The worker's reference count is incremented and work (if non-nil)
// is queued asynchronously. The returned Handle must be stopped exactly
// when the operation ends.
func (p *Pool) Start(name string, work func()) *Handle {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.prune()

	w := p.reusable(name)
	if w == nil {
		w = p.spawn(name)
	}
	w.refs++
	p.metrics.operations.Inc()

	p.logger.Debug("worker operation started",
		"worker", w.name,
		"requested", name,
		"refs", w.refs,
	)

	if work != nil {
		w.schedule(work)
	}
	return &Handle{pool: p, worker: w}
}

// Len returns the number of workers currently tracked. Dead workers stay
// tracked until the next Start prunes them.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.workers)
}

// Shutdown cancels every executing worker regardless of its reference
// count and waits for all of them to exit. Outstanding handles become
// no-ops.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	workers := make([]*Worker, 0, len(p.workers))
	for id, w := range p.workers {
		if w.State() == StateExecuting {
			p.metrics.operations.Sub(float64(w.refs))
			w.refs = 0
			w.cancel()
		}
		workers = append(workers, w)
		delete(p.workers, id)
	}
	p.mu.Unlock()

	for _, w := range workers {
		_ = w.Wait()
	}
	p.logger.Info("worker pool shut down", "workers", len(workers))
}

// prune drops entries whose worker is no longer executing. Caller holds mu.
func (p *Pool) prune() {
	for id, w := range p.workers {
		if w.State() != StateExecuting {
			delete(p.workers, id)
		}
	}
}

// reusable returns an executing worker eligible for name. Caller holds mu.
func (p *Pool) reusable(name string) *Worker {
	for _, w := range p.workers {
		if p.perName && w.baseName != name {
			continue
		}
		if w.State() == StateExecuting {
			return w
		}
	}
	return nil
}

// spawn creates, registers and starts a worker. Caller holds mu.
func (p *Pool) spawn(name string) *Worker {
	p.nextID++
	w := newWorker(p.nextID, name, p.nameFunc(name), p.logger, p.metrics)
	p.workers[w.id] = w
	p.metrics.created.Inc()
	w.start()
	return w
}

// release drops one reference from w and cancels it at zero.
func (p *Pool) release(w *Worker) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if w.refs == 0 {
		// Clamped; the worker was already cancelled.
		p.logger.Warn("worker release below zero ignored", "worker", w.name)
		return
	}
	w.refs--
	p.metrics.operations.Dec()

	p.logger.Debug("worker operation stopped", "worker", w.name, "refs", w.refs)

	if w.refs == 0 && w.State() == StateExecuting {
		w.cancel()
	}
}

// Handle is one operation's reference to a worker. It is also a
// reactive.Scheduler that runs tasks on that worker.
type Handle struct {
	pool   *Pool
	worker *Worker
	once   sync.Once
}

// Stop releases the operation's reference. The last Stop on a worker
// cancels it. Stop is idempotent.
func (h *Handle) Stop() {
	h.once.Do(func() {
		h.pool.release(h.worker)
	})
}

// Schedule queues fn on the handle's worker. Tasks scheduled after the
// worker was cancelled are dropped.
func (h *Handle) Schedule(fn func()) {
	h.worker.schedule(fn)
}

// Worker returns the worker backing h.
func (h *Handle) Worker() *Worker { return h.worker }
