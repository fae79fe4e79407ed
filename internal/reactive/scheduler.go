package reactive

import (
	"log/slog"
)

// Scheduler is an execution context: it decides where fn runs.
//
// Implementations must run tasks scheduled from one goroutine in FIFO order.
// Schedule never blocks on the task itself.
type Scheduler interface {
	Schedule(fn func())
}

// SchedulerFunc adapts a function to Scheduler.
type SchedulerFunc func(fn func())

// Schedule calls f(fn).
func (f SchedulerFunc) Schedule(fn func()) { f(fn) }

type immediate struct{}

func (immediate) Schedule(fn func()) { fn() }

// Immediate runs every task inline on the calling goroutine.
var Immediate Scheduler = immediate{}

// SerialQueue is a Scheduler backed by one goroutine draining an unbounded
// FIFO. Tasks never run concurrently with each other.
type SerialQueue struct {
	name   string
	queue  *TaskQueue
	done   chan struct{}
	logger *slog.Logger
}

// NewSerialQueue starts a serial queue. Call Close to stop its goroutine.
func NewSerialQueue(name string, logger *slog.Logger) *SerialQueue {
	if logger == nil {
		logger = slog.Default()
	}
	s := &SerialQueue{
		name:   name,
		queue:  NewTaskQueue(),
		done:   make(chan struct{}),
		logger: logger.With("queue", name),
	}
	go s.run()
	return s
}

// Name returns the label given at construction.
func (s *SerialQueue) Name() string { return s.name }

// Schedule enqueues fn. Tasks scheduled after Close are dropped.
func (s *SerialQueue) Schedule(fn func()) {
	if !s.queue.Enqueue(fn) {
		s.logger.Warn("task dropped: queue closed")
	}
}

// Close stops accepting tasks, runs what is already queued, and waits for
// the goroutine to exit. It must not be called from a task on this queue.
func (s *SerialQueue) Close() {
	s.queue.Close()
	<-s.done
}

func (s *SerialQueue) run() {
	defer close(s.done)
	s.logger.Debug("serial queue started")
	for {
		fn, ok := s.queue.Dequeue()
		if !ok {
			s.logger.Debug("serial queue stopped")
			return
		}
		fn()
	}
}
