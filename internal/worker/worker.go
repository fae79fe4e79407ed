package worker

import (
	"log/slog"
	"runtime"
	"sync"

	"gopkg.in/tomb.v2"

	"github.com/AppleFlash/BackgroundRealm/internal/reactive"
)

// Worker is a dedicated background execution context: one goroutine locked
// to its OS thread running queued tasks in FIFO order.
//
// Workers are created and cancelled by a Pool. Schedule work through a
// Handle.
type Worker struct {
	id       uint64
	name     string
	baseName string

	tomb  tomb.Tomb
	queue *reactive.TaskQueue

	mu    sync.Mutex
	state State

	// refs is guarded by the owning pool's mutex.
	refs uint

	logger  *slog.Logger
	metrics *metrics
}

func newWorker(id uint64, baseName, name string, logger *slog.Logger, m *metrics) *Worker {
	return &Worker{
		id:       id,
		name:     name,
		baseName: baseName,
		queue:    reactive.NewTaskQueue(),
		state:    StateWaiting,
		logger:   logger.With("worker", name),
		metrics:  m,
	}
}

// Name returns the worker's identity: the requested name plus a unique
// suffix.
func (w *Worker) Name() string { return w.name }

// State returns the current lifecycle state.
func (w *Worker) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Wait blocks until the worker's goroutine has exited.
func (w *Worker) Wait() error {
	return w.tomb.Wait()
}

// Dead returns a channel closed once the worker's goroutine has exited.
func (w *Worker) Dead() <-chan struct{} {
	return w.tomb.Dead()
}

func (w *Worker) transition(to State) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.state.canTransition(to) {
		panic(&InvalidWorkerStateError{Worker: w.name, From: w.state, To: to})
	}
	w.logger.Debug("worker state", "from", w.state.String(), "to", to.String())
	w.state = to
}

// start launches the loop. Starting a worker twice panics.
func (w *Worker) start() {
	w.transition(StateExecuting)
	w.metrics.live.Inc()
	w.tomb.Go(w.loop)
}

// cancel asks the loop to exit after the task it is currently running.
// Tasks still queued are discarded.
func (w *Worker) cancel() {
	w.transition(StateCancelled)
	w.queue.Close()
	w.tomb.Kill(nil)
}

func (w *Worker) schedule(fn func()) bool {
	if !w.queue.Enqueue(fn) {
		w.logger.Warn("task dropped: worker no longer executing", "state", w.State().String())
		return false
	}
	return true
}

func (w *Worker) loop() error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	w.logger.Info("worker started")
	defer func() {
		dropped := w.queue.Len()
		w.transition(StateFinished)
		w.metrics.live.Dec()
		w.logger.Info("worker finished", "dropped_tasks", dropped)
	}()

	for {
		// Cancellation is checked between iterations.
		select {
		case <-w.tomb.Dying():
			return nil
		default:
		}

		if fn, ok := w.queue.TryDequeue(); ok {
			fn()
			w.metrics.tasks.Inc()
			continue
		}

		select {
		case <-w.tomb.Dying():
			return nil
		case <-w.queue.Wait():
		}
	}
}
