package reactive

import "sync"

// TaskQueue is a thread-safe, unbounded FIFO of tasks.
//
// It never blocks producers: a notification fired from inside a task may
// enqueue more work on the same queue without deadlocking the consumer.
//
// Consumers pair TryDequeue with Wait for context-aware waiting:
//
//	for {
//	    if fn, ok := q.TryDequeue(); ok {
//	        fn()
//	        continue
//	    }
//	    select {
//	    case <-ctx.Done():
//	        return
//	    case <-q.Wait():
//	    }
//	}
type TaskQueue struct {
	mu     sync.Mutex
	tasks  []func()
	closed bool
	signal chan struct{} // buffered, size 1; closed on Close
}

// NewTaskQueue creates an empty queue.
func NewTaskQueue() *TaskQueue {
	return &TaskQueue{
		tasks:  make([]func(), 0, 16),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue appends fn. Returns false if the queue is closed.
func (q *TaskQueue) Enqueue(fn func()) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.tasks = append(q.tasks, fn)

	// Buffer of 1 coalesces signals.
	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// TryDequeue removes the front task without blocking.
func (q *TaskQueue) TryDequeue() (func(), bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.tasks) == 0 {
		return nil, false
	}
	fn := q.tasks[0]
	// Drop the reference so captured state can be collected.
	q.tasks[0] = nil
	if len(q.tasks) == 1 {
		q.tasks = q.tasks[:0]
	} else {
		q.tasks = q.tasks[1:]
	}
	return fn, true
}

// Dequeue blocks until a task is available. It returns (nil, false) once the
// queue is closed and drained.
func (q *TaskQueue) Dequeue() (func(), bool) {
	for {
		if fn, ok := q.TryDequeue(); ok {
			return fn, true
		}
		if q.Drained() {
			return nil, false
		}
		<-q.signal
	}
}

// Wait returns a channel that fires when tasks may be available. It is
// closed once the queue is closed.
func (q *TaskQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the number of pending tasks.
func (q *TaskQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// Drained reports whether the queue is closed and has no pending tasks.
func (q *TaskQueue) Drained() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed && len(q.tasks) == 0
}

// Close rejects further tasks and wakes every waiter. Pending tasks stay
// dequeueable. Close is idempotent.
func (q *TaskQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}
