// Package testutil holds deterministic stand-ins for the schedulers and
// name generators used across the module.
package testutil

import "sync"

// ManualScheduler queues scheduled tasks until the test runs them. It
// satisfies reactive.Scheduler.
//
// Thread-safety: Schedule may be called from any goroutine. Run* methods
// execute tasks on the calling goroutine.
type ManualScheduler struct {
	mu    sync.Mutex
	tasks []func()
	ran   int
}

// NewManualScheduler creates an empty scheduler.
func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{}
}

// Schedule queues fn.
func (s *ManualScheduler) Schedule(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = append(s.tasks, fn)
}

// Pending returns the number of queued tasks.
func (s *ManualScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// Ran returns the number of tasks executed so far.
func (s *ManualScheduler) Ran() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ran
}

// RunNext runs the oldest queued task. It reports false if none was queued.
func (s *ManualScheduler) RunNext() bool {
	s.mu.Lock()
	if len(s.tasks) == 0 {
		s.mu.Unlock()
		return false
	}
	fn := s.tasks[0]
	s.tasks = s.tasks[1:]
	s.ran++
	s.mu.Unlock()

	fn()
	return true
}

// RunAll runs queued tasks, including ones they schedule, until the queue
// is empty. It returns the number of tasks run.
func (s *ManualScheduler) RunAll() int {
	n := 0
	for s.RunNext() {
		n++
	}
	return n
}
