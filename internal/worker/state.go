package worker

import "fmt"

// State is the lifecycle state of a Worker.
type State int

const (
	// StateWaiting is a constructed worker whose goroutine has not started.
	StateWaiting State = iota
	// StateExecuting is a worker running its task loop.
	StateExecuting
	// StateCancelled is a worker asked to stop; its loop exits at the next
	// iteration boundary.
	StateCancelled
	// StateFinished is a worker whose goroutine has exited.
	StateFinished
)

func (s State) String() string {
	switch s {
	case StateWaiting:
		return "waiting"
	case StateExecuting:
		return "executing"
	case StateCancelled:
		return "cancelled"
	case StateFinished:
		return "finished"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// canTransition encodes the lifecycle:
//
//	Waiting -> Executing -> Cancelled -> Finished
//	           Executing -> Finished
func (s State) canTransition(to State) bool {
	switch s {
	case StateWaiting:
		return to == StateExecuting
	case StateExecuting:
		return to == StateCancelled || to == StateFinished
	case StateCancelled:
		return to == StateFinished
	default:
		return false
	}
}

// InvalidWorkerStateError is the panic value raised when a worker is driven
// through a transition its lifecycle does not allow, such as restarting a
// finished worker. It is never returned as an error.
type InvalidWorkerStateError struct {
	Worker string
	From   State
	To     State
}

func (e *InvalidWorkerStateError) Error() string {
	return fmt.Sprintf("worker %s: invalid transition %s -> %s", e.Worker, e.From, e.To)
}
