// Package worker hosts long-lived store work on dedicated, reference-counted
// background workers.
//
// A Worker is one goroutine locked to its OS thread, draining a FIFO of
// tasks until it is cancelled. A Pool hands out Handles: every Start
// increments the chosen worker's reference count and every Handle.Stop
// decrements it; the last Stop cancels the worker. Cancelled workers are
// never restarted. The next Start after a worker dies creates a fresh one.
//
// WORKER SHARING:
// By default every concurrently active caller collapses onto one shared
// worker, whatever name it asks for, as long as that worker is executing.
// This keeps all store observers on a single thread. WithPerNameIsolation
// keys reuse by name instead.
package worker
