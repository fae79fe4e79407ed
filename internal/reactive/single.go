package reactive

import (
	"context"
	"log/slog"
	"sync"
)

// Single is a stream that terminates with exactly one value or one error.
//
// The first upstream value is delivered and immediately followed by
// completion; the upstream is cancelled and later values are dropped. An
// upstream error before any value is propagated. An upstream that completes
// without a value is a programming error: the subscriber receives an
// EmptySequenceError, it is logged at error level, and builds tagged
// bgrealm_debug panic.
type Single[T any] struct {
	upstream Observable[T]
	op       string
}

// AsSingle wraps o. op labels log lines and EmptySequenceError.
func AsSingle[T any](op string, o Observable[T]) Single[T] {
	return Single[T]{upstream: o, op: op}
}

// FromFunc returns a Single that runs fn on s once subscribed. fn is skipped
// if the subscription is cancelled before s gets to it.
func FromFunc[T any](op string, s Scheduler, fn func() (T, error)) Single[T] {
	return AsSingle(op, NewObservable(func(e *Emitter[T]) func() {
		s.Schedule(func() {
			if e.Done() {
				return
			}
			v, err := fn()
			if err != nil {
				e.Error(err)
				return
			}
			e.Next(v)
			e.Complete()
		})
		return nil
	}))
}

// Observable exposes the Single as a stream with the one-value guarantee
// applied, for composing with Map, FlatMap and ReceiveOn.
func (s Single[T]) Observable() Observable[T] {
	return NewObservable(func(e *Emitter[T]) func() {
		var (
			mu  sync.Mutex
			got bool
		)
		sub := s.upstream.Subscribe(Observer[T]{
			Next: func(v T) {
				mu.Lock()
				if got {
					mu.Unlock()
					return
				}
				got = true
				mu.Unlock()

				e.Next(v)
				e.Complete()
			},
			Error: func(err error) {
				mu.Lock()
				first := !got
				got = true
				mu.Unlock()
				if first {
					e.Error(err)
				}
			},
			Complete: func() {
				mu.Lock()
				empty := !got
				got = true
				mu.Unlock()
				if empty {
					s.reportEmpty(e)
				}
			},
		})

		// Teardown runs once, so the upstream is cancelled exactly once.
		return sub.Cancel
	})
}

func (s Single[T]) reportEmpty(e *Emitter[T]) {
	err := &EmptySequenceError{Op: s.op}
	slog.Error("single completed without a value",
		"op", s.op,
		"event", "empty_sequence",
	)
	if panicOnEmptySequence {
		panic(err)
	}
	e.Error(err)
}

// Subscribe delivers the outcome to exactly one of onSuccess or onError.
func (s Single[T]) Subscribe(onSuccess func(T), onError func(error)) *Subscription {
	return s.Observable().Subscribe(Observer[T]{
		Next:  onSuccess,
		Error: onError,
	})
}

// Await subscribes and blocks until the outcome arrives or ctx ends. On
// ctx expiry the subscription is cancelled and ctx.Err() returned.
func (s Single[T]) Await(ctx context.Context) (T, error) {
	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	sub := s.Subscribe(
		func(v T) { ch <- result{v: v} },
		func(err error) { ch <- result{err: err} },
	)

	select {
	case r := <-ch:
		return r.v, r.err
	case <-ctx.Done():
		sub.Cancel()
		var zero T
		return zero, ctx.Err()
	}
}

// MapSingle transforms the value of s with f.
func MapSingle[T, U any](s Single[T], f func(T) (U, error)) Single[U] {
	return AsSingle(s.op, TryMap(s.Observable(), f))
}

// Then chains a follow-up Single onto the value of s.
func Then[T, U any](s Single[T], f func(T) Single[U]) Single[U] {
	return AsSingle(s.op, FlatMap(s.Observable(), func(v T) Observable[U] {
		return f(v).Observable()
	}))
}
