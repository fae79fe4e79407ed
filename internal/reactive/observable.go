package reactive

import (
	"context"
	"sync"
)

// Observer receives the events of one subscription. Any callback may be nil.
//
// Next is called zero or more times, followed by at most one of Error or
// Complete. Nothing is delivered after a terminal event or after the
// subscription is cancelled.
type Observer[T any] struct {
	Next     func(T)
	Error    func(error)
	Complete func()
}

// Subscription is the handle returned by Subscribe.
type Subscription struct {
	once   sync.Once
	cancel func()
}

// Cancel stops delivery and releases upstream resources. Safe to call more
// than once and from any goroutine.
func (s *Subscription) Cancel() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
	})
}

// Emitter is the producer side of a subscription. It enforces the Observer
// grammar: values stop after the first terminal event or cancellation.
type Emitter[T any] struct {
	mu       sync.Mutex
	obs      Observer[T]
	done     bool
	teardown func()
}

// Next delivers v unless the subscription has terminated.
func (e *Emitter[T]) Next(v T) {
	e.mu.Lock()
	if e.done {
		e.mu.Unlock()
		return
	}
	next := e.obs.Next
	e.mu.Unlock()

	if next != nil {
		next(v)
	}
}

// Error delivers a terminal failure and tears the producer down.
func (e *Emitter[T]) Error(err error) {
	obs, ok := e.terminate()
	if !ok {
		return
	}
	if obs.Error != nil {
		obs.Error(err)
	}
	e.runTeardown()
}

// Complete delivers normal completion and tears the producer down.
func (e *Emitter[T]) Complete() {
	obs, ok := e.terminate()
	if !ok {
		return
	}
	if obs.Complete != nil {
		obs.Complete()
	}
	e.runTeardown()
}

// Done reports whether the subscription has terminated or been cancelled.
func (e *Emitter[T]) Done() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.done
}

func (e *Emitter[T]) terminate() (Observer[T], bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.done {
		return Observer[T]{}, false
	}
	e.done = true
	obs := e.obs
	e.obs = Observer[T]{}
	return obs, true
}

func (e *Emitter[T]) runTeardown() {
	e.mu.Lock()
	td := e.teardown
	e.teardown = nil
	e.mu.Unlock()
	if td != nil {
		td()
	}
}

// setTeardown installs the producer's cleanup. If the subscription already
// ended while the producer was starting, the cleanup runs right away.
func (e *Emitter[T]) setTeardown(td func()) {
	if td == nil {
		return
	}
	e.mu.Lock()
	if e.done {
		e.mu.Unlock()
		td()
		return
	}
	e.teardown = td
	e.mu.Unlock()
}

func (e *Emitter[T]) cancel() {
	e.mu.Lock()
	e.done = true
	e.obs = Observer[T]{}
	e.mu.Unlock()
	e.runTeardown()
}

// Observable is a lazily started stream of values. Nothing happens until
// Subscribe is called; each subscription runs the producer afresh.
type Observable[T any] struct {
	subscribe func(*Emitter[T]) func()
}

// NewObservable creates an Observable from a producer. The producer is
// called once per subscription and returns an optional teardown, which runs
// exactly once when the subscription terminates or is cancelled.
func NewObservable[T any](producer func(e *Emitter[T]) (teardown func())) Observable[T] {
	return Observable[T]{subscribe: producer}
}

// Subscribe starts the producer and attaches obs.
func (o Observable[T]) Subscribe(obs Observer[T]) *Subscription {
	e := &Emitter[T]{obs: obs}
	sub := &Subscription{cancel: e.cancel}
	if o.subscribe == nil {
		e.Complete()
		return sub
	}
	e.setTeardown(o.subscribe(e))
	return sub
}

// Values adapts o to channels. The value channel is closed when the stream
// ends; the error channel then yields the terminal error (nil on normal
// completion, ctx.Err() when ctx ends first) and is closed.
func (o Observable[T]) Values(ctx context.Context) (<-chan T, <-chan error) {
	out := make(chan T)
	errc := make(chan error, 1)
	stop := make(chan struct{})

	var mu sync.Mutex
	finished := false
	finish := func(err error) {
		mu.Lock()
		defer mu.Unlock()
		if finished {
			return
		}
		finished = true
		errc <- err
		close(errc)
		close(out)
		close(stop)
	}

	sub := o.Subscribe(Observer[T]{
		Next: func(v T) {
			mu.Lock()
			defer mu.Unlock()
			if finished {
				return
			}
			select {
			case out <- v:
			case <-ctx.Done():
			}
		},
		Error:    func(err error) { finish(err) },
		Complete: func() { finish(nil) },
	})

	go func() {
		select {
		case <-ctx.Done():
			sub.Cancel()
			finish(ctx.Err())
		case <-stop:
		}
	}()

	return out, errc
}

// Just emits v and completes.
func Just[T any](v T) Observable[T] {
	return NewObservable(func(e *Emitter[T]) func() {
		e.Next(v)
		e.Complete()
		return nil
	})
}

// Fail terminates with err without emitting.
func Fail[T any](err error) Observable[T] {
	return NewObservable(func(e *Emitter[T]) func() {
		e.Error(err)
		return nil
	})
}

// Empty completes without emitting.
func Empty[T any]() Observable[T] {
	return NewObservable(func(e *Emitter[T]) func() {
		e.Complete()
		return nil
	})
}
