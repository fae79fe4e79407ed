package reactive

import "sync"

// Map transforms every value of o with f.
func Map[T, U any](o Observable[T], f func(T) U) Observable[U] {
	return NewObservable(func(e *Emitter[U]) func() {
		sub := o.Subscribe(Observer[T]{
			Next:     func(v T) { e.Next(f(v)) },
			Error:    e.Error,
			Complete: e.Complete,
		})
		return sub.Cancel
	})
}

// TryMap transforms every value of o with f. The first error from f
// terminates the stream and cancels o.
func TryMap[T, U any](o Observable[T], f func(T) (U, error)) Observable[U] {
	return NewObservable(func(e *Emitter[U]) func() {
		sub := o.Subscribe(Observer[T]{
			Next: func(v T) {
				u, err := f(v)
				if err != nil {
					e.Error(err)
					return
				}
				e.Next(u)
			},
			Error:    e.Error,
			Complete: e.Complete,
		})
		return sub.Cancel
	})
}

// ReceiveOn re-delivers every event of o on s. With a serial s the event
// order is preserved.
func ReceiveOn[T any](o Observable[T], s Scheduler) Observable[T] {
	return NewObservable(func(e *Emitter[T]) func() {
		sub := o.Subscribe(Observer[T]{
			Next:     func(v T) { s.Schedule(func() { e.Next(v) }) },
			Error:    func(err error) { s.Schedule(func() { e.Error(err) }) },
			Complete: func() { s.Schedule(e.Complete) },
		})
		return sub.Cancel
	})
}

// FlatMap subscribes to f(v) for every value v of o and merges the inner
// streams. It completes once o and every inner stream have completed; any
// error terminates the whole stream.
func FlatMap[T, U any](o Observable[T], f func(T) Observable[U]) Observable[U] {
	return NewObservable(func(e *Emitter[U]) func() {
		var (
			mu        sync.Mutex
			inners    = make(map[int]*Subscription)
			nextID    int
			outerDone bool
		)

		innerComplete := func(id int) {
			mu.Lock()
			delete(inners, id)
			finished := outerDone && len(inners) == 0
			mu.Unlock()
			if finished {
				e.Complete()
			}
		}

		outer := o.Subscribe(Observer[T]{
			Next: func(v T) {
				mu.Lock()
				id := nextID
				nextID++
				inners[id] = nil
				mu.Unlock()

				sub := f(v).Subscribe(Observer[U]{
					Next:     e.Next,
					Error:    e.Error,
					Complete: func() { innerComplete(id) },
				})

				mu.Lock()
				_, live := inners[id]
				if live {
					inners[id] = sub
				}
				mu.Unlock()
			},
			Error: e.Error,
			Complete: func() {
				mu.Lock()
				outerDone = true
				finished := len(inners) == 0
				mu.Unlock()
				if finished {
					e.Complete()
				}
			},
		})

		return func() {
			outer.Cancel()
			mu.Lock()
			subs := make([]*Subscription, 0, len(inners))
			for _, s := range inners {
				subs = append(subs, s)
			}
			clear(inners)
			mu.Unlock()
			for _, s := range subs {
				s.Cancel()
			}
		}
	})
}
