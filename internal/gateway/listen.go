package gateway

import (
	"context"
	"fmt"
	"sync"

	"github.com/AppleFlash/BackgroundRealm/internal/changeset"
	"github.com/AppleFlash/BackgroundRealm/internal/query"
	"github.com/AppleFlash/BackgroundRealm/internal/reactive"
	"github.com/AppleFlash/BackgroundRealm/internal/store"
)

// Range is a half-open index range [Start, End) over a result list.
type Range struct {
	Start int
	End   int
}

// clamp bounds r to a list of length n.
func (r Range) clamp(n int) (int, int) {
	lo := min(max(r.Start, 0), n)
	hi := min(max(r.End, lo), n)
	return lo, hi
}

// observe registers a store observer for q on a listen worker and delivers
// every change on the regular context. check, if non-nil, runs on the
// worker against the opened store before the observer is registered.
func (g *Gateway) observe(op string, q query.Query, check func(*store.Store) error) reactive.Observable[store.Change] {
	return reactive.NewObservable(func(e *reactive.Emitter[store.Change]) func() {
		var (
			mu        sync.Mutex
			ob        *store.Observation
			cancelled bool
		)

		fail := func(err error) {
			g.finish(op, err)
			g.regular.Schedule(func() { e.Error(err) })
		}

		h := g.pool.Start(g.listenName, nil)
		h.Schedule(func() {
			if e.Done() {
				return
			}
			s, err := g.open(context.Background())
			if err != nil {
				fail(err)
				return
			}
			if check != nil {
				if err := check(s); err != nil {
					fail(err)
					return
				}
			}
			o, err := s.Observe(q, h, func(c store.Change, err error) {
				if err != nil {
					g.regular.Schedule(func() { e.Error(err) })
					return
				}
				g.regular.Schedule(func() { e.Next(c) })
			})
			if err != nil {
				fail(err)
				return
			}

			mu.Lock()
			if cancelled {
				mu.Unlock()
				o.Cancel()
				return
			}
			ob = o
			mu.Unlock()

			g.metrics.listeners.Inc()
			g.finish(op, nil)
			g.logger.Debug("listener registered", "op", op, "kind", q.Kind, "worker", h.Worker().Name())
		})

		return func() {
			mu.Lock()
			cancelled = true
			o := ob
			ob = nil
			mu.Unlock()

			// Cancel is safe from any goroutine, and the worker may already
			// be gone after a pool shutdown.
			if o != nil {
				o.Cancel()
				g.metrics.listeners.Dec()
			}
			h.Stop()
		}
	})
}

// Listen emits the last record matching q every time the result set
// changes. Nothing is emitted while no record matches; the first emission
// happens as soon as one appears.
func Listen[T any](g *Gateway, q query.Query, dec Decoder[T]) reactive.Observable[T] {
	return reactive.NewObservable(func(e *reactive.Emitter[T]) func() {
		sub := g.observe("listen", q, nil).Subscribe(reactive.Observer[store.Change]{
			Next: func(c store.Change) {
				if len(c.Records) == 0 {
					return
				}
				v, err := dec(c.Records[len(c.Records)-1].Body)
				if err != nil {
					e.Error(err)
					return
				}
				e.Next(v)
			},
			Error:    e.Error,
			Complete: e.Complete,
		})
		return sub.Cancel
	})
}

// ListenArray emits every record matching q, first on subscription and then
// on every change. A non-nil rng slices the result, clamped to its bounds.
func ListenArray[T any](g *Gateway, q query.Query, rng *Range, dec Decoder[T]) reactive.Observable[[]T] {
	return reactive.TryMap(g.observe("listen_array", q, nil), func(c store.Change) ([]T, error) {
		recs := c.Records
		if rng != nil {
			lo, hi := rng.clamp(len(recs))
			recs = recs[lo:hi]
		}
		return decodeAll(recs, dec)
	})
}

// ListenArrayChanges emits the store's own change notifications for q as
// changesets. The first emission is Initial. Modification indices are
// corrected into the post-update index space.
func ListenArrayChanges[T any](g *Gateway, q query.Query, dec Decoder[T]) reactive.Observable[changeset.Changeset[T]] {
	return reactive.TryMap(g.observe("listen_array_changes", q, nil), func(c store.Change) (changeset.Changeset[T], error) {
		if c.Initial {
			items, err := decodeAll(c.Records, dec)
			if err != nil {
				return changeset.Changeset[T]{}, err
			}
			return changeset.Initial(items), nil
		}

		inserted, err := decodeAt(c.Records, c.Insertions, dec)
		if err != nil {
			return changeset.Changeset[T]{}, err
		}
		mods := changeset.CorrectModifications(c.Modifications, c.Deletions, c.Insertions, len(c.Records))
		modified, err := decodeAt(c.Records, mods, dec)
		if err != nil {
			return changeset.Changeset[T]{}, err
		}
		return changeset.Update(c.Deletions, inserted, modified), nil
	})
}

// ListenOrderedArrayChanges observes the embedded list listField of the
// first container matching source and emits how it changes, computed by
// diffing successive lists with eq on the regular context.
//
// A missing container is observed as an empty list, so the subscription
// stays valid until the container appears. The first emission is always
// Initial, possibly empty. Container changes that leave the list as it was
// emit nothing.
func ListenOrderedArrayChanges[T any](g *Gateway, source query.Query, listField string, dec Decoder[T], eq func(a, b T) bool) reactive.Observable[changeset.Changeset[T]] {
	check := func(s *store.Store) error {
		k, err := s.Kind(source.Kind)
		if err != nil {
			return err
		}
		if !k.HasList(listField) {
			return fmt.Errorf("kind %s has no list %q", k.Name, listField)
		}
		return nil
	}

	return reactive.NewObservable(func(e *reactive.Emitter[changeset.Changeset[T]]) func() {
		differ := changeset.NewDiffer(eq)
		sub := g.observe("listen_ordered_array_changes", source, check).Subscribe(reactive.Observer[store.Change]{
			Next: func(c store.Change) {
				items, err := containerList(c.Records, listField, dec)
				if err != nil {
					e.Error(err)
					return
				}
				cs := differ.Next(items)
				if !cs.IsInitial() && cs.IsEmpty() {
					return
				}
				e.Next(cs)
			},
			Error:    e.Error,
			Complete: e.Complete,
		})
		return sub.Cancel
	})
}

func containerList[T any](recs []store.Record, listField string, dec Decoder[T]) ([]T, error) {
	if len(recs) == 0 {
		return []T{}, nil
	}
	children, err := recs[0].Body.Objects(listField)
	if err != nil {
		return nil, err
	}
	out := make([]T, len(children))
	for i, child := range children {
		v, err := dec(child)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func decodeAt[T any](recs []store.Record, idx []int, dec Decoder[T]) ([]changeset.Item[T], error) {
	out := make([]changeset.Item[T], len(idx))
	for k, i := range idx {
		v, err := dec(recs[i].Body)
		if err != nil {
			return nil, err
		}
		out[k] = changeset.Item[T]{Index: i, Item: v}
	}
	return out, nil
}
