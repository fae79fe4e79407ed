package store

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/AppleFlash/BackgroundRealm/internal/changeset"
	"github.com/AppleFlash/BackgroundRealm/internal/query"
	"github.com/AppleFlash/BackgroundRealm/internal/reactive"
)

// Change is one observer delivery.
//
// The first delivery has Initial set and no index sets. Later deliveries
// carry Deletions and Modifications as indices into the previous result set
// and Insertions as indices into Records. Modifications are not corrected
// for the other two sets; see changeset.CorrectModifications.
type Change struct {
	Initial       bool
	Records       []Record
	Deletions     []int
	Insertions    []int
	Modifications []int
}

// Observation is a registered observer. Cancel unregisters it.
type Observation struct {
	store *Store
	o     *observer
	once  sync.Once
}

// Cancel stops deliveries. Deliveries already running on the observer's
// scheduler finish, later ones are dropped. Safe to call more than once.
func (ob *Observation) Cancel() {
	if ob == nil {
		return
	}
	ob.once.Do(func() {
		ob.o.cancelled.Store(true)
		ob.store.mu.Lock()
		delete(ob.store.observers, ob.o.id)
		ob.store.mu.Unlock()
	})
}

type observer struct {
	id        uint64
	q         query.Query
	sched     reactive.Scheduler
	fn        func(Change, error)
	cancelled atomic.Bool

	mu      sync.Mutex
	started bool
	prev    []Record
}

// Observe registers fn for the results of q. Every delivery runs on sched,
// which should be serial. The first delivery is the initial result set,
// even when empty. A query error is delivered to fn and the observer stays
// registered.
func (s *Store) Observe(q query.Query, sched reactive.Scheduler, fn func(Change, error)) (*Observation, error) {
	if _, err := s.Kind(q.Kind); err != nil {
		return nil, &Error{Op: "observe", Err: err}
	}
	if err := query.Validate(q); err != nil {
		return nil, &Error{Op: "observe " + q.Kind, Err: err}
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, &Error{Op: "observe " + q.Kind, Err: ErrClosed}
	}
	s.nextObs++
	o := &observer{id: s.nextObs, q: q, sched: sched, fn: fn}
	s.observers[o.id] = o
	s.mu.Unlock()

	s.logger.Debug("observer registered", "observer", o.id, "kind", q.Kind)
	sched.Schedule(func() { s.refresh(o) })
	return &Observation{store: s, o: o}, nil
}

// Observers returns the number of registered observers.
func (s *Store) Observers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.observers)
}

// notify schedules a refresh on every registered observer, in registration
// order.
func (s *Store) notify() {
	s.mu.Lock()
	obs := make([]*observer, 0, len(s.observers))
	for _, o := range s.observers {
		obs = append(obs, o)
	}
	s.mu.Unlock()
	slices.SortFunc(obs, func(a, b *observer) int { return cmp.Compare(a.id, b.id) })

	for _, o := range obs {
		o.sched.Schedule(func() { s.refresh(o) })
	}
}

// refresh re-runs the observer's query and delivers the difference.
func (s *Store) refresh(o *observer) {
	if o.cancelled.Load() {
		return
	}

	change, ok, err := o.next(s)
	if o.cancelled.Load() {
		return
	}
	if err != nil {
		s.logger.Warn("observer query failed", "observer", o.id, "kind", o.q.Kind, "error", err)
		o.fn(Change{}, err)
		return
	}
	if ok {
		o.fn(change, nil)
	}
}

func (o *observer) next(s *Store) (Change, bool, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	recs, err := s.Query(context.Background(), o.q)
	if err != nil {
		return Change{}, false, err
	}

	if !o.started {
		o.started = true
		o.prev = recs
		return Change{Initial: true, Records: recs}, true, nil
	}

	change := diffRecords(o.prev, recs)
	o.prev = recs
	empty := len(change.Deletions) == 0 && len(change.Insertions) == 0 && len(change.Modifications) == 0
	return change, !empty, nil
}

// diffRecords matches rows by id. Unmatched old rows are deletions,
// unmatched new rows insertions, and matched rows with a new stamp
// modifications at their old index.
func diffRecords(prev, next []Record) Change {
	c := Change{
		Records:       next,
		Deletions:     []int{},
		Insertions:    []int{},
		Modifications: []int{},
	}
	edits := changeset.Edits(prev, next, func(a, b Record) bool { return a.ID == b.ID })
	for _, e := range edits {
		switch e.Op {
		case changeset.OpDelete:
			c.Deletions = append(c.Deletions, e.Old)
		case changeset.OpInsert:
			c.Insertions = append(c.Insertions, e.New)
		case changeset.OpKeep:
			if prev[e.Old].Seq != next[e.New].Seq {
				c.Modifications = append(c.Modifications, e.Old)
			}
		}
	}
	return c
}
