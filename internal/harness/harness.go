package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/AppleFlash/BackgroundRealm/internal/changeset"
	"github.com/AppleFlash/BackgroundRealm/internal/gateway"
	"github.com/AppleFlash/BackgroundRealm/internal/query"
	"github.com/AppleFlash/BackgroundRealm/internal/reactive"
	"github.com/AppleFlash/BackgroundRealm/internal/record"
	"github.com/AppleFlash/BackgroundRealm/internal/schema"
	"github.com/AppleFlash/BackgroundRealm/internal/store"
	"github.com/AppleFlash/BackgroundRealm/internal/testutil"
	"github.com/AppleFlash/BackgroundRealm/internal/worker"
)

// settleTimeout bounds the wait for watches to catch up with a step.
const settleTimeout = 5 * time.Second

// Harness runs one scenario against a private in-memory store.
type Harness struct {
	store   *store.Store
	gateway *gateway.Gateway
	pool    *worker.Pool
	regular *reactive.SerialQueue
	logger  *slog.Logger

	mu      sync.Mutex
	step    int
	result  *Result
	watches []*watcher
}

// watcher is a running Watch and the state its emissions add up to.
type watcher struct {
	Watch
	q   query.Query
	sub *reactive.Subscription

	// Guarded by Harness.mu.
	state     []record.Object
	started   bool
	emissions int
	err       error
}

// Run executes scenario and returns its result. The error is non-nil only
// when the scenario cannot run at all; failed checks land in Result.Errors.
func Run(scenario *Scenario) (*Result, error) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	kinds := schema.Default()
	if scenario.Schema != "" {
		compiled, err := schema.CompileString(scenario.Schema, scenario.Name+".cue")
		if err != nil {
			return nil, fmt.Errorf("failed to compile schema: %w", err)
		}
		kinds = compiled
	}

	cfg := store.DefaultConfig(":memory:")
	cfg.Schema = kinds
	cfg.Logger = logger
	st, err := store.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	pool, err := worker.NewPool(worker.WithLogger(logger), worker.WithNameFunc(testutil.SequentialNames()))
	if err != nil {
		return nil, err
	}
	defer pool.Shutdown()

	regular := reactive.NewSerialQueue("harness", logger)
	defer regular.Close()

	gw, err := gateway.New(gateway.Config{
		Open:    store.Static(st),
		Regular: regular,
		Pool:    pool,
		Logger:  logger,
	})
	if err != nil {
		return nil, err
	}
	defer gw.Close()

	h := &Harness{
		store:   st,
		gateway: gw,
		pool:    pool,
		regular: regular,
		logger:  logger,
		result:  NewResult(),
	}
	return h.run(context.Background(), scenario)
}

func (h *Harness) run(ctx context.Context, scenario *Scenario) (*Result, error) {
	for i, step := range scenario.Setup {
		if err := h.execute(ctx, step); err != nil && step.ExpectError == "" {
			return nil, fmt.Errorf("setup step %d (%s): %w", i, step.Op, err)
		}
	}

	for _, w := range scenario.Watches {
		if err := h.subscribe(w); err != nil {
			return nil, fmt.Errorf("watch %s: %w", w.Name, err)
		}
	}
	defer h.cancelWatches()
	if err := h.settle(ctx); err != nil {
		return nil, err
	}

	for i, step := range scenario.Steps {
		n := i + 1
		h.setStep(n)
		h.check(n, step, h.execute(ctx, step))
		if err := h.settle(ctx); err != nil {
			return nil, fmt.Errorf("step %d: %w", n, err)
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, a := range scenario.Assertions {
		if err := h.evaluate(ctx, a); err != nil {
			h.result.AddError("%v", err)
		}
	}
	return h.result, nil
}

func (h *Harness) setStep(n int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.step = n
}

// check compares a step's error with its expect_error clause.
func (h *Harness) check(n int, step Step, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err != nil {
		h.result.Trace = append(h.result.Trace, TraceEvent{Step: n, Change: err.Error()})
	}
	switch {
	case step.ExpectError == "" && err != nil:
		h.result.AddError("step %d (%s): unexpected error: %v", n, step.Op, err)
	case step.ExpectError != "" && err == nil:
		h.result.AddError("step %d (%s): expected error containing %q, got success", n, step.Op, step.ExpectError)
	case step.ExpectError != "" && !strings.Contains(err.Error(), step.ExpectError):
		h.result.AddError("step %d (%s): expected error containing %q, got %v", n, step.Op, step.ExpectError, err)
	}
}

// execute performs one step through the gateway.
func (h *Harness) execute(ctx context.Context, step Step) error {
	objs, err := toObjects(step.Records)
	if err != nil {
		return err
	}

	switch step.Op {
	case OpPut:
		policy, err := parsePolicy(step.Policy)
		if err != nil {
			return err
		}
		_, err = gateway.SaveAll(h.gateway, step.Kind, objs, encodeObject, policy).Await(ctx)
		return err

	case OpDelete:
		q, err := buildQuery(step.Kind, step.Where, nil)
		if err != nil {
			return err
		}
		_, err = h.gateway.Delete(q).Await(ctx)
		return err

	case OpDeleteAll:
		return h.gateway.DeleteAll(ctx)
	}

	l, err := step.List.list()
	if err != nil {
		return err
	}
	switch step.Op {
	case OpEnsureContainer:
		_, err = gateway.SaveContainerIfAbsent(h.gateway, l, objs[0], encodeObject).Await(ctx)
	case OpAppend:
		_, err = gateway.AppendChildren(h.gateway, l, objs, encodeObject).Await(ctx)
	case OpUpdateChild:
		for _, obj := range objs {
			if _, err = gateway.UpdateChild(h.gateway, l, obj, encodeObject).Await(ctx); err != nil {
				break
			}
		}
	case OpDeleteChild:
		var key record.Value
		key, err = record.FromAny(step.Key)
		if err == nil {
			_, err = h.gateway.DeleteChild(l, key).Await(ctx)
		}
	default:
		err = fmt.Errorf("unknown op %q", step.Op)
	}
	return err
}

// subscribe starts w and records its emissions.
func (h *Harness) subscribe(w Watch) error {
	q, err := buildQuery(w.Kind, w.Where, w.Order)
	if err != nil {
		return err
	}
	wt := &watcher{Watch: w, q: q}
	h.mu.Lock()
	h.watches = append(h.watches, wt)
	h.mu.Unlock()

	fail := func(err error) { h.record(wt, "error: "+err.Error(), nil, err) }

	switch w.Mode {
	case ModeArray:
		wt.sub = gateway.ListenArray(h.gateway, q, nil, decodeObject).Subscribe(reactive.Observer[[]record.Object]{
			Next: func(objs []record.Object) {
				h.record(wt, fmt.Sprintf("snapshot %v", render(objs)), objs, nil)
			},
			Error: fail,
		})
	case ModeChanges:
		wt.sub = gateway.ListenArrayChanges(h.gateway, q, decodeObject).Subscribe(reactive.Observer[changeset.Changeset[record.Object]]{
			Next:  func(c changeset.Changeset[record.Object]) { h.recordChange(wt, c) },
			Error: fail,
		})
	case ModeOrdered:
		eq := func(a, b record.Object) bool { return record.Equal(a, b) }
		wt.sub = gateway.ListenOrderedArrayChanges(h.gateway, q, w.List, decodeObject, eq).Subscribe(reactive.Observer[changeset.Changeset[record.Object]]{
			Next:  func(c changeset.Changeset[record.Object]) { h.recordChange(wt, c) },
			Error: fail,
		})
	default:
		return fmt.Errorf("unknown mode %q", w.Mode)
	}
	return nil
}

func (h *Harness) cancelWatches() {
	h.mu.Lock()
	watches := slices.Clone(h.watches)
	h.mu.Unlock()
	for _, w := range watches {
		if w.sub != nil {
			w.sub.Cancel()
		}
	}
	// Let teardowns reach the worker before the pool shuts down.
	_ = h.barrier(context.Background())
}

// recordChange applies c to the watcher's state and records it.
func (h *Harness) recordChange(w *watcher, c changeset.Changeset[record.Object]) {
	h.mu.Lock()
	state := w.state
	h.mu.Unlock()

	next, err := apply(state, c)
	text := changeset.Map(c, canonical).String()
	if err != nil {
		h.record(w, text, nil, fmt.Errorf("changeset does not apply: %w", err))
		return
	}
	h.record(w, text, next, nil)
}

func (h *Harness) record(w *watcher, text string, state []record.Object, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.result.Trace = append(h.result.Trace, TraceEvent{Step: h.step, Watch: w.Name, Change: text})
	w.emissions++
	if err != nil {
		w.err = err
		h.result.AddError("watch %s at step %d: %v", w.Name, h.step, err)
		return
	}
	w.started = true
	w.state = state
}

// settle waits until every emission caused so far has been delivered, then
// checks each watcher's accumulated state against the store.
func (h *Harness) settle(ctx context.Context) error {
	if err := h.barrier(ctx); err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, w := range h.watches {
		if w.err != nil {
			continue
		}
		want, err := h.expected(ctx, w)
		if err != nil {
			return err
		}
		if !w.started {
			h.result.AddError("watch %s at step %d: no initial emission", w.Name, h.step)
			continue
		}
		if !equalObjects(w.state, want) {
			h.result.AddError("watch %s at step %d: observed %v, store holds %v", w.Name, h.step, render(w.state), render(want))
		}
	}
	return nil
}

// barrier returns once the listen worker and then the regular queue have
// drained every task queued before the call. Store commits schedule their
// observer refreshes synchronously, so afterwards no emission is in flight.
func (h *Harness) barrier(ctx context.Context) error {
	done := make(chan struct{})
	handle := h.pool.Start(gateway.DefaultListenName, nil)
	handle.Schedule(func() {
		h.regular.Schedule(func() { close(done) })
	})
	defer handle.Stop()

	ctx, cancel := context.WithTimeout(ctx, settleTimeout)
	defer cancel()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("watches did not settle: %w", ctx.Err())
	}
}

// expected is what w should hold given the store's current contents.
func (h *Harness) expected(ctx context.Context, w *watcher) ([]record.Object, error) {
	recs, err := h.store.Query(ctx, w.q)
	if err != nil {
		return nil, err
	}
	if w.Mode != ModeOrdered {
		return store.Bodies(recs), nil
	}
	if len(recs) == 0 {
		return []record.Object{}, nil
	}
	children, err := recs[0].Body.Objects(w.List)
	if err != nil {
		return nil, err
	}
	if children == nil {
		children = []record.Object{}
	}
	return children, nil
}

func apply(state []record.Object, c changeset.Changeset[record.Object]) (out []record.Object, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()
	return changeset.Apply(state, c), nil
}

func identity(obj record.Object) (record.Object, error) { return obj, nil }

var (
	decodeObject gateway.Decoder[record.Object] = identity
	encodeObject gateway.Encoder[record.Object] = identity
)

func canonical(obj record.Object) string {
	data, err := record.Marshal(obj)
	if err != nil {
		return fmt.Sprintf("<%v>", err)
	}
	return string(data)
}

func render(objs []record.Object) []string {
	out := make([]string, len(objs))
	for i, obj := range objs {
		out[i] = canonical(obj)
	}
	return out
}

func parsePolicy(s string) (store.UpdatePolicy, error) {
	if s == "" {
		return store.UpdateModified, nil
	}
	for _, p := range []store.UpdatePolicy{store.UpdateError, store.UpdateModified, store.UpdateAll} {
		if s == p.String() {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown policy %q", s)
}

func toObjects(raw []map[string]any) ([]record.Object, error) {
	objs := make([]record.Object, len(raw))
	for i, m := range raw {
		v, err := record.FromAny(m)
		if err != nil {
			return nil, fmt.Errorf("records[%d]: %w", i, err)
		}
		objs[i] = v.(record.Object)
	}
	return objs, nil
}

// buildQuery turns a where map of field equalities into a query. Fields are
// combined in sorted order; order entries prefixed with - sort descending.
func buildQuery(kind string, where map[string]any, order []string) (query.Query, error) {
	fields := make([]string, 0, len(where))
	for f := range where {
		fields = append(fields, f)
	}
	slices.Sort(fields)

	preds := make([]query.Predicate, 0, len(fields))
	for _, f := range fields {
		v, err := record.FromAny(where[f])
		if err != nil {
			return query.Query{}, fmt.Errorf("where %s: %w", f, err)
		}
		preds = append(preds, query.Eq(f, v))
	}

	q := query.All(kind)
	switch len(preds) {
	case 0:
	case 1:
		q.Where = preds[0]
	default:
		q.Where = query.AllOf(preds...)
	}
	for _, o := range order {
		q = q.OrderBy(strings.TrimPrefix(o, "-"), strings.HasPrefix(o, "-"))
	}
	return q, query.Validate(q)
}

func (l *ListRef) list() (gateway.List, error) {
	if l == nil {
		return gateway.List{}, fmt.Errorf("list is required")
	}
	q, err := buildQuery(l.Kind, l.Where, nil)
	if err != nil {
		return gateway.List{}, err
	}
	return gateway.List{Container: q, Field: l.Field, Key: l.Key}, nil
}
