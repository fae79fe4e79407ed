package changeset

import "slices"

// Op identifies one step of an edit script.
type Op int

const (
	// OpKeep means old[Old] matched new[New].
	OpKeep Op = iota
	// OpDelete means old[Old] has no counterpart in new.
	OpDelete
	// OpInsert means new[New] has no counterpart in old.
	OpInsert
)

// Edit is one step of an edit script. Old is -1 for inserts and New is -1
// for deletes.
type Edit struct {
	Op  Op
	Old int
	New int
}

// Edits computes the shortest edit script turning old into new using Myers'
// greedy O((N+M)·D) algorithm, where D is the edit distance.
//
// The returned script is in forward order: deletes are ascending in old,
// inserts are ascending in new, and keeps pair the matched elements. eq is
// called as eq(old[i], new[j]).
func Edits[T any](old, new []T, eq func(a, b T) bool) []Edit {
	n, m := len(old), len(new)
	max := n + m
	if max == 0 {
		return nil
	}

	offset := max + 1
	v := make([]int, 2*max+3)
	trace := make([][]int, 0, 8)

	// Forward pass: record the furthest-reaching x per diagonal for each d.
search:
	for d := 0; d <= max; d++ {
		trace = append(trace, slices.Clone(v))
		for k := -d; k <= d; k += 2 {
			var x int
			if k == -d || (k != d && v[offset+k-1] < v[offset+k+1]) {
				x = v[offset+k+1]
			} else {
				x = v[offset+k-1] + 1
			}
			y := x - k
			for x < n && y < m && eq(old[x], new[y]) {
				x++
				y++
			}
			v[offset+k] = x
			if x >= n && y >= m {
				break search
			}
		}
	}

	// Backtrack from (n, m) to (0, 0) collecting edits in reverse.
	script := make([]Edit, 0, max)
	x, y := n, m
	for d := len(trace) - 1; d >= 0; d-- {
		v := trace[d]
		k := x - y

		var prevK int
		if k == -d || (k != d && v[offset+k-1] < v[offset+k+1]) {
			prevK = k + 1
		} else {
			prevK = k - 1
		}
		prevX := v[offset+prevK]
		prevY := prevX - prevK

		for x > prevX && y > prevY {
			x--
			y--
			script = append(script, Edit{Op: OpKeep, Old: x, New: y})
		}
		if d == 0 {
			break
		}
		if x == prevX {
			y--
			script = append(script, Edit{Op: OpInsert, Old: -1, New: y})
		} else {
			x--
			script = append(script, Edit{Op: OpDelete, Old: x, New: -1})
		}
	}

	slices.Reverse(script)
	return script
}

// Diff computes the Update changeset turning old into new. Deleted holds
// old indices, Inserted holds new indices; Modified is always empty because
// snapshot diffing cannot tell a modification from a replacement.
func Diff[T any](old, new []T, eq func(a, b T) bool) Changeset[T] {
	deleted := []int{}
	inserted := []Item[T]{}
	for _, e := range Edits(old, new, eq) {
		switch e.Op {
		case OpDelete:
			deleted = append(deleted, e.Old)
		case OpInsert:
			inserted = append(inserted, Item[T]{Index: e.New, Item: new[e.New]})
		}
	}
	return Update(deleted, inserted, []Item[T]{})
}

// Differ turns a stream of snapshots into a stream of changesets.
//
// The first snapshot always yields Initial; every later snapshot yields an
// Update against the previous one, including when the previous snapshot was
// empty. A Differ is not safe for concurrent use; feed it from one execution
// context.
type Differ[T any] struct {
	eq      func(a, b T) bool
	prev    []T
	started bool
}

// NewDiffer creates a Differ using eq to match elements.
func NewDiffer[T any](eq func(a, b T) bool) *Differ[T] {
	return &Differ[T]{eq: eq}
}

// NewComparableDiffer creates a Differ matching elements with ==.
func NewComparableDiffer[T comparable]() *Differ[T] {
	return NewDiffer(func(a, b T) bool { return a == b })
}

// Next consumes the next snapshot and returns the changeset leading to it.
func (d *Differ[T]) Next(snapshot []T) Changeset[T] {
	next := slices.Clone(snapshot)
	if !d.started {
		d.started = true
		d.prev = next
		return Initial(slices.Clone(next))
	}
	c := Diff(d.prev, next, d.eq)
	d.prev = next
	return c
}
