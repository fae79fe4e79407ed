package changeset

import (
	"fmt"
	"slices"
	"strings"
)

// Kind distinguishes the two changeset variants.
type Kind int

const (
	// KindInitial carries the full first snapshot.
	KindInitial Kind = iota + 1
	// KindUpdate carries an incremental edit script.
	KindUpdate
)

// String returns the lower-case variant name.
func (k Kind) String() string {
	switch k {
	case KindInitial:
		return "initial"
	case KindUpdate:
		return "update"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Item pairs a collection element with its index.
type Item[T any] struct {
	Index int
	Item  T
}

// Changeset describes how a collection moved from one observed state to the
// next. It is a tagged union: Items is only meaningful for KindInitial,
// Deleted/Inserted/Modified only for KindUpdate.
//
// Modified may be nil when the producer has no notion of in-place
// modification (e.g. snapshot diffing reports changes as delete+insert).
type Changeset[T any] struct {
	Kind Kind

	// Items is the complete collection (KindInitial).
	Items []T

	// Deleted holds indices into the pre-update array.
	Deleted []int

	// Inserted holds indices into the post-update array.
	Inserted []Item[T]

	// Modified holds indices into the post-update array.
	Modified []Item[T]
}

// Initial creates a changeset that replaces the collection wholesale.
func Initial[T any](items []T) Changeset[T] {
	if items == nil {
		items = []T{}
	}
	return Changeset[T]{Kind: KindInitial, Items: items}
}

// Update creates an incremental changeset.
func Update[T any](deleted []int, inserted, modified []Item[T]) Changeset[T] {
	if deleted == nil {
		deleted = []int{}
	}
	if inserted == nil {
		inserted = []Item[T]{}
	}
	return Changeset[T]{
		Kind:     KindUpdate,
		Deleted:  deleted,
		Inserted: inserted,
		Modified: modified,
	}
}

// IsInitial reports whether c is an Initial changeset.
func (c Changeset[T]) IsInitial() bool {
	return c.Kind == KindInitial
}

// IsEmpty reports whether c is an update that changes nothing.
func (c Changeset[T]) IsEmpty() bool {
	return c.Kind == KindUpdate && len(c.Deleted) == 0 && len(c.Inserted) == 0 && len(c.Modified) == 0
}

// Map converts the elements of a changeset, keeping every index untouched.
func Map[T, U any](c Changeset[T], f func(T) U) Changeset[U] {
	switch c.Kind {
	case KindInitial:
		items := make([]U, len(c.Items))
		for i, item := range c.Items {
			items[i] = f(item)
		}
		return Initial(items)
	default:
		var modified []Item[U]
		if c.Modified != nil {
			modified = mapItems(c.Modified, f)
		}
		return Update(slices.Clone(c.Deleted), mapItems(c.Inserted, f), modified)
	}
}

func mapItems[T, U any](items []Item[T], f func(T) U) []Item[U] {
	out := make([]Item[U], len(items))
	for i, it := range items {
		out[i] = Item[U]{Index: it.Index, Item: f(it.Item)}
	}
	return out
}

// Equal compares two changesets structurally. A nil Modified list equals an
// empty one.
func Equal[T comparable](a, b Changeset[T]) bool {
	if a.Kind != b.Kind {
		return false
	}
	if a.Kind == KindInitial {
		return slices.Equal(a.Items, b.Items)
	}
	return slices.Equal(a.Deleted, b.Deleted) &&
		slices.Equal(a.Inserted, b.Inserted) &&
		slices.Equal(a.Modified, b.Modified)
}

// String renders the changeset in a compact, deterministic form used by
// logs and golden traces.
func (c Changeset[T]) String() string {
	var b strings.Builder
	b.WriteString(c.Kind.String())
	switch c.Kind {
	case KindInitial:
		fmt.Fprintf(&b, " %v", c.Items)
	case KindUpdate:
		fmt.Fprintf(&b, " deleted=%v inserted=%s modified=%s",
			c.Deleted, formatItems(c.Inserted), formatItems(c.Modified))
	}
	return b.String()
}

func formatItems[T any](items []Item[T]) string {
	parts := make([]string, len(items))
	for i, it := range items {
		parts[i] = fmt.Sprintf("%d:%v", it.Index, it.Item)
	}
	return "[" + strings.Join(parts, " ") + "]"
}
