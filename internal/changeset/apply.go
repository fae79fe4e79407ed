package changeset

import (
	"cmp"
	"fmt"
	"slices"
)

// Apply materializes c on top of current and returns the new array.
// current is never mutated.
//
// ORDER (must not change):
//  1. Remove Deleted indices in descending order. Ascending removal would
//     shift every later index and corrupt the script.
//  2. Insert Inserted items in ascending index order.
//  3. Overwrite Modified indices in place.
//
// Indices outside the array are a programming error and panic.
func Apply[T any](current []T, c Changeset[T]) []T {
	if c.Kind == KindInitial {
		return slices.Clone(c.Items)
	}
	if c.Kind != KindUpdate {
		panic(fmt.Sprintf("changeset: cannot apply %s", c.Kind))
	}

	out := slices.Clone(current)

	deleted := slices.Clone(c.Deleted)
	slices.Sort(deleted)
	for i := len(deleted) - 1; i >= 0; i-- {
		idx := deleted[i]
		if idx < 0 || idx >= len(out) {
			panic(fmt.Sprintf("changeset: delete index %d out of range [0,%d)", idx, len(out)))
		}
		out = slices.Delete(out, idx, idx+1)
	}

	inserted := slices.Clone(c.Inserted)
	slices.SortStableFunc(inserted, func(a, b Item[T]) int {
		return cmp.Compare(a.Index, b.Index)
	})
	for _, it := range inserted {
		if it.Index < 0 || it.Index > len(out) {
			panic(fmt.Sprintf("changeset: insert index %d out of range [0,%d]", it.Index, len(out)))
		}
		out = slices.Insert(out, it.Index, it.Item)
	}

	for _, it := range c.Modified {
		if it.Index < 0 || it.Index >= len(out) {
			panic(fmt.Sprintf("changeset: modify index %d out of range [0,%d)", it.Index, len(out)))
		}
		out[it.Index] = it.Item
	}

	return out
}

// ApplyTo applies c to the array behind dst in place.
func ApplyTo[T any](dst *[]T, c Changeset[T]) {
	*dst = Apply(*dst, c)
}
