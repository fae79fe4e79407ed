package changeset

import "slices"

// CorrectModifications re-expresses raw modification indices in the final
// post-update index space.
//
// Stores that report native notifications hand out modifications as indices
// into the pre-update array, alongside deletions (pre-update indices) and
// insertions (post-update indices). For every m in modified:
//
//	pos := m - |{d in deleted : d <= m}|
//	for each i in sorted(inserted): if i <= pos { pos++ }
//	clamp(pos, 0, newLen-1)
//
// Insertions are walked in ascending order against the running position,
// since an insertion landing before the element pushes it right and may
// bring it past a later insertion. Counting insertions against the raw m
// instead picks the wrong element whenever deletions and insertions mix.
//
// The result always satisfies 0 <= idx < newLen; for newLen <= 0 there is
// nothing a modification can point at and the result is empty.
func CorrectModifications(modified, deleted, inserted []int, newLen int) []int {
	out := make([]int, 0, len(modified))
	if newLen <= 0 {
		return out
	}

	del := slices.Clone(deleted)
	slices.Sort(del)
	ins := slices.Clone(inserted)
	slices.Sort(ins)

	for _, m := range modified {
		// Number of deletions at or before m.
		n, found := slices.BinarySearch(del, m)
		if found {
			for n < len(del) && del[n] == m {
				n++
			}
		}
		pos := m - n
		for _, i := range ins {
			if i > pos {
				break
			}
			pos++
		}
		out = append(out, min(max(pos, 0), newLen-1))
	}
	return out
}

// CorrectItems is CorrectModifications for a changeset under construction:
// it corrects the raw indices and pairs each with the element of next it now
// points at.
func CorrectItems[T any](modified, deleted, inserted []int, next []T) []Item[T] {
	idx := CorrectModifications(modified, deleted, inserted, len(next))
	out := make([]Item[T], len(idx))
	for k, i := range idx {
		out[k] = Item[T]{Index: i, Item: next[i]}
	}
	return out
}
