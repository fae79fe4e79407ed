package changeset

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApply_InitialReplaces(t *testing.T) {
	got := Apply([]string{"old"}, Initial([]string{"a", "b"}))
	assert.Equal(t, []string{"a", "b"}, got)
}

func TestApply_NoOpUpdate(t *testing.T) {
	cur := []string{"a", "b", "c"}
	got := Apply(cur, Update[string]([]int{}, []Item[string]{}, []Item[string]{}))
	assert.Equal(t, cur, got)

	got = Apply(cur, Update[string](nil, nil, nil))
	assert.Equal(t, cur, got)
}

func TestApply_ContainerChildDelete(t *testing.T) {
	got := Apply([]string{"A", "B", "C"}, Update[string]([]int{1}, nil, []Item[string]{}))
	assert.Equal(t, []string{"A", "C"}, got)
}

func TestApply_DeletesDescendingRegardlessOfInputOrder(t *testing.T) {
	cur := []string{"a", "b", "c", "d", "e"}
	got := Apply(cur, Update[string]([]int{0, 2, 4}, nil, nil))
	assert.Equal(t, []string{"b", "d"}, got)

	got = Apply(cur, Update[string]([]int{4, 0, 2}, nil, nil))
	assert.Equal(t, []string{"b", "d"}, got)
}

func TestApply_DeleteInsertModifyOrder(t *testing.T) {
	cur := []string{"a", "b", "c", "d"}
	c := Update(
		[]int{0},
		[]Item[string]{{Index: 2, Item: "x"}},
		[]Item[string]{{Index: 1, Item: "C"}},
	)
	assert.Equal(t, []string{"b", "C", "x", "d"}, Apply(cur, c))
}

func TestApply_DoesNotMutateInput(t *testing.T) {
	cur := []string{"a", "b"}
	Apply(cur, Update([]int{0}, []Item[string]{{0, "z"}}, nil))
	assert.Equal(t, []string{"a", "b"}, cur)
}

func TestApply_OutOfRangePanics(t *testing.T) {
	assert.Panics(t, func() {
		Apply([]string{"a"}, Update[string]([]int{3}, nil, nil))
	})
	assert.Panics(t, func() {
		Apply([]string{"a"}, Update([]int{}, []Item[string]{{Index: 5, Item: "x"}}, nil))
	})
	assert.Panics(t, func() {
		Apply([]string{"a"}, Update([]int{}, nil, []Item[string]{{Index: 1, Item: "x"}}))
	})
	assert.Panics(t, func() {
		Apply([]string{"a"}, Changeset[string]{})
	})
}

func TestApplyTo(t *testing.T) {
	arr := []int{1, 2, 3}
	ApplyTo(&arr, Update([]int{1}, []Item[int]{{Index: 2, Item: 4}}, nil))
	assert.Equal(t, []int{1, 3, 4}, arr)
}
