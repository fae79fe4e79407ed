package changeset

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type person struct {
	ID  int
	Age int
}

func sameID(a, b person) bool { return a.ID == b.ID }

func eqString(a, b string) bool { return a == b }

func TestDiff_IdentityComparator(t *testing.T) {
	old := []person{{ID: 1, Age: 10}, {ID: 2, Age: 20}}
	next := []person{{ID: 2, Age: 20}, {ID: 3, Age: 30}}

	c := Diff(old, next, sameID)

	assert.Equal(t, KindUpdate, c.Kind)
	assert.Equal(t, []int{0}, c.Deleted)
	assert.Equal(t, []Item[person]{{Index: 1, Item: person{ID: 3, Age: 30}}}, c.Inserted)
	assert.Empty(t, c.Modified)
	assert.Equal(t, next, Apply(old, c))
}

func TestDiff_ContentChangeIsDeleteInsert(t *testing.T) {
	old := []person{{ID: 1, Age: 10}, {ID: 2, Age: 20}}
	next := []person{{ID: 1, Age: 11}, {ID: 2, Age: 20}}

	c := Diff(old, next, func(a, b person) bool { return a == b })

	assert.Equal(t, []int{0}, c.Deleted)
	assert.Equal(t, []Item[person]{{Index: 0, Item: person{ID: 1, Age: 11}}}, c.Inserted)
	assert.Equal(t, next, Apply(old, c))
}

func TestDiff_Identical(t *testing.T) {
	s := []string{"a", "b", "c"}
	c := Diff(s, s, eqString)
	assert.True(t, c.IsEmpty())
}

func TestDiff_EmptySides(t *testing.T) {
	c := Diff(nil, []string{"x", "y"}, eqString)
	assert.Empty(t, c.Deleted)
	assert.Equal(t, []Item[string]{{0, "x"}, {1, "y"}}, c.Inserted)

	c = Diff([]string{"x", "y"}, nil, eqString)
	assert.Equal(t, []int{0, 1}, c.Deleted)
	assert.Empty(t, c.Inserted)

	c = Diff[string](nil, nil, eqString)
	assert.True(t, c.IsEmpty())
}

func TestEdits_MinimalScript(t *testing.T) {
	old := strings.Split("ABCABBA", "")
	next := strings.Split("CBABAC", "")

	script := Edits(old, next, eqString)

	var edits, keeps int
	for _, e := range script {
		switch e.Op {
		case OpKeep:
			keeps++
			assert.Equal(t, old[e.Old], next[e.New])
		default:
			edits++
		}
	}
	// Classic example: edit distance 5, LCS length 4.
	assert.Equal(t, 5, edits)
	assert.Equal(t, 4, keeps)
}

func TestEdits_ForwardOrder(t *testing.T) {
	script := Edits(strings.Split("abcdef", ""), strings.Split("azcdxf", ""), eqString)

	lastOld, lastNew := -1, -1
	for _, e := range script {
		if e.Old >= 0 {
			assert.Greater(t, e.Old, lastOld)
			lastOld = e.Old
		}
		if e.New >= 0 {
			assert.Greater(t, e.New, lastNew)
			lastNew = e.New
		}
	}
	assert.Equal(t, 5, lastOld)
	assert.Equal(t, 5, lastNew)
}

func TestDiffer_FirstSnapshotIsInitial(t *testing.T) {
	d := NewComparableDiffer[string]()

	first := d.Next([]string{"a"})
	assert.True(t, first.IsInitial())
	assert.Equal(t, []string{"a"}, first.Items)

	second := d.Next([]string{"a"})
	assert.True(t, second.IsEmpty())
}

func TestDiffer_EmptyFirstSnapshotStillInitial(t *testing.T) {
	d := NewComparableDiffer[string]()

	first := d.Next(nil)
	assert.True(t, first.IsInitial())
	assert.NotNil(t, first.Items)
	assert.Empty(t, first.Items)

	// After an empty Initial every later snapshot is an Update.
	second := d.Next([]string{"a", "b"})
	assert.Equal(t, KindUpdate, second.Kind)
	assert.Len(t, second.Inserted, 2)
}

func TestDiffer_DoesNotAliasInput(t *testing.T) {
	d := NewComparableDiffer[string]()
	snap := []string{"a", "b"}
	d.Next(snap)
	snap[0] = "z"

	c := d.Next([]string{"a", "b"})
	assert.True(t, c.IsEmpty())
}

func TestDiffer_RoundTripRandom(t *testing.T) {
	rng := rand.New(rand.NewPCG(42, 1024))
	alphabet := []string{"a", "b", "c", "d", "e", "f", "g"}

	randomSnapshot := func() []string {
		n := rng.IntN(12)
		out := make([]string, n)
		for i := range out {
			out[i] = alphabet[rng.IntN(len(alphabet))]
		}
		return out
	}

	for round := 0; round < 200; round++ {
		d := NewComparableDiffer[string]()
		var acc []string
		for step := 0; step < 8; step++ {
			snap := randomSnapshot()
			ApplyTo(&acc, d.Next(snap))
			require.Equal(t, snap, acc, "round %d step %d", round, step)
		}
	}
}

func TestDiffer_GoldenTrace(t *testing.T) {
	snapshots := [][]string{
		{"a", "b", "c"},
		{"a", "c", "d"},
		{},
		{"x"},
	}

	d := NewComparableDiffer[string]()
	var b strings.Builder
	var acc []string
	for i, snap := range snapshots {
		c := d.Next(snap)
		ApplyTo(&acc, c)
		require.Equal(t, snap, acc)
		fmt.Fprintf(&b, "#%d %s\n", i, c)
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "snapshot_trace", []byte(b.String()))
}
