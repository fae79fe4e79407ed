package harness

import (
	"context"
	"fmt"
	"strings"

	"github.com/AppleFlash/BackgroundRealm/internal/record"
	"github.com/AppleFlash/BackgroundRealm/internal/store"
)

// AssertionError describes a failed assertion.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
}

func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  actual: %s", e.Actual)
	return buf.String()
}

// evaluate checks one assertion. Caller holds h.mu.
func (h *Harness) evaluate(ctx context.Context, a Assertion) error {
	switch a.Type {
	case AssertCount:
		q, err := buildQuery(a.Kind, a.Where, nil)
		if err != nil {
			return err
		}
		n, err := h.store.Count(ctx, q)
		if err != nil {
			return err
		}
		if n != a.Count {
			return &AssertionError{
				Type:     AssertCount,
				Expected: fmt.Sprintf("%d %s record(s)", a.Count, a.Kind),
				Actual:   fmt.Sprintf("%d", n),
			}
		}

	case AssertState:
		q, err := buildQuery(a.Kind, a.Where, a.Order)
		if err != nil {
			return err
		}
		recs, err := h.store.Query(ctx, q)
		if err != nil {
			return err
		}
		want, err := toObjects(a.Expect)
		if err != nil {
			return err
		}
		got := store.Bodies(recs)
		if !equalObjects(got, want) {
			return &AssertionError{
				Type:     AssertState,
				Expected: fmt.Sprint(render(want)),
				Actual:   fmt.Sprint(render(got)),
			}
		}

	case AssertEmissions:
		for _, w := range h.watches {
			if w.Name != a.Watch {
				continue
			}
			if w.emissions != a.Count {
				return &AssertionError{
					Type:     AssertEmissions,
					Expected: fmt.Sprintf("%d emission(s) from %s", a.Count, a.Watch),
					Actual:   fmt.Sprintf("%d", w.emissions),
				}
			}
			return nil
		}
		return fmt.Errorf("unknown watch %q", a.Watch)

	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}

func equalObjects(a, b []record.Object) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !record.Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}
