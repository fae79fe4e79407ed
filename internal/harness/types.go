package harness

import (
	"bytes"
	"fmt"
)

// TraceEvent is one recorded emission, or a failed step when Watch is empty.
type TraceEvent struct {
	// Step is the 1-based step that caused the event; 0 for the emissions
	// made when the watches start.
	Step int `json:"step"`

	// Watch names the emitting watch.
	Watch string `json:"watch,omitempty"`

	// Change renders the emission with canonical JSON elements.
	Change string `json:"change"`
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every step, watch and assertion checked out.
	Pass bool `json:"pass"`

	// Trace holds every emission in delivery order.
	Trace []TraceEvent `json:"trace"`

	// Errors explains each failure. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError records a failure.
func (r *Result) AddError(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
	r.Pass = false
}

// Render formats the trace one event per line, as stored in golden files.
func (r *Result) Render(scenario string) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "scenario: %s\n", scenario)
	for _, e := range r.Trace {
		if e.Watch == "" {
			fmt.Fprintf(&buf, "[%d] ! %s\n", e.Step, e.Change)
			continue
		}
		fmt.Fprintf(&buf, "[%d] %s: %s\n", e.Step, e.Watch, e.Change)
	}
	return buf.Bytes()
}
