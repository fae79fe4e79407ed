package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario is a scripted sequence of gateway writes, the subscriptions
// watching them, and assertions on the outcome.
type Scenario struct {
	// Name identifies the scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what the scenario exercises.
	Description string `yaml:"description"`

	// Schema is inline CUE declaring record kinds. Empty means the built-in
	// kinds.
	Schema string `yaml:"schema,omitempty"`

	// Setup steps run before any subscription starts.
	Setup []Step `yaml:"setup,omitempty"`

	// Watches are subscribed after setup and record every emission.
	Watches []Watch `yaml:"watches"`

	// Steps run one at a time; each waits for every watch to catch up.
	Steps []Step `yaml:"steps"`

	// Assertions check the final store and the recorded emissions.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Watch modes.
const (
	ModeArray   = "array"   // full results on every change
	ModeChanges = "changes" // store change notifications as changesets
	ModeOrdered = "ordered" // diffed child list of a container
)

// Watch is a subscription recorded into the trace.
type Watch struct {
	Name  string         `yaml:"name"`
	Mode  string         `yaml:"mode"`
	Kind  string         `yaml:"kind"`
	Where map[string]any `yaml:"where,omitempty"`
	Order []string       `yaml:"order,omitempty"`

	// List is the child list field watched in ordered mode.
	List string `yaml:"list,omitempty"`
}

// Step operations.
const (
	OpPut             = "put"
	OpDelete          = "delete"
	OpDeleteAll       = "delete_all"
	OpEnsureContainer = "ensure_container"
	OpAppend          = "append"
	OpUpdateChild     = "update_child"
	OpDeleteChild     = "delete_child"
)

// Step is one gateway operation.
type Step struct {
	Op      string           `yaml:"op"`
	Kind    string           `yaml:"kind,omitempty"`
	Records []map[string]any `yaml:"records,omitempty"`
	Policy  string           `yaml:"policy,omitempty"`
	Where   map[string]any   `yaml:"where,omitempty"`

	// List addresses the container child list for the child operations.
	List *ListRef `yaml:"list,omitempty"`

	// Key identifies the child removed by delete_child.
	Key any `yaml:"key,omitempty"`

	// ExpectError, when set, must be a substring of the step's error. Steps
	// without it must succeed.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// ListRef addresses the child list Field of the first Kind record matching
// Where; children are matched by their Key field.
type ListRef struct {
	Kind  string         `yaml:"kind"`
	Where map[string]any `yaml:"where"`
	Field string         `yaml:"field"`
	Key   string         `yaml:"key"`
}

// Assertion types.
const (
	AssertCount     = "count"
	AssertState     = "state"
	AssertEmissions = "emissions"
)

// Assertion checks the outcome of a scenario.
type Assertion struct {
	Type string `yaml:"type"`

	// Kind, Where and Order select records (count, state).
	Kind  string         `yaml:"kind,omitempty"`
	Where map[string]any `yaml:"where,omitempty"`
	Order []string       `yaml:"order,omitempty"`

	// Count is the expected record count (count) or emission count
	// (emissions).
	Count int `yaml:"count,omitempty"`

	// Expect lists the exact expected bodies, in result order (state).
	Expect []map[string]any `yaml:"expect,omitempty"`

	// Watch names the watch whose emissions are counted (emissions).
	Watch string `yaml:"watch,omitempty"`
}

// LoadScenario reads and parses a scenario YAML file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML. Unknown fields are rejected so typos
// like "step:" for "steps:" fail loudly.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	names := make(map[string]bool, len(s.Watches))
	for i, w := range s.Watches {
		if w.Name == "" {
			return fmt.Errorf("watches[%d]: name is required", i)
		}
		if names[w.Name] {
			return fmt.Errorf("watches[%d]: duplicate name %q", i, w.Name)
		}
		names[w.Name] = true
		if w.Kind == "" {
			return fmt.Errorf("watches[%d]: kind is required", i)
		}
		switch w.Mode {
		case ModeArray, ModeChanges:
		case ModeOrdered:
			if w.List == "" {
				return fmt.Errorf("watches[%d]: list is required for ordered mode", i)
			}
		default:
			return fmt.Errorf("watches[%d]: unknown mode %q", i, w.Mode)
		}
	}

	for i, step := range s.Setup {
		if err := validateStep(fmt.Sprintf("setup[%d]", i), step); err != nil {
			return err
		}
	}
	for i, step := range s.Steps {
		if err := validateStep(fmt.Sprintf("steps[%d]", i), step); err != nil {
			return err
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(i, a, names); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(at string, step Step) error {
	switch step.Op {
	case OpPut:
		if step.Kind == "" || len(step.Records) == 0 {
			return fmt.Errorf("%s: put needs kind and records", at)
		}
	case OpDelete:
		if step.Kind == "" {
			return fmt.Errorf("%s: delete needs kind", at)
		}
	case OpDeleteAll:
	case OpEnsureContainer, OpAppend, OpUpdateChild:
		if step.List == nil || len(step.Records) == 0 {
			return fmt.Errorf("%s: %s needs list and records", at, step.Op)
		}
	case OpDeleteChild:
		if step.List == nil || step.Key == nil {
			return fmt.Errorf("%s: delete_child needs list and key", at)
		}
	case "":
		return fmt.Errorf("%s: op is required", at)
	default:
		return fmt.Errorf("%s: unknown op %q", at, step.Op)
	}
	if step.List != nil && (step.List.Kind == "" || step.List.Field == "" || step.List.Key == "") {
		return fmt.Errorf("%s: list needs kind, field and key", at)
	}
	return nil
}

func validateAssertion(index int, a Assertion, watches map[string]bool) error {
	switch a.Type {
	case AssertCount:
		if a.Kind == "" {
			return fmt.Errorf("assertions[%d]: kind is required for count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative", index)
		}
	case AssertState:
		if a.Kind == "" {
			return fmt.Errorf("assertions[%d]: kind is required for state", index)
		}
	case AssertEmissions:
		if !watches[a.Watch] {
			return fmt.Errorf("assertions[%d]: unknown watch %q", index, a.Watch)
		}
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
