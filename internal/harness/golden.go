package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"
)

// RunWithGolden runs scenario, fails t on any check failure, and compares
// the rendered trace with testdata/golden/<name>.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) *Result {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		t.Fatalf("scenario %s: %v", scenario.Name, err)
	}
	for _, msg := range result.Errors {
		t.Errorf("scenario %s: %s", scenario.Name, msg)
	}
	AssertGolden(t, scenario.Name, result)
	return result
}

// AssertGolden compares an existing result's trace with its golden file.
func AssertGolden(t *testing.T, name string, result *Result) {
	t.Helper()
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, result.Render(name))
}
