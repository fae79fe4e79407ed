package cli

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AppleFlash/BackgroundRealm/internal/harness"
)

// ScenarioOptions holds flags for the scenario command.
type ScenarioOptions struct {
	*RootOptions
	Update    bool   // regenerate golden files
	Filter    string // scenario filter (glob pattern)
	GoldenDir string // defaults to <scenarios-dir>/golden
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name   string   `json:"name"`
	Pass   bool     `json:"pass"`
	Errors []string `json:"errors,omitempty"`
}

// ScenarioSummary holds the overall result.
type ScenarioSummary struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewScenarioCommand creates the scenario command.
func NewScenarioCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ScenarioOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "scenario <scenarios-dir>",
		Short: "Run scripted gateway scenarios",
		Long: `Run every YAML scenario in a directory against a private in-memory
store and compare each emission trace with its golden file.

A scenario without a golden file passes on its assertions alone.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (missing directory, bad filter)

Examples:
  bgrealm scenario ./scenarios
  bgrealm scenario ./scenarios --filter "child-*"
  bgrealm scenario ./scenarios --update`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarios(cmd, opts, args[0])
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")
	cmd.Flags().StringVar(&opts.GoldenDir, "golden", "", "golden file directory (default <scenarios-dir>/golden)")

	return cmd
}

func runScenarios(cmd *cobra.Command, opts *ScenarioOptions, dir string) error {
	out := opts.formatter(cmd)

	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return report(out, NewExitError(ExitCommandError, fmt.Sprintf("scenarios directory not found: %s", dir)))
	}
	files, err := findScenarioFiles(dir, opts.Filter)
	if err != nil {
		return report(out, WrapExitError(ExitCommandError, "failed to find scenarios", err))
	}

	goldenDir := opts.GoldenDir
	if goldenDir == "" {
		goldenDir = filepath.Join(dir, "golden")
	}

	summary := ScenarioSummary{
		Scenarios: make([]ScenarioResult, 0, len(files)),
		Total:     len(files),
	}
	for _, file := range files {
		res := runScenario(file, goldenDir, opts.Update)
		out.VerboseLog("scenario %s: pass=%t", res.Name, res.Pass)
		if out.Format != "json" {
			printScenario(out, res)
		}
		summary.Scenarios = append(summary.Scenarios, res)
		if res.Pass {
			summary.Passed++
		} else {
			summary.Failed++
		}
	}

	var failed error
	if summary.Failed > 0 {
		failed = NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", summary.Failed))
	}

	if out.Format == "json" {
		if err := out.Success(summary); err != nil {
			return err
		}
		return failed
	}

	if summary.Total == 0 {
		fmt.Fprintln(out.Writer, "No scenarios found.")
		return nil
	}
	fmt.Fprintf(out.Writer, "\nSummary: %d passed, %d failed, %d total\n", summary.Passed, summary.Failed, summary.Total)
	return failed
}

func printScenario(out *OutputFormatter, res ScenarioResult) {
	if res.Pass {
		fmt.Fprintf(out.Writer, "✓ %s\n", res.Name)
		return
	}
	fmt.Fprintf(out.Writer, "✗ %s\n", res.Name)
	for _, e := range res.Errors {
		fmt.Fprintf(out.Writer, "  %s\n", e)
	}
}

// findScenarioFiles lists the .yaml and .yml files directly in dir whose
// base name matches filter.
func findScenarioFiles(dir, filter string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, e := range entries {
		ext := filepath.Ext(e.Name())
		if e.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		if filter != "" {
			matched, err := filepath.Match(filter, strings.TrimSuffix(e.Name(), ext))
			if err != nil {
				return nil, fmt.Errorf("invalid filter pattern: %w", err)
			}
			if !matched {
				continue
			}
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	return files, nil
}

// runScenario executes one scenario file and checks it against its golden
// file, or rewrites the golden file when update is set.
func runScenario(file, goldenDir string, update bool) ScenarioResult {
	scenario, err := harness.LoadScenario(file)
	if err != nil {
		return ScenarioResult{
			Name:   filepath.Base(file),
			Errors: []string{fmt.Sprintf("failed to load scenario: %v", err)},
		}
	}

	result, err := harness.Run(scenario)
	if err != nil {
		return ScenarioResult{
			Name:   scenario.Name,
			Errors: []string{fmt.Sprintf("execution failed: %v", err)},
		}
	}

	res := ScenarioResult{Name: scenario.Name, Pass: result.Pass, Errors: result.Errors}
	trace := result.Render(scenario.Name)
	goldenPath := filepath.Join(goldenDir, scenario.Name+".golden")

	if update {
		if err := os.MkdirAll(goldenDir, 0755); err != nil {
			return failScenario(res, fmt.Sprintf("failed to create golden directory: %v", err))
		}
		if err := os.WriteFile(goldenPath, trace, 0644); err != nil {
			return failScenario(res, fmt.Sprintf("failed to write golden file: %v", err))
		}
		return res
	}

	golden, err := os.ReadFile(goldenPath)
	switch {
	case os.IsNotExist(err):
		return res
	case err != nil:
		return failScenario(res, fmt.Sprintf("failed to read golden file: %v", err))
	case !bytes.Equal(golden, trace):
		return failScenario(res, "trace does not match golden file (run with --update to regenerate)")
	}
	return res
}

func failScenario(res ScenarioResult, msg string) ScenarioResult {
	res.Pass = false
	res.Errors = append(res.Errors, msg)
	return res
}
