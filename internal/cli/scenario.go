package cli

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/nbhd/internal/harness"
)

// ScenarioOptions holds flags for the scenario command.
type ScenarioOptions struct {
	*RootOptions
	Golden string
	Update bool
	Filter string
}

// ScenarioResult is the outcome of one scenario file.
type ScenarioResult struct {
	Name   string   `json:"name"`
	Path   string   `json:"path"`
	Pass   bool     `json:"pass"`
	Errors []string `json:"errors,omitempty"`
}

// ScenarioReport aggregates every scenario the command ran.
type ScenarioReport struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

func (r ScenarioReport) String() string {
	var b strings.Builder
	for _, s := range r.Scenarios {
		if s.Pass {
			fmt.Fprintf(&b, "✓ %s\n", s.Name)
			continue
		}
		fmt.Fprintf(&b, "✗ %s\n", s.Name)
		for _, e := range s.Errors {
			fmt.Fprintf(&b, "  %s\n", e)
		}
	}
	fmt.Fprintf(&b, "\nScenario Summary: %d passed, %d failed, %d total", r.Passed, r.Failed, r.Total)
	return b.String()
}

// NewScenarioCommand creates the scenario command.
func NewScenarioCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ScenarioOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "scenario <file-or-dir>...",
		Short: "Run deterministic resolution scenarios",
		Long: `Run YAML scenarios against an in-memory store and a manual clock.

Each scenario seeds its fixture, drives the engine step by step, and checks
the expectations attached to each step. With --golden the recorded trace is
also compared against <golden>/<name>.golden; --update rewrites those files.

Example:
  nbhd scenario ./scenarios
  nbhd scenario --golden ./golden ./scenarios/retry_backoff.yaml
  nbhd scenario --golden ./golden --update ./scenarios`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarios(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Golden, "golden", "", "directory of golden trace files")
	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files (requires --golden)")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern on the file name")

	return cmd
}

func runScenarios(opts *ScenarioOptions, args []string, cmd *cobra.Command) error {
	f := newFormatter(cmd, opts.RootOptions)

	if opts.Update && opts.Golden == "" {
		return f.Fail(CodeConfig, NewExitError(ExitCommandError, "--update requires --golden"))
	}

	var files []string
	for _, arg := range args {
		found, err := findScenarioFiles(arg, opts.Filter)
		if err != nil {
			return f.Fail(CodeConfig, WrapExitError(ExitCommandError, "failed to find scenarios", err))
		}
		files = append(files, found...)
	}

	report := ScenarioReport{Scenarios: make([]ScenarioResult, 0, len(files))}
	logger := newLogger(io.Discard, false)
	if opts.Verbose {
		logger = newLogger(cmd.ErrOrStderr(), true)
	}

	for _, path := range files {
		res := runScenarioFile(cmd, opts, path, harness.WithLogger(logger))
		report.Scenarios = append(report.Scenarios, res)
		report.Total++
		if res.Pass {
			report.Passed++
		} else {
			report.Failed++
		}
	}

	if report.Total == 0 {
		if f.Format == "json" {
			return f.Success(report)
		}
		return f.Success("No scenarios found.")
	}

	if report.Failed > 0 {
		err := NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", report.Failed))
		if f.Format == "json" {
			return f.FailWith(CodeScenario, err, report)
		}
		if werr := f.Success(report); werr != nil {
			return werr
		}
		return err
	}
	return f.Success(report)
}

// findScenarioFiles expands path into the YAML scenario files it names.
func findScenarioFiles(path, filter string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	var files []string
	err = filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := filepath.Ext(p)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		if filter != "" {
			name := strings.TrimSuffix(filepath.Base(p), ext)
			matched, err := filepath.Match(filter, name)
			if err != nil {
				return fmt.Errorf("invalid filter pattern: %w", err)
			}
			if !matched {
				return nil
			}
		}
		files = append(files, p)
		return nil
	})
	return files, err
}

func runScenarioFile(cmd *cobra.Command, opts *ScenarioOptions, path string, hopts ...harness.Option) ScenarioResult {
	sc, err := harness.LoadScenario(path)
	if err != nil {
		return ScenarioResult{
			Name:   filepath.Base(path),
			Path:   path,
			Errors: []string{fmt.Sprintf("failed to load scenario: %v", err)},
		}
	}

	out := ScenarioResult{Name: sc.Name, Path: path}
	result, err := harness.Run(cmd.Context(), sc, hopts...)
	if err != nil {
		out.Errors = []string{fmt.Sprintf("execution failed: %v", err)}
		return out
	}
	out.Errors = append(out.Errors, result.Errors...)

	if opts.Golden != "" {
		if msg := checkGolden(opts, sc.Name, result); msg != "" {
			out.Errors = append(out.Errors, msg)
		}
	}
	out.Pass = len(out.Errors) == 0
	return out
}

// checkGolden compares (or with --update, rewrites) the golden trace for
// name. It returns a failure message, or "" when the trace matches.
func checkGolden(opts *ScenarioOptions, name string, result *harness.Result) string {
	data, err := harness.MarshalTrace(name, result)
	if err != nil {
		return fmt.Sprintf("failed to marshal trace: %v", err)
	}
	path := filepath.Join(opts.Golden, name+".golden")

	if opts.Update {
		if err := os.MkdirAll(opts.Golden, 0o755); err != nil {
			return fmt.Sprintf("failed to create golden directory: %v", err)
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Sprintf("failed to write golden file: %v", err)
		}
		return ""
	}

	want, err := os.ReadFile(path)
	if err != nil {
		return fmt.Sprintf("failed to read golden file: %v", err)
	}
	if !bytes.Equal(want, data) {
		return "trace does not match golden file (run with --update to regenerate)"
	}
	return ""
}
