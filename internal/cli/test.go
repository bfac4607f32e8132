package cli

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/solforge/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update    bool   // regenerate golden files
	Filter    string // scenario filter (glob pattern)
	GoldenDir string // golden trace directory (default <dir>/golden)
}

// TestResult holds the overall test result.
type TestResult struct {
	*harness.SuiteResult
}

func (r TestResult) writeText(w io.Writer) {
	for _, s := range r.Scenarios {
		name := s.Name
		if name == "" {
			name = filepath.Base(s.Path)
		}
		if s.Pass {
			suffix := ""
			if s.Golden == "updated" {
				suffix = " (golden updated)"
			}
			fmt.Fprintf(w, "✓ %s%s\n", name, suffix)
			continue
		}
		fmt.Fprintf(w, "✗ %s\n", name)
		for _, e := range s.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Test Summary: %d passed, %d failed, %d total\n", r.Passed, r.Failed, r.Total)
	if r.OK() {
		fmt.Fprintln(w, "✓ All scenarios passed")
	}
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run YAML scenarios against a fresh vault",
		Long: `Run scenario files, each against its own in-memory database with a
deterministic clock, checking expectations, assertions, and golden traces.

Golden traces are read from <scenarios-dir>/golden/<name>.golden unless
--golden is given. Scenarios without a golden file are judged on their
assertions alone.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  solforge test ./scenarios
  solforge test ./scenarios --filter "timelock_*"
  solforge test ./scenarios --golden ./golden --update
  solforge test ./scenarios --format json`,
		Args:          exactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")
	cmd.Flags().StringVar(&opts.GoldenDir, "golden", "", "golden trace directory")

	return cmd
}

func runTests(opts *TestOptions, scenariosDir string, cmd *cobra.Command) error {
	if _, err := os.Stat(scenariosDir); errors.Is(err, fs.ErrNotExist) {
		return NewExitError(ExitCommandError, fmt.Sprintf("scenarios directory not found: %s", scenariosDir))
	}

	golden := opts.GoldenDir
	if golden == "" {
		golden = filepath.Join(scenariosDir, "golden")
	}
	suiteOpts := []harness.SuiteOption{harness.WithGoldenDir(golden, opts.Update)}
	if opts.Filter != "" {
		suiteOpts = append(suiteOpts, harness.WithFilter(opts.Filter))
	}

	opts.logger().Debug("running scenarios", "dir", scenariosDir, "golden", golden, "filter", opts.Filter)
	suite, err := harness.RunDir(cmd.Context(), scenariosDir, suiteOpts...)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to run scenarios", err)
	}

	out := opts.formatter(cmd)
	result := TestResult{SuiteResult: suite}
	if !suite.OK() {
		msg := fmt.Sprintf("%d scenario(s) failed", suite.Failed)
		_ = out.Failure(CodeTestFailed, msg, result)
		return reported(NewExitError(ExitFailure, msg))
	}
	return out.Success(result)
}
