package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/listsync/internal/harness"
)

// SimulateOptions holds flags for the simulate command.
type SimulateOptions struct {
	*RootOptions
	Trace bool // print each scenario's trace
}

// ScenarioResult is the outcome of one simulated scenario.
type ScenarioResult struct {
	Name   string               `json:"name"`
	Path   string               `json:"path"`
	Pass   bool                 `json:"pass"`
	Errors []string             `json:"errors,omitempty"`
	Window []int64              `json:"window,omitempty"`
	Page   []int64              `json:"page,omitempty"`
	Trace  []harness.TraceEvent `json:"trace,omitempty"`
}

// SimulateResult summarises a simulate run.
type SimulateResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewSimulateCommand creates the simulate command.
func NewSimulateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SimulateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "simulate <scenario.yaml|dir>",
		Short: "Run list scenarios against an in-memory backend",
		Long: `Run scripted scenarios against the list engine with an in-memory
backend and virtual time, and report the resulting windows and traces.

A directory is searched for .yaml and .yml files.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (missing path, unreadable scenario directory)

Examples:
  listsync simulate ./scenarios
  listsync simulate ./scenarios/initial_load.yaml --trace
  listsync simulate ./scenarios --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulate(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Trace, "trace", false, "include each scenario's trace")

	return cmd
}

func runSimulate(opts *SimulateOptions, path string, cmd *cobra.Command) error {
	out := opts.printer(cmd)

	if _, err := os.Stat(path); err != nil {
		return out.Failure(WrapExitError(ExitCommandError, "scenario path not found", err))
	}
	paths, err := harness.FindScenarios(path)
	if err != nil {
		return out.Failure(WrapExitError(ExitCommandError, "failed to find scenarios", err))
	}

	logger := opts.logger(cmd.ErrOrStderr())
	result := SimulateResult{
		Scenarios: make([]ScenarioResult, 0, len(paths)),
		Total:     len(paths),
	}
	for _, p := range paths {
		out.VerboseLog("Running scenario: %s", p)
		sr := simulateOne(p, opts.Trace, harness.WithLogger(logger))
		result.Scenarios = append(result.Scenarios, sr)
		if sr.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
	}

	if err := out.Result(result, func(w io.Writer) { writeSimulateText(w, result) }); err != nil {
		return err
	}
	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d scenarios failed", result.Failed, result.Total))
	}
	return nil
}

func simulateOne(path string, withTrace bool, opts ...harness.Option) ScenarioResult {
	sr := ScenarioResult{Name: path, Path: path}

	scenario, err := harness.LoadScenario(path)
	if err != nil {
		sr.Errors = []string{err.Error()}
		return sr
	}
	sr.Name = scenario.Name

	run, err := harness.Run(scenario, opts...)
	if err != nil {
		sr.Errors = []string{err.Error()}
		return sr
	}
	sr.Pass = run.Pass
	sr.Errors = run.Errors
	sr.Window = run.Window
	sr.Page = run.Page
	if withTrace {
		sr.Trace = run.Trace
	}
	return sr
}

func writeSimulateText(w io.Writer, result SimulateResult) {
	if result.Total == 0 {
		fmt.Fprintln(w, "No scenarios found.")
		return
	}
	for _, sr := range result.Scenarios {
		status := "PASS"
		if !sr.Pass {
			status = "FAIL"
		}
		fmt.Fprintf(w, "%s  %s  window=%v\n", status, sr.Name, sr.Window)
		for _, e := range sr.Errors {
			fmt.Fprintf(w, "      %s\n", e)
		}
		for _, ev := range sr.Trace {
			fmt.Fprintf(w, "      %s\n", formatTraceEvent(ev))
		}
	}
	fmt.Fprintf(w, "\n%d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)
}

func formatTraceEvent(ev harness.TraceEvent) string {
	switch ev.Type {
	case harness.EventInvocation:
		if len(ev.Args) > 0 {
			return fmt.Sprintf("[%d] %s %v", ev.Seq, ev.Op, ev.Args)
		}
		return fmt.Sprintf("[%d] %s", ev.Seq, ev.Op)
	case harness.EventCompletion:
		if ev.Error != "" {
			return fmt.Sprintf("[%d]   -> %s: %s", ev.Seq, ev.Outcome, ev.Error)
		}
		return fmt.Sprintf("[%d]   -> %s", ev.Seq, ev.Outcome)
	case harness.EventCommit:
		return fmt.Sprintf("[%d]   commit r%d %v top=%t bottom=%t", ev.Seq, ev.Revision, ev.Items, ev.ReachedTop, ev.ReachedBottom)
	case harness.EventScroll:
		return fmt.Sprintf("[%d]   scroll %d to %s found=%t", ev.Seq, ev.ID, ev.Edge, ev.Found)
	case harness.EventPage:
		return fmt.Sprintf("[%d]   page %d/%d %v count=%d", ev.Seq, ev.Page, ev.PagesCount, ev.Items, ev.Count)
	default:
		return fmt.Sprintf("[%d] %s", ev.Seq, ev.Type)
	}
}
