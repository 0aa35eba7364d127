package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/shade/internal/harness"
	"github.com/roach88/shade/internal/session"
	"github.com/roach88/shade/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string

	// IDs overrides the session ID generator (for testing). If nil, runs
	// recorded to a database get UUIDv7 session IDs.
	IDs session.IDGenerator
}

// RunResult is the outcome of one scenario run.
type RunResult struct {
	Scenario   string    `json:"scenario"`
	SessionID  string    `json:"session_id"`
	Pass       bool      `json:"pass"`
	Commands   int       `json:"commands"`
	Failure    *CLIError `json:"failure,omitempty"`
	FailedStep int       `json:"failed_step,omitempty"`
	Errors     []string  `json:"errors,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenario>",
		Short: "Run a scenario against the tracker",
		Long: `Run one scenario against the tracker and a scripted executor.

With --db, the session and every exchange are recorded in a SQLite database
(created if it doesn't exist) under a fresh session ID, ready for trace and
replay. Without it the run is recorded in memory only.

Exit codes:
  0 - Scenario passed
  1 - A step, expectation or assertion failed
  2 - Command error (missing scenario, database error, etc.)

Examples:
  shade run scenarios/mixed_binop.yaml
  shade run --db ./shade.db scenarios/mixed_binop.yaml --verbose`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenario(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database")

	return cmd
}

func runScenario(opts *RunOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())

	scenario, err := LoadScenarioFile(path)
	if err != nil {
		code, msg := loadErrorCode(err)
		return formatter.Fail(ExitCommandError, code, msg)
	}

	runOpts := []harness.RunOption{harness.WithLogger(logger)}
	if opts.Database != "" {
		st, err := store.Open(opts.Database)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeDatabase, fmt.Sprintf("failed to open database: %v", err))
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Error("error closing database", "error", closeErr)
			}
		}()
		ids := opts.IDs
		if ids == nil {
			ids = session.UUIDv7Generator{}
		}
		runOpts = append(runOpts, harness.WithStore(st), harness.WithIDGenerator(ids))
	}

	formatter.VerboseLog("running %s (%d steps)", scenario.Name, len(scenario.Steps))
	result, err := harness.Run(scenario, runOpts...)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, err.Error())
	}

	out := RunResult{
		Scenario:  scenario.Name,
		SessionID: result.SessionID,
		Pass:      result.Pass,
		Commands:  len(result.Exchanges),
		Errors:    result.Errors,
	}
	if result.Failure != nil {
		out.Failure = DescribeError(result.Failure, harness.FailureCode(result.Failure))
		out.FailedStep = result.FailedStep
	}

	if opts.Format == "json" {
		if err := formatter.Success(out); err != nil {
			return err
		}
	} else {
		printRunResult(formatter, out)
	}
	if !out.Pass {
		return NewExitError(ExitFailure, fmt.Sprintf("scenario %s failed", scenario.Name))
	}
	return nil
}

func printRunResult(f *OutputFormatter, r RunResult) {
	mark := "✓"
	if !r.Pass {
		mark = "✗"
	}
	fmt.Fprintf(f.Writer, "%s %s: %d commands (session %s)\n", mark, r.Scenario, r.Commands, r.SessionID)
	if r.Failure != nil {
		fmt.Fprintf(f.Writer, "  stopped at step %d: %s\n", r.FailedStep, r.Failure)
	}
	for _, e := range r.Errors {
		fmt.Fprintf(f.Writer, "  %s\n", e)
	}
}
