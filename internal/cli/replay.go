package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/shade/internal/harness"
	"github.com/roach88/shade/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database  string
	SessionID string
}

// ReplayResult holds the outcome of a replay.
type ReplayResult struct {
	SessionID     string    `json:"session_id"`
	Scenario      string    `json:"scenario"`
	Exchanges     int       `json:"exchanges"`
	Deterministic bool      `json:"deterministic"`
	Failure       *CLIError `json:"failure,omitempty"`
	Errors        []string  `json:"errors,omitempty"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay <scenario>",
		Short: "Replay a recorded session and verify determinism",
		Long: `Run a scenario again, answering every command with the response
recorded for the session instead of the scenario's scripted responses.

The replay is deterministic when every command matches its recording byte
for byte, every recorded exchange is used and the scenario's assertions
still hold.

Exit codes:
  0 - Replay is deterministic
  1 - Replay diverged from the recording
  2 - Command error (database or session not found, etc.)

Examples:
  shade replay --db ./shade.db --session 0190c0de-... scenarios/mixed_binop.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.SessionID, "session", "", "session to replay (required)")
	_ = cmd.MarkFlagRequired("session")

	return cmd
}

func runReplay(opts *ReplayOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	scenario, err := LoadScenarioFile(path)
	if err != nil {
		code, msg := loadErrorCode(err)
		return formatter.Fail(ExitCommandError, code, msg)
	}

	st, err := openExisting(opts.Database)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeDatabase, err.Error())
	}
	defer st.Close()

	result, err := harness.Run(scenario,
		harness.WithReplay(st, opts.SessionID),
		harness.WithLogger(newLogger(opts.RootOptions, cmd.ErrOrStderr())))
	if errors.Is(err, store.ErrNotFound) {
		return formatter.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("session not found: %s", opts.SessionID))
	}
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, err.Error())
	}

	out := ReplayResult{
		SessionID:     opts.SessionID,
		Scenario:      scenario.Name,
		Exchanges:     len(result.Exchanges),
		Deterministic: result.Pass,
		Errors:        result.Errors,
	}
	if result.Failure != nil {
		out.Failure = DescribeError(result.Failure, harness.FailureCode(result.Failure))
	}

	if opts.Format == "json" {
		if err := formatter.Success(out); err != nil {
			return err
		}
	} else {
		w := formatter.Writer
		if out.Deterministic {
			fmt.Fprintf(w, "✓ %s: %d exchange(s) replayed deterministically\n", out.Scenario, out.Exchanges)
		} else {
			fmt.Fprintf(w, "✗ %s: replay diverged after %d exchange(s)\n", out.Scenario, out.Exchanges)
			for _, e := range out.Errors {
				fmt.Fprintf(w, "  %s\n", e)
			}
		}
	}
	if !out.Deterministic {
		return NewExitError(ExitFailure, fmt.Sprintf("replay of session %s diverged", opts.SessionID))
	}
	return nil
}

// openExisting opens a database that must already exist. store.Open would
// create an empty one.
func openExisting(path string) (*store.Store, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("database not found: %s", path)
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return st, nil
}
