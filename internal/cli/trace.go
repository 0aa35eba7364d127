package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/shade/internal/store"
	"github.com/roach88/shade/internal/trace"
	"github.com/roach88/shade/internal/wire"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database  string
	SessionID string // empty lists sessions
	Thread    int64
}

// TraceExchange is one recorded exchange.
type TraceExchange struct {
	Seq      int64           `json:"seq"`
	Thread   int64           `json:"thread"`
	Offset   uint32          `json:"offset"`
	Digest   string          `json:"digest"`
	DigestOK bool            `json:"digest_ok"`
	Command  json.RawMessage `json:"command"`
	Response json.RawMessage `json:"response"`
}

// TraceResult holds the recording of one session.
type TraceResult struct {
	SessionID   string          `json:"session_id"`
	Scenario    string          `json:"scenario,omitempty"`
	PointerSize int             `json:"pointer_size"`
	Threads     []int64         `json:"threads"`
	Exchanges   []TraceExchange `json:"exchanges"`
	Corrupt     int             `json:"corrupt"`
}

// SessionSummary is one line of the session listing.
type SessionSummary struct {
	ID          string `json:"id"`
	Scenario    string `json:"scenario,omitempty"`
	PointerSize int    `json:"pointer_size"`
	CreatedSeq  int64  `json:"created_seq"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show recorded exchanges",
		Long: `Show the commands and responses recorded for a session, in sequence
order, and check every exchange against its stored digest.

Without --session, lists the recorded sessions.

Exit codes:
  0 - Recording is intact
  1 - One or more exchanges do not match their digest
  2 - Command error (database or session not found, etc.)

Examples:
  shade trace --db ./shade.db
  shade trace --db ./shade.db --session 0190c0de-...
  shade trace --db ./shade.db --session 0190c0de-... --thread 1 --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.SessionID, "session", "", "session to show")
	cmd.Flags().Int64Var(&opts.Thread, "thread", store.AllThreads, "show one thread only")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := context.Background()
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	st, err := openExisting(opts.Database)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeDatabase, err.Error())
	}
	defer st.Close()

	if opts.SessionID == "" {
		return listSessions(ctx, st, formatter)
	}

	result, err := buildTrace(ctx, st, opts.SessionID, opts.Thread)
	if errors.Is(err, store.ErrNotFound) {
		return formatter.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("session not found: %s", opts.SessionID))
	}
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeDatabase, err.Error())
	}

	if opts.Format == "json" {
		response := CLIResponse{Status: "ok", Data: result, SessionID: result.SessionID}
		if result.Corrupt > 0 {
			response.Status = "error"
			response.Error = &CLIError{Code: ErrCodeDigest, Message: fmt.Sprintf("%d exchange(s) do not match their digest", result.Corrupt)}
		}
		if err := json.NewEncoder(formatter.Writer).Encode(response); err != nil {
			return err
		}
	} else {
		printTrace(formatter, result)
	}
	if result.Corrupt > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d exchange(s) do not match their digest", result.Corrupt))
	}
	return nil
}

func listSessions(ctx context.Context, st *store.Store, formatter *OutputFormatter) error {
	sessions, err := st.ListSessions(ctx)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeDatabase, err.Error())
	}
	out := make([]SessionSummary, len(sessions))
	for i, s := range sessions {
		out[i] = SessionSummary{ID: s.ID, Scenario: s.Scenario, PointerSize: s.PointerSize, CreatedSeq: s.CreatedSeq}
	}

	if formatter.Format == "json" {
		return formatter.Success(out)
	}
	if len(out) == 0 {
		fmt.Fprintln(formatter.Writer, "No sessions found in database.")
		return nil
	}
	for _, s := range out {
		fmt.Fprintf(formatter.Writer, "%s  %s  (pointer size %d)\n", s.ID, s.Scenario, s.PointerSize)
	}
	return nil
}

// buildTrace decodes the exchanges of a session and checks their digests.
func buildTrace(ctx context.Context, st *store.Store, sessionID string, thread int64) (TraceResult, error) {
	sess, err := st.ReadSession(ctx, sessionID)
	if err != nil {
		return TraceResult{}, err
	}
	codec, err := wire.NewCodec(sess.PointerSize)
	if err != nil {
		return TraceResult{}, fmt.Errorf("session %s: %w", sessionID, err)
	}
	threads, err := st.Threads(ctx, sessionID)
	if err != nil {
		return TraceResult{}, err
	}
	rows, err := st.ReadExchanges(ctx, sessionID, thread)
	if err != nil {
		return TraceResult{}, err
	}

	result := TraceResult{
		SessionID:   sess.ID,
		Scenario:    sess.Scenario,
		PointerSize: sess.PointerSize,
		Threads:     threads,
		Exchanges:   make([]TraceExchange, 0, len(rows)),
	}
	if result.Threads == nil {
		result.Threads = []int64{}
	}
	for _, row := range rows {
		te := TraceExchange{
			Seq:    row.Seq,
			Thread: row.ThreadID,
			Offset: row.Offset,
			Digest: row.Digest,
		}
		cmd, err := decodeRecord(codec, row.Request, false)
		if err != nil {
			cmd = errorRecord(err)
		}
		resp, err := decodeRecord(codec, row.Response, true)
		if err != nil {
			resp = errorRecord(err)
		}
		te.Command = cmd
		te.Response = resp

		digest, err := trace.Digest(codec, row.Request, row.Response)
		te.DigestOK = err == nil && digest == row.Digest
		if !te.DigestOK {
			result.Corrupt++
		}
		result.Exchanges = append(result.Exchanges, te)
	}
	return result, nil
}

func errorRecord(err error) json.RawMessage {
	data, _ := trace.MarshalCanonical(trace.Object{"error": trace.String(err.Error())})
	return data
}

func printTrace(f *OutputFormatter, r TraceResult) {
	w := f.Writer
	fmt.Fprintf(w, "Session: %s\n", r.SessionID)
	if r.Scenario != "" {
		fmt.Fprintf(w, "Scenario: %s\n", r.Scenario)
	}
	fmt.Fprintf(w, "Threads: %v\n\n", r.Threads)
	if len(r.Exchanges) == 0 {
		fmt.Fprintln(w, "No exchanges recorded.")
		return
	}
	for _, ex := range r.Exchanges {
		mark := " "
		if !ex.DigestOK {
			mark = "!"
		}
		fmt.Fprintf(w, "%s[%d] thread=%d offset=%d\n", mark, ex.Seq, ex.Thread, ex.Offset)
		fmt.Fprintf(w, "    -> %s\n", ex.Command)
		fmt.Fprintf(w, "    <- %s\n", ex.Response)
		if f.Verbose {
			fmt.Fprintf(w, "    digest %s\n", strings.TrimSpace(ex.Digest))
		}
	}
	fmt.Fprintf(w, "\n%d exchange(s), %d corrupt\n", len(r.Exchanges), r.Corrupt)
}
