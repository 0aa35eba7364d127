package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/shade/internal/probe"
	"github.com/roach88/shade/internal/session"
	"github.com/roach88/shade/internal/store"
	"github.com/roach88/shade/internal/trace"
	"github.com/roach88/shade/internal/transport"
	"github.com/roach88/shade/internal/wire"
)

// RunOption configures Run.
type RunOption func(*runConfig)

type runConfig struct {
	store  *store.Store
	ids    session.IDGenerator
	logger *slog.Logger

	replay        *store.Store
	replaySession string
}

// WithStore records the run in st instead of a throwaway in-memory store.
func WithStore(st *store.Store) RunOption {
	return func(c *runConfig) {
		c.store = st
	}
}

// WithIDGenerator generates the session ID of scenarios that do not name
// one.
func WithIDGenerator(g session.IDGenerator) RunOption {
	return func(c *runConfig) {
		c.ids = g
	}
}

// WithLogger sets the logger handed to the session and its trackers.
// Runs are silent by default.
func WithLogger(l *slog.Logger) RunOption {
	return func(c *runConfig) {
		c.logger = l
	}
}

// WithReplay answers every command from the exchanges recorded for
// sessionID in src instead of the scenario's scripted responses. A request
// that differs from its recording stops the run with a DivergenceError.
// The replayed run is still recorded, in the store given by WithStore.
func WithReplay(src *store.Store, sessionID string) RunOption {
	return func(c *runConfig) {
		c.replay = src
		c.replaySession = sessionID
	}
}

// harness runs the steps of one scenario.
type harness struct {
	sess      *session.Session
	executors map[int64]*ScriptedExecutor
	replays   map[int64]*transport.Replay
	replaying bool
}

// Run executes a scenario and returns the result.
//
// Each thread gets its own tracker and ScriptedExecutor. Every exchange is
// recorded, then read back from the store, so the result shows exactly
// what a later replay would see. The run stops at the first step that
// fails; the failure is part of the result, not an error. Run returns an
// error only when the run itself cannot be set up or read back.
func Run(scenario *Scenario, opts ...RunOption) (*Result, error) {
	cfg := runConfig{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	ctx := context.Background()

	st := cfg.store
	if st == nil {
		mem, err := store.Open(":memory:")
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory store: %w", err)
		}
		defer mem.Close()
		st = mem
	}

	pointerSize := scenario.PointerSize
	if pointerSize == 0 {
		pointerSize = wire.DefaultPointerSize
	}
	codec, err := wire.NewCodec(pointerSize)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}

	ids := cfg.ids
	switch {
	case scenario.Session != "":
		ids = session.NewFixedGenerator(scenario.Session)
	case ids == nil:
		ids = session.NewFixedGenerator(DefaultSessionID)
	}

	if cfg.replay != nil {
		recorded, err := cfg.replay.ReadSession(ctx, cfg.replaySession)
		if err != nil {
			return nil, fmt.Errorf("replay session %s: %w", cfg.replaySession, err)
		}
		if recorded.PointerSize != pointerSize {
			return nil, fmt.Errorf("replay session %s was recorded with pointer size %d, scenario uses %d",
				cfg.replaySession, recorded.PointerSize, pointerSize)
		}
	}

	h := &harness{
		executors: make(map[int64]*ScriptedExecutor),
		replays:   make(map[int64]*transport.Replay),
		replaying: cfg.replay != nil,
	}
	factory := func(threadID int64) (transport.Transport, error) {
		if cfg.replay != nil {
			rows, err := cfg.replay.ReadExchanges(ctx, cfg.replaySession, threadID)
			if err != nil {
				return nil, err
			}
			r := transport.NewReplay(rows)
			h.replays[threadID] = r
			return r, nil
		}
		ex := NewScriptedExecutor(codec)
		h.executors[threadID] = ex
		return ex, nil
	}
	sess, err := session.New(ctx,
		session.WithTransportFactory(factory),
		session.WithIDGenerator(ids),
		session.WithRecorder(st),
		session.WithScenario(scenario.Name),
		session.WithPointerSize(pointerSize),
		session.WithLogger(cfg.logger))
	if err != nil {
		return nil, fmt.Errorf("start session: %w", err)
	}
	h.sess = sess

	result := NewResult()
	result.SessionID = sess.ID
	for i, step := range scenario.Steps {
		got, hasResult, err := h.runStep(step)
		if err != nil {
			result.Failure = err
			result.FailedStep = i
			break
		}
		if step.Expect != nil && hasResult && got != *step.Expect {
			result.AddError(fmt.Sprintf("steps[%d] %s: got %t, expected %t",
				i, step.Action(), got, *step.Expect))
		}
	}

	for _, id := range sess.Threads() {
		tr, err := sess.Tracker(id)
		if err != nil {
			return nil, err
		}
		result.Threads[id] = threadState(tr)
		if r, ok := h.replays[id]; ok && result.Failure == nil && r.Remaining() > 0 {
			result.AddError(fmt.Sprintf("thread %d: %d recorded exchanges not replayed", id, r.Remaining()))
		}
	}

	exchanges, err := readExchanges(ctx, st, codec, sess.ID)
	if err != nil {
		return nil, err
	}
	result.Exchanges = exchanges

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	if result.Failure != nil && !expectsFailure(scenario.Assertions) {
		result.AddError(fmt.Sprintf("steps[%d] failed: %v", result.FailedStep, result.Failure))
	}
	return result, nil
}

// runStep performs one step. hasResult reports whether got is meaningful.
func (h *harness) runStep(step Step) (got, hasResult bool, err error) {
	tr, err := h.sess.Tracker(step.Thread)
	if err != nil {
		return false, false, err
	}
	if step.Respond != nil && !h.replaying {
		if err := h.queue(step.Thread, step.Respond); err != nil {
			return false, false, err
		}
	}

	switch step.Action() {
	case "enter_main":
		m := step.EnterMain
		concrete := m.Concrete == nil || *m.Concrete
		return false, false, tr.EnterMain(m.Token, m.Args, concrete, m.MaxStack, m.Locals)
	case "enter":
		e := step.Enter
		return false, false, tr.Enter(e.Token, e.MaxStack, e.Args, e.Locals)
	case "track":
		in, ok := probe.Lookup(step.Track)
		if !ok {
			return false, false, fmt.Errorf("unknown mnemonic %q", step.Track)
		}
		index := in.Index
		if step.Index != nil {
			index = *step.Index
		}
		shape, _ := probe.ShapeOf(in.Op)
		if shape.Slot != probe.SlotNone {
			got, err := tr.TrackSlot(in.Op, index, step.Offset)
			return got, true, err
		}
		got, err := tr.Track(in.Op, step.Offset)
		return got, true, err
	case "exec":
		in, ok := probe.Lookup(step.Exec)
		if !ok {
			return false, false, fmt.Errorf("unknown mnemonic %q", step.Exec)
		}
		ops, err := toOperands(step.Operands)
		if err != nil {
			return false, false, err
		}
		got, err := tr.Exec(in.Op, step.Offset, ops...)
		return got, true, err
	case "call":
		c := step.Call
		if c.Virtual {
			return false, false, tr.CallVirt(c.Args, step.Offset)
		}
		unresolved := c.Unresolved
		if unresolved == 0 {
			unresolved = c.Token
		}
		return false, false, tr.Call(c.Token, unresolved, c.Newobj, c.Args, step.Offset)
	case "leave":
		return false, false, tr.Leave(step.Leave.Returns, step.Offset)
	case "leave_main":
		return false, false, tr.LeaveMain(step.LeaveMain.Returns)
	case "finalize":
		return false, false, tr.FinalizeCall(step.Finalize.Returns)
	case "unwind":
		return false, false, tr.Unwind(*step.Unwind)
	case "calli":
		return false, false, tr.Calli(step.Offset)
	default:
		return false, false, fmt.Errorf("step has no single action")
	}
}

func (h *harness) queue(threadID int64, spec *ResponseSpec) error {
	ex, ok := h.executors[threadID]
	if !ok {
		return fmt.Errorf("no executor for thread %d", threadID)
	}
	if spec.Raw != "" {
		raw, err := spec.RawBytes()
		if err != nil {
			return err
		}
		ex.PushRaw(raw)
		return nil
	}
	resp, err := spec.Response()
	if err != nil {
		return err
	}
	return ex.Push(resp)
}

func threadState(tr *probe.Tracker) ThreadState {
	ts := ThreadState{
		Depth:     tr.Stack().Depth(),
		EvalStack: []bool{},
		Stats:     tr.Stats(),
	}
	if top, err := tr.Stack().Top(); err == nil {
		ts.EvalStack = top.EvalStack()
	}
	return ts
}

// readExchanges loads a session's exchanges and decodes them. Pairs that
// do not decode were never recorded, so every row decodes.
func readExchanges(ctx context.Context, st *store.Store, codec wire.Codec, sessionID string) ([]trace.Exchange, error) {
	rows, err := st.ReadExchanges(ctx, sessionID, store.AllThreads)
	if err != nil {
		return nil, fmt.Errorf("read exchanges: %w", err)
	}
	out := make([]trace.Exchange, 0, len(rows))
	for _, row := range rows {
		cmd, resp, err := trace.Decode(codec, row.Request, row.Response)
		if err != nil {
			return nil, fmt.Errorf("exchange %d: %w", row.Seq, err)
		}
		out = append(out, trace.Exchange{
			Seq:      row.Seq,
			ThreadID: row.ThreadID,
			Command:  cmd,
			Response: resp,
		})
	}
	return out, nil
}

func expectsFailure(assertions []Assertion) bool {
	for _, a := range assertions {
		if a.Type == AssertFailure {
			return true
		}
	}
	return false
}
