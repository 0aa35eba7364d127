package probe

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/shade/internal/shadow"
	"github.com/roach88/shade/internal/transport"
	"github.com/roach88/shade/internal/wire"
)

// Tracker follows one managed thread.
//
// A Tracker is not safe for concurrent use. The instrumentation calls it
// from the thread it tracks and nowhere else.
type Tracker struct {
	stack        *shadow.Stack
	transport    transport.Transport
	codec        wire.Codec
	memory       OperandMemory
	materializer Materializer
	logger       *slog.Logger

	pointerSize int
	stackOpts   []shadow.StackOption

	pending  *pendingExec
	inFlight bool
	err      error
	offset   uint32
	stats    Stats
}

// pendingExec is a two-phase instruction waiting for its operand values.
type pendingExec struct {
	op    Opcode
	shape Shape
	depth int
}

// Stats counts what a Tracker has seen.
type Stats struct {
	Instructions int
	Commands     int
	Concretized  int
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(t *Tracker) {
		t.logger = l
	}
}

// WithMaterializer adds a Materializer that runs after the operand memory
// has been updated.
func WithMaterializer(m Materializer) Option {
	return func(t *Tracker) {
		t.materializer = m
	}
}

// WithPointerSize sets the width of Ref payloads on the wire (4 or 8).
func WithPointerSize(n int) Option {
	return func(t *Tracker) {
		t.pointerSize = n
	}
}

// WithMaxDepth bounds the shadow call stack.
func WithMaxDepth(n int) Option {
	return func(t *Tracker) {
		t.stackOpts = append(t.stackOpts, shadow.WithMaxDepth(n))
	}
}

// New creates a Tracker that talks to the executor through tr.
func New(tr transport.Transport, opts ...Option) (*Tracker, error) {
	if tr == nil {
		return nil, errors.New("probe: nil transport")
	}
	t := &Tracker{
		transport:   tr,
		logger:      slog.Default(),
		pointerSize: wire.DefaultPointerSize,
	}
	for _, opt := range opts {
		opt(t)
	}
	codec, err := wire.NewCodec(t.pointerSize)
	if err != nil {
		return nil, fmt.Errorf("probe: %w", err)
	}
	t.codec = codec
	t.stack = shadow.NewStack(t.stackOpts...)
	return t, nil
}

// Stack returns the shadow call stack.
func (t *Tracker) Stack() *shadow.Stack { return t.stack }

// Err returns the error that poisoned the tracker, or nil.
func (t *Tracker) Err() error { return t.err }

// Stats returns the tracker's counters.
func (t *Tracker) Stats() Stats { return t.stats }

// Codec returns the codec used for commands and responses.
func (t *Tracker) Codec() wire.Codec { return t.codec }

// Operand returns operand i of the last dispatched instruction, including
// any value the executor concretized.
func (t *Tracker) Operand(i int) (wire.Operand, error) {
	return t.memory.Load(i)
}

// Operands returns every operand of the last dispatched instruction.
func (t *Tracker) Operands() []wire.Operand {
	return t.memory.Values()
}

// guard rejects calls on a poisoned tracker.
func (t *Tracker) guard() error {
	if t.err != nil {
		return fmt.Errorf("%w: %w", ErrPoisoned, t.err)
	}
	return nil
}

// fail poisons the tracker with err and returns it.
func (t *Tracker) fail(err error) error {
	if t.err == nil {
		t.err = err
		t.logger.Error("tracker poisoned",
			"error", err,
			"depth", t.stack.Depth(),
			"offset", t.offset)
	}
	return err
}

func (t *Tracker) top() (*shadow.Frame, error) {
	f, err := t.stack.Top()
	if err != nil {
		return nil, t.fail(err)
	}
	return f, nil
}

func (t *Tracker) noPending(what string) error {
	if t.pending == nil {
		return nil
	}
	return t.fail(shadow.NewCorruption(shadow.ErrCodeOperandMismatch, t.stack.Depth(),
		"%s while %s awaits its operands", what, t.pending.op))
}
