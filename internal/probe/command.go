package probe

import (
	"fmt"

	"github.com/roach88/shade/internal/shadow"
	"github.com/roach88/shade/internal/wire"
)

// dispatch describes one slow-path instruction.
type dispatch struct {
	offset uint32
	branch bool

	// operands has one entry per slot of the current pop group, deepest
	// first. Symbolic slots are overwritten with their distance.
	operands []wire.Operand

	// supplied marks operands that carry caller runtime values.
	supplied bool

	pushes int

	// opaque marks results whose concreteness does not follow from the
	// operands; without a return flag they are pushed symbolic.
	opaque bool

	// reportResult makes dispatch return the pushed flag instead of the
	// operands' concreteness.
	reportResult bool
}

// symbolicSlot is a symbolic operand sent to the executor.
type symbolicSlot struct {
	index    int
	distance uint64
}

// buildCommand turns the batched stack state and the current pop group into
// a command, then closes the batching window.
func (t *Tracker) buildCommand(d *dispatch) (*wire.ExecCommand, []symbolicSlot, error) {
	top, err := t.stack.Top()
	if err != nil {
		return nil, nil, err
	}
	window, size := top.Window()
	if size != len(d.operands) {
		return nil, nil, shadow.NewCorruption(shadow.ErrCodeOperandMismatch, top.Depth(),
			"pop group of %d slots for %d operands", size, len(d.operands))
	}

	now := top.Symbolics() + len(top.PoppedSymbolics())
	symbolic := make([]symbolicSlot, 0, len(window))
	for _, ps := range window {
		s := symbolicSlot{
			index:    size - 1 - ps.Position,
			distance: uint64(now - ps.Generation),
		}
		symbolic = append(symbolic, s)
	}

	ops := make([]wire.Operand, len(d.operands))
	copy(ops, d.operands)
	for _, s := range symbolic {
		ops[s.index] = wire.Symbolic{Distance: s.distance}
	}
	for i, op := range ops {
		if op == nil {
			return nil, nil, shadow.NewCorruption(shadow.ErrCodeOperandMismatch, top.Depth(),
				"concrete operand %d has no value", i)
		}
	}

	cmd := &wire.ExecCommand{
		Offset:    d.offset,
		IsBranch:  d.branch,
		NewFrames: t.stack.NewFrameTokens(),
		FramePops: uint32(t.stack.UnsentPops()),
		Operands:  ops,
		StackPops: uint32(top.StackPops()),
	}
	t.stack.ResetPopsTracking()
	return cmd, symbolic, nil
}

// dispatch sends the current instruction to the executor, reconciles the
// answer and pushes the instruction's results. It reports whether every
// operand ended up concrete.
func (t *Tracker) dispatch(d dispatch) (bool, error) {
	if t.inFlight {
		return false, t.fail(fmt.Errorf("exchange at offset %d while another is outstanding", d.offset))
	}
	cmd, symbolic, err := t.buildCommand(&d)
	if err != nil {
		return false, t.fail(err)
	}
	req, err := t.codec.EncodeCommand(cmd)
	if err != nil {
		return false, t.fail(fmt.Errorf("encode command at offset %d: %w", d.offset, err))
	}
	t.stats.Commands++
	t.logger.Debug("dispatching command",
		"offset", cmd.Offset,
		"branch", cmd.IsBranch,
		"new_frames", len(cmd.NewFrames),
		"frame_pops", cmd.FramePops,
		"operands", len(cmd.Operands),
		"stack_pops", cmd.StackPops)

	t.inFlight = true
	raw, err := t.transport.Exchange(req)
	t.inFlight = false
	if err != nil {
		return false, t.fail(fmt.Errorf("exchange at offset %d: %w", d.offset, err))
	}
	if t.err != nil {
		// poisoned by a re-entrant call during the exchange
		return false, t.guard()
	}
	resp, err := t.codec.DecodeResponse(raw)
	if err != nil {
		return false, t.fail(fmt.Errorf("response at offset %d: %w", d.offset, err))
	}

	var supplied []wire.Operand
	if d.supplied {
		supplied = d.operands
	}
	t.memory.Reset(d.operands)
	all, err := t.reconcile(resp, cmd.Operands, supplied, symbolic, d.pushes)
	if err != nil {
		return false, t.fail(err)
	}

	result := all
	switch {
	case resp.HasReturn:
		result = resp.ReturnConcrete
	case d.opaque:
		result = false
	}
	top, err := t.top()
	if err != nil {
		return false, err
	}
	if err := t.push(top, result, d.pushes); err != nil {
		return false, err
	}
	if d.reportResult {
		return result, nil
	}
	return all, nil
}
