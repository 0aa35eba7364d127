package probe

import (
	"github.com/roach88/shade/internal/shadow"
	"github.com/roach88/shade/internal/wire"
)

// Track runs the probe of an instruction that does not address a slot.
//
// It returns true when every value the instruction touches is concrete.
// For two-phase classes a false result means the caller must follow up with
// Exec before running the instruction.
func (t *Tracker) Track(op Opcode, offset uint32) (bool, error) {
	return t.track(op, -1, offset)
}

// TrackSlot runs the probe of an argument or local instruction.
func (t *Tracker) TrackSlot(op Opcode, index int, offset uint32) (bool, error) {
	if index < 0 {
		if err := t.guard(); err != nil {
			return false, err
		}
		return false, t.fail(shadow.NewCorruption(shadow.ErrCodeIndexOutOfRange, t.stack.Depth(),
			"%s with negative slot index %d", op, index))
	}
	return t.track(op, index, offset)
}

func (t *Tracker) track(op Opcode, index int, offset uint32) (bool, error) {
	if err := t.guard(); err != nil {
		return false, err
	}
	t.offset = offset
	shape, ok := ShapeOf(op)
	if !ok {
		return false, t.fail(&UnimplementedError{Op: op.String(), Offset: offset})
	}
	if err := t.noPending(op.String()); err != nil {
		return false, err
	}
	if (shape.Slot != SlotNone) != (index >= 0) {
		return false, t.fail(shadow.NewCorruption(shadow.ErrCodeOperandMismatch, t.stack.Depth(),
			"%s tracked with slot index %d", op, index))
	}
	top, err := t.top()
	if err != nil {
		return false, err
	}
	t.stats.Instructions++

	switch shape.Class {
	case ClassLoadSlot:
		top.Pop0()
		c, err := t.slot(top, shape.Slot, index)
		if err != nil {
			return false, t.fail(err)
		}
		if c {
			return true, t.push(top, true, shape.Pushes)
		}
		return t.dispatch(dispatch{offset: offset, pushes: shape.Pushes, opaque: true, reportResult: true})

	case ClassLoadConst:
		if _, err := top.Pop(shape.Pops); err != nil {
			return false, t.fail(err)
		}
		return true, t.push(top, true, shape.Pushes)

	case ClassStoreSlot:
		c, err := top.Pop1()
		if err != nil {
			return false, t.fail(err)
		}
		if err := t.setSlot(top, shape.Slot, index, c); err != nil {
			return false, t.fail(err)
		}
		if c {
			return true, nil
		}
		all, err := t.dispatch(dispatch{offset: offset, operands: make([]wire.Operand, 1)})
		if err != nil {
			return false, err
		}
		if all {
			if err := t.setSlot(top, shape.Slot, index, true); err != nil {
				return false, t.fail(err)
			}
		}
		return all, nil

	case ClassCompute, ClassMemoryStore:
		all, err := top.Pop(shape.Pops)
		if err != nil {
			return false, t.fail(err)
		}
		if all {
			return true, t.push(top, true, shape.Pushes)
		}
		t.pending = &pendingExec{op: op, shape: shape, depth: t.stack.Depth()}
		return false, nil

	case ClassMemoryLoad:
		if _, err := top.Pop(shape.Pops); err != nil {
			return false, t.fail(err)
		}
		t.pending = &pendingExec{op: op, shape: shape, depth: t.stack.Depth()}
		return false, nil

	case ClassDup:
		c, err := top.Peek0()
		if err != nil {
			return false, t.fail(err)
		}
		if c {
			if _, err := top.Dup(); err != nil {
				return false, t.fail(err)
			}
			return true, nil
		}
		if _, err := top.Pop1(); err != nil {
			return false, t.fail(err)
		}
		return t.dispatch(dispatch{offset: offset, operands: make([]wire.Operand, 1), pushes: shape.Pushes})

	case ClassBranch:
		all, err := top.Pop(shape.Pops)
		if err != nil {
			return false, t.fail(err)
		}
		if all {
			return true, nil
		}
		return t.dispatch(dispatch{offset: offset, branch: true, operands: make([]wire.Operand, shape.Pops)})

	case ClassDiscard:
		if _, err := top.Pop(shape.Pops); err != nil {
			return false, t.fail(err)
		}
		return true, nil

	default:
		return false, t.fail(&UnimplementedError{Op: op.String(), Offset: offset})
	}
}

// Exec completes a two-phase instruction whose Track returned false.
// operands holds the runtime value of every popped slot, deepest first.
// After Exec returns, Operand reads back the possibly concretized values.
func (t *Tracker) Exec(op Opcode, offset uint32, operands ...wire.Operand) (bool, error) {
	if err := t.guard(); err != nil {
		return false, err
	}
	t.offset = offset
	p := t.pending
	if p == nil || p.op != op {
		return false, t.fail(shadow.NewCorruption(shadow.ErrCodeOperandMismatch, t.stack.Depth(),
			"exec %s without a matching pending instruction", op))
	}
	if p.depth != t.stack.Depth() {
		return false, t.fail(shadow.NewCorruption(shadow.ErrCodeOperandMismatch, t.stack.Depth(),
			"exec %s at depth %d, tracked at %d", op, t.stack.Depth(), p.depth))
	}
	if len(operands) != p.shape.Pops {
		return false, t.fail(shadow.NewCorruption(shadow.ErrCodeOperandMismatch, t.stack.Depth(),
			"exec %s with %d operands, want %d", op, len(operands), p.shape.Pops))
	}
	t.pending = nil
	ops := make([]wire.Operand, len(operands))
	copy(ops, operands)
	return t.dispatch(dispatch{
		offset:   offset,
		branch:   p.shape.Branch,
		operands: ops,
		supplied: true,
		pushes:   p.shape.Pushes,
		opaque:   p.shape.Class == ClassMemoryLoad,
	})
}

// Calli is the probe for indirect calls, which the tracker cannot follow.
func (t *Tracker) Calli(offset uint32) error {
	if err := t.guard(); err != nil {
		return err
	}
	t.offset = offset
	return t.fail(&UnimplementedError{Op: OpCalli.String(), Offset: offset})
}

func (t *Tracker) push(f *shadow.Frame, concrete bool, n int) error {
	for i := 0; i < n; i++ {
		if err := f.Push1(concrete); err != nil {
			return t.fail(err)
		}
	}
	return nil
}

func (t *Tracker) slot(f *shadow.Frame, s Slot, index int) (bool, error) {
	if s == SlotArg {
		return f.Arg(index)
	}
	return f.Loc(index)
}

func (t *Tracker) setSlot(f *shadow.Frame, s Slot, index int, concrete bool) error {
	if s == SlotArg {
		return f.SetArg(index, concrete)
	}
	return f.SetLoc(index, concrete)
}
