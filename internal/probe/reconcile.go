package probe

import (
	"fmt"

	"github.com/roach88/shade/internal/wire"
)

// reconcile applies a response to the operands of the instruction just sent.
//
// sent is the outgoing operand list, supplied the caller's runtime values
// (nil when the instruction had none) and symbolic the symbolic slots with
// the distances that went out. It reports whether every operand is concrete
// after the response.
func (t *Tracker) reconcile(resp *wire.Response, sent, supplied []wire.Operand, symbolic []symbolicSlot, pushes int) (bool, error) {
	if resp.HasReturn && pushes == 0 {
		return false, wire.NewProtocolError(wire.ErrCodeUnexpectedReturn,
			"return value for an instruction that pushes nothing")
	}
	n := len(resp.Concretized)
	if n != 0 && n != len(sent) {
		return false, wire.NewProtocolError(wire.ErrCodeCountMismatch,
			"response has %d operands, command had %d", n, len(sent))
	}

	all := true
	for _, s := range symbolic {
		if n == 0 {
			all = false
			continue
		}
		got := resp.Concretized[s.index]
		switch v := got.(type) {
		case wire.Symbolic:
			if v.Distance != s.distance {
				return false, wire.NewProtocolError(wire.ErrCodeDistanceMismatch,
					"operand %d echoed %s, sent %s", s.index, v, wire.Symbolic{Distance: s.distance})
			}
			all = false
		case wire.I32, wire.I64, wire.F32, wire.F64, wire.Ref:
			if supplied != nil && supplied[s.index] != nil && supplied[s.index].Tag() != got.Tag() {
				return false, wire.NewProtocolError(wire.ErrCodeTypeMismatch,
					"operand %d concretized as %s, runtime value is %s", s.index, got.Tag(), supplied[s.index].Tag())
			}
			if err := t.materialize(s.index, got); err != nil {
				return false, err
			}
		default:
			return false, wire.NewProtocolError(wire.ErrCodeUnknownTag,
				"operand %d has unknown type %T", s.index, got)
		}
	}
	return all, nil
}

func (t *Tracker) materialize(index int, value wire.Operand) error {
	t.stats.Concretized++
	if err := t.memory.Materialize(index, value); err != nil {
		return err
	}
	if t.materializer == nil {
		return nil
	}
	if err := t.materializer.Materialize(index, value); err != nil {
		return fmt.Errorf("materialize operand %d: %w", index, err)
	}
	return nil
}
