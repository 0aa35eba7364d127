package probe

import (
	"fmt"

	"github.com/roach88/shade/internal/wire"
)

// Materializer applies a concrete value chosen by the executor to the
// operand at index in the current instruction's operand list.
type Materializer interface {
	Materialize(index int, value wire.Operand) error
}

// OperandMemory holds the operand values of the instruction being
// dispatched. The instrumentation stores values before Exec and reads them
// back afterwards, picking up anything the executor concretized.
//
// A nil cell stands for a symbolic operand whose runtime value was not
// supplied.
type OperandMemory struct {
	cells []wire.Operand
}

// Reset replaces the cells with a copy of ops.
func (m *OperandMemory) Reset(ops []wire.Operand) {
	m.cells = append(m.cells[:0], ops...)
}

// Len returns the number of cells.
func (m *OperandMemory) Len() int { return len(m.cells) }

// Load returns the value in cell i.
func (m *OperandMemory) Load(i int) (wire.Operand, error) {
	if i < 0 || i >= len(m.cells) {
		return nil, fmt.Errorf("operand %d out of range [0,%d)", i, len(m.cells))
	}
	return m.cells[i], nil
}

// Materialize stores a concretized value in cell index.
func (m *OperandMemory) Materialize(index int, value wire.Operand) error {
	if index < 0 || index >= len(m.cells) {
		return fmt.Errorf("materialize operand %d out of range [0,%d)", index, len(m.cells))
	}
	switch v := value.(type) {
	case wire.I32, wire.I64, wire.F32, wire.F64, wire.Ref:
		m.cells[index] = v
		return nil
	case wire.Symbolic:
		return fmt.Errorf("materialize operand %d: %s is not concrete", index, v)
	default:
		return fmt.Errorf("materialize operand %d: unknown operand %T", index, value)
	}
}

// Values returns a copy of the cells.
func (m *OperandMemory) Values() []wire.Operand {
	out := make([]wire.Operand, len(m.cells))
	copy(out, m.cells)
	return out
}
