package wire

import "fmt"

// Tag is the one-byte type tag of an operand descriptor.
type Tag uint8

const (
	TagSymbolic Tag = 1
	TagI32      Tag = 2
	TagI64      Tag = 3
	TagF32      Tag = 4
	TagF64      Tag = 5
	TagRef      Tag = 6
)

// String returns the tag mnemonic.
func (t Tag) String() string {
	switch t {
	case TagSymbolic:
		return "sym"
	case TagI32:
		return "i4"
	case TagI64:
		return "i8"
	case TagF32:
		return "r4"
	case TagF64:
		return "r8"
	case TagRef:
		return "ref"
	default:
		return fmt.Sprintf("tag(%d)", uint8(t))
	}
}

// Operand is a sealed interface over the operand descriptors.
// Only Symbolic, I32, I64, F32, F64 and Ref implement it.
type Operand interface {
	Tag() Tag
	operand()
}

// Symbolic refers to a symbolic slot by its distance from the executor's
// symbolic-stack top. It never carries a value.
type Symbolic struct {
	Distance uint64
}

// I32 is a 32-bit integer operand.
type I32 int32

// I64 is a 64-bit integer operand.
type I64 int64

// F32 is a single-precision float operand.
type F32 float32

// F64 is a double-precision float operand.
type F64 float64

// Ref is an object reference or managed pointer.
type Ref uint64

func (Symbolic) Tag() Tag { return TagSymbolic }
func (I32) Tag() Tag      { return TagI32 }
func (I64) Tag() Tag      { return TagI64 }
func (F32) Tag() Tag      { return TagF32 }
func (F64) Tag() Tag      { return TagF64 }
func (Ref) Tag() Tag      { return TagRef }

func (Symbolic) operand() {}
func (I32) operand()      {}
func (I64) operand()      {}
func (F32) operand()      {}
func (F64) operand()      {}
func (Ref) operand()      {}

func (s Symbolic) String() string { return fmt.Sprintf("sym(%d)", s.Distance) }
func (v I32) String() string      { return fmt.Sprintf("i4(%d)", int32(v)) }
func (v I64) String() string      { return fmt.Sprintf("i8(%d)", int64(v)) }
func (v F32) String() string      { return fmt.Sprintf("r4(%g)", float32(v)) }
func (v F64) String() string      { return fmt.Sprintf("r8(%g)", float64(v)) }
func (v Ref) String() string      { return fmt.Sprintf("ref(%#x)", uint64(v)) }

// IsSymbolic reports whether op is a Symbolic descriptor.
func IsSymbolic(op Operand) bool {
	_, ok := op.(Symbolic)
	return ok
}
