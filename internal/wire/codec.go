package wire

import (
	"encoding/binary"
	"math"
)

// DefaultPointerSize is the width of Ref payloads on 64-bit targets.
const DefaultPointerSize = 8

// ExecCommand is one flush: every frame-stack delta since the previous flush
// plus the operands of the current instruction. It is built fresh per flush
// and never persisted by the core.
type ExecCommand struct {
	Offset    uint32
	IsBranch  bool
	NewFrames []uint32
	FramePops uint32
	Operands  []Operand
	StackPops uint32
}

// Response is the executor's answer to an ExecCommand.
type Response struct {
	HasReturn      bool
	ReturnConcrete bool

	// Concretized is either empty or aligned with the command's operands.
	Concretized []Operand
}

// Codec encodes and decodes records for one pointer width.
// The zero value uses DefaultPointerSize.
type Codec struct {
	PointerSize int
}

// NewCodec returns a codec for the given pointer width (4 or 8).
func NewCodec(pointerSize int) (Codec, error) {
	if pointerSize != 4 && pointerSize != 8 {
		return Codec{}, NewProtocolError(ErrCodeInvalidOperand,
			"unsupported pointer size %d", pointerSize)
	}
	return Codec{PointerSize: pointerSize}, nil
}

func (c Codec) pointerSize() int {
	if c.PointerSize == 0 {
		return DefaultPointerSize
	}
	return c.PointerSize
}

// DescriptorSize returns the encoded size of op.
func (c Codec) DescriptorSize(op Operand) int {
	if op.Tag() == TagRef {
		return 1 + c.pointerSize()
	}
	return 1 + 8
}

// EncodeCommand serializes cmd into one freshly allocated buffer.
func (c Codec) EncodeCommand(cmd *ExecCommand) ([]byte, error) {
	size := 6*4 + 4*len(cmd.NewFrames)
	for i, op := range cmd.Operands {
		if op == nil {
			return nil, NewProtocolError(ErrCodeInvalidOperand, "operand %d is missing", i)
		}
		size += c.DescriptorSize(op)
	}

	buf := make([]byte, 0, size)
	buf = binary.LittleEndian.AppendUint32(buf, cmd.Offset)
	buf = binary.LittleEndian.AppendUint32(buf, boolU32(cmd.IsBranch))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(cmd.NewFrames)))
	for _, tok := range cmd.NewFrames {
		buf = binary.LittleEndian.AppendUint32(buf, tok)
	}
	buf = binary.LittleEndian.AppendUint32(buf, cmd.FramePops)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(cmd.Operands)))
	var err error
	for _, op := range cmd.Operands {
		if buf, err = c.appendOperand(buf, op); err != nil {
			return nil, err
		}
	}
	buf = binary.LittleEndian.AppendUint32(buf, cmd.StackPops)
	return buf, nil
}

// DecodeCommand parses an ExecCommand. The executor side and tooling use it.
func (c Codec) DecodeCommand(b []byte) (*ExecCommand, error) {
	r := reader{buf: b, ptr: c.pointerSize()}
	cmd := &ExecCommand{}

	offset, err := r.u32()
	if err != nil {
		return nil, err
	}
	cmd.Offset = offset

	branch, err := r.u32()
	if err != nil {
		return nil, err
	}
	cmd.IsBranch = branch != 0

	n, err := r.count(4)
	if err != nil {
		return nil, err
	}
	cmd.NewFrames = make([]uint32, n)
	for i := range cmd.NewFrames {
		if cmd.NewFrames[i], err = r.u32(); err != nil {
			return nil, err
		}
	}

	if cmd.FramePops, err = r.u32(); err != nil {
		return nil, err
	}

	if cmd.Operands, err = r.operands(); err != nil {
		return nil, err
	}

	if cmd.StackPops, err = r.u32(); err != nil {
		return nil, err
	}
	if err := r.end(); err != nil {
		return nil, err
	}
	return cmd, nil
}

// EncodeResponse serializes a response. Used by executors and tests.
func (c Codec) EncodeResponse(resp *Response) ([]byte, error) {
	buf := make([]byte, 0, 2+4+9*len(resp.Concretized))
	buf = append(buf, boolByte(resp.HasReturn))
	if resp.HasReturn {
		buf = append(buf, boolByte(resp.ReturnConcrete))
	}
	if len(resp.Concretized) == 0 {
		return buf, nil
	}
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(resp.Concretized)))
	var err error
	for _, op := range resp.Concretized {
		if op == nil {
			return nil, NewProtocolError(ErrCodeInvalidOperand, "concretized operand is missing")
		}
		if buf, err = c.appendOperand(buf, op); err != nil {
			return nil, err
		}
	}
	return buf, nil
}

// DecodeResponse parses a Response. Truncated or trailing bytes are errors.
func (c Codec) DecodeResponse(b []byte) (*Response, error) {
	r := reader{buf: b, ptr: c.pointerSize()}
	resp := &Response{}

	flag, err := r.u8()
	if err != nil {
		return nil, err
	}
	resp.HasReturn = flag > 0
	if resp.HasReturn {
		rc, err := r.u8()
		if err != nil {
			return nil, err
		}
		resp.ReturnConcrete = rc > 0
	}

	if r.remaining() > 0 {
		if resp.Concretized, err = r.operands(); err != nil {
			return nil, err
		}
	}
	if err := r.end(); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c Codec) appendOperand(buf []byte, op Operand) ([]byte, error) {
	buf = append(buf, byte(op.Tag()))
	switch v := op.(type) {
	case Symbolic:
		return binary.LittleEndian.AppendUint64(buf, v.Distance), nil
	case I32:
		return binary.LittleEndian.AppendUint64(buf, uint64(int64(v))), nil
	case I64:
		return binary.LittleEndian.AppendUint64(buf, uint64(v)), nil
	case F32:
		return binary.LittleEndian.AppendUint64(buf, uint64(math.Float32bits(float32(v)))), nil
	case F64:
		return binary.LittleEndian.AppendUint64(buf, math.Float64bits(float64(v))), nil
	case Ref:
		if c.pointerSize() == 4 {
			if uint64(v) > math.MaxUint32 {
				return nil, NewProtocolError(ErrCodeInvalidOperand,
					"reference %#x does not fit a 4-byte pointer", uint64(v))
			}
			return binary.LittleEndian.AppendUint32(buf, uint32(v)), nil
		}
		return binary.LittleEndian.AppendUint64(buf, uint64(v)), nil
	default:
		return nil, NewProtocolError(ErrCodeInvalidOperand, "unsupported operand %T", op)
	}
}

type reader struct {
	buf []byte
	off int
	ptr int
}

func (r *reader) remaining() int { return len(r.buf) - r.off }

func (r *reader) need(n int, what string) error {
	if r.remaining() < n {
		return malformed(ErrCodeTruncated, r.off, "need %d bytes for %s, have %d", n, what, r.remaining())
	}
	return nil
}

func (r *reader) u8() (uint8, error) {
	if err := r.need(1, "byte"); err != nil {
		return 0, err
	}
	v := r.buf[r.off]
	r.off++
	return v, nil
}

func (r *reader) u32() (uint32, error) {
	if err := r.need(4, "u32"); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(r.buf[r.off:])
	r.off += 4
	return v, nil
}

func (r *reader) u64() (uint64, error) {
	if err := r.need(8, "u64"); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint64(r.buf[r.off:])
	r.off += 8
	return v, nil
}

// count reads a u32 element count and rejects counts that cannot fit the
// remaining bytes, so a corrupt count never drives a huge allocation.
func (r *reader) count(minElem int) (int, error) {
	start := r.off
	n, err := r.u32()
	if err != nil {
		return 0, err
	}
	if uint64(n)*uint64(minElem) > uint64(r.remaining()) {
		return 0, malformed(ErrCodeTruncated, start, "count %d exceeds remaining %d bytes", n, r.remaining())
	}
	return int(n), nil
}

func (r *reader) operands() ([]Operand, error) {
	n, err := r.count(1 + 4)
	if err != nil {
		return nil, err
	}
	ops := make([]Operand, n)
	for i := range ops {
		if ops[i], err = r.operand(); err != nil {
			return nil, err
		}
	}
	return ops, nil
}

func (r *reader) operand() (Operand, error) {
	start := r.off
	t, err := r.u8()
	if err != nil {
		return nil, err
	}
	tag := Tag(t)
	if tag < TagSymbolic || tag > TagRef {
		return nil, malformed(ErrCodeUnknownTag, start, "unknown operand tag %d", t)
	}
	if tag == TagRef {
		if r.ptr == 4 {
			v, err := r.u32()
			if err != nil {
				return nil, err
			}
			return Ref(v), nil
		}
		v, err := r.u64()
		if err != nil {
			return nil, err
		}
		return Ref(v), nil
	}

	raw, err := r.u64()
	if err != nil {
		return nil, err
	}
	switch tag {
	case TagSymbolic:
		return Symbolic{Distance: raw}, nil
	case TagI32:
		return I32(int32(raw)), nil
	case TagI64:
		return I64(int64(raw)), nil
	case TagF32:
		return F32(math.Float32frombits(uint32(raw))), nil
	case TagF64:
		return F64(math.Float64frombits(raw)), nil
	}
	return nil, malformed(ErrCodeUnknownTag, start, "unknown operand tag %d", t)
}

func (r *reader) end() error {
	if r.remaining() != 0 {
		return malformed(ErrCodeTrailingBytes, r.off, "%d unexpected trailing bytes", r.remaining())
	}
	return nil
}

func boolU32(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
