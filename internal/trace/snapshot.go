package trace

import (
	"fmt"
	"math"

	"github.com/roach88/shade/internal/wire"
)

// Operand renders one operand descriptor.
func Operand(op wire.Operand) (Object, error) {
	switch v := op.(type) {
	case wire.Symbolic:
		return Object{"tag": String(v.Tag().String()), "distance": Int(v.Distance)}, nil
	case wire.I32:
		return Object{"tag": String(v.Tag().String()), "value": Int(v)}, nil
	case wire.I64:
		return Object{"tag": String(v.Tag().String()), "value": Int(v)}, nil
	case wire.F32:
		return Object{"tag": String(v.Tag().String()), "bits": String(fmt.Sprintf("0x%08x", math.Float32bits(float32(v))))}, nil
	case wire.F64:
		return Object{"tag": String(v.Tag().String()), "bits": String(fmt.Sprintf("0x%016x", math.Float64bits(float64(v))))}, nil
	case wire.Ref:
		return Object{"tag": String(v.Tag().String()), "addr": String(fmt.Sprintf("0x%x", uint64(v)))}, nil
	default:
		return nil, fmt.Errorf("unsupported operand %T", op)
	}
}

func operands(ops []wire.Operand) (Array, error) {
	arr := make(Array, len(ops))
	for i, op := range ops {
		o, err := Operand(op)
		if err != nil {
			return nil, fmt.Errorf("operand %d: %w", i, err)
		}
		arr[i] = o
	}
	return arr, nil
}

// Command renders an ExecCommand.
func Command(cmd *wire.ExecCommand) (Object, error) {
	ops, err := operands(cmd.Operands)
	if err != nil {
		return nil, fmt.Errorf("command: %w", err)
	}
	frames := make(Array, len(cmd.NewFrames))
	for i, tok := range cmd.NewFrames {
		frames[i] = Int(tok)
	}
	return Object{
		"offset":     Int(cmd.Offset),
		"branch":     Bool(cmd.IsBranch),
		"new_frames": frames,
		"frame_pops": Int(cmd.FramePops),
		"operands":   ops,
		"stack_pops": Int(cmd.StackPops),
	}, nil
}

// Response renders a Response. The return flag is omitted when absent.
func Response(resp *wire.Response) (Object, error) {
	ops, err := operands(resp.Concretized)
	if err != nil {
		return nil, fmt.Errorf("response: %w", err)
	}
	obj := Object{"concretized": ops}
	if resp.HasReturn {
		obj["return_concrete"] = Bool(resp.ReturnConcrete)
	}
	return obj, nil
}

// Exchange is one decoded command/response pair.
type Exchange struct {
	Seq      int64
	ThreadID int64
	Command  *wire.ExecCommand
	Response *wire.Response
}

// Decode decodes a raw request/response pair.
func Decode(codec wire.Codec, request, response []byte) (*wire.ExecCommand, *wire.Response, error) {
	cmd, err := codec.DecodeCommand(request)
	if err != nil {
		return nil, nil, fmt.Errorf("decode command: %w", err)
	}
	resp, err := codec.DecodeResponse(response)
	if err != nil {
		return nil, nil, fmt.Errorf("decode response: %w", err)
	}
	return cmd, resp, nil
}

// Snapshot renders the exchange.
func (e Exchange) Snapshot() (Object, error) {
	cmd, err := Command(e.Command)
	if err != nil {
		return nil, err
	}
	resp, err := Response(e.Response)
	if err != nil {
		return nil, err
	}
	return Object{
		"seq":      Int(e.Seq),
		"thread":   Int(e.ThreadID),
		"command":  cmd,
		"response": resp,
	}, nil
}
