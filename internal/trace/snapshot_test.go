package trace

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/shade/internal/wire"
)

func TestOperandSnapshot(t *testing.T) {
	tests := []struct {
		name string
		op   wire.Operand
		want string
	}{
		{"symbolic", wire.Symbolic{Distance: 2}, `{"distance":2,"tag":"sym"}`},
		{"i32", wire.I32(-1), `{"tag":"i4","value":-1}`},
		{"i64", wire.I64(1 << 40), `{"tag":"i8","value":1099511627776}`},
		{"f32", wire.F32(1.0), `{"bits":"0x3f800000","tag":"r4"}`},
		{"f64", wire.F64(-2.0), `{"bits":"0xc000000000000000","tag":"r8"}`},
		{"ref", wire.Ref(0x10), `{"addr":"0x10","tag":"ref"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obj, err := Operand(tt.op)
			require.NoError(t, err)
			got, err := MarshalCanonical(obj)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestOperandSnapshot_Nil(t *testing.T) {
	_, err := Operand(nil)
	assert.Error(t, err)
}

func TestCommandSnapshot(t *testing.T) {
	cmd := &wire.ExecCommand{
		Offset:    12,
		IsBranch:  true,
		NewFrames: []uint32{5},
		FramePops: 1,
		Operands:  []wire.Operand{wire.Symbolic{Distance: 0}},
		StackPops: 1,
	}

	obj, err := Command(cmd)
	require.NoError(t, err)
	got, err := MarshalCanonical(obj)
	require.NoError(t, err)
	assert.Equal(t,
		`{"branch":true,"frame_pops":1,"new_frames":[5],"offset":12,"operands":[{"distance":0,"tag":"sym"}],"stack_pops":1}`,
		string(got))
}

func TestResponseSnapshot(t *testing.T) {
	obj, err := Response(&wire.Response{})
	require.NoError(t, err)
	got, err := MarshalCanonical(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"concretized":[]}`, string(got))

	obj, err = Response(&wire.Response{HasReturn: true, ReturnConcrete: true, Concretized: []wire.Operand{wire.I32(7)}})
	require.NoError(t, err)
	got, err = MarshalCanonical(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"concretized":[{"tag":"i4","value":7}],"return_concrete":true}`, string(got))
}

func TestExchangeSnapshot(t *testing.T) {
	ex := Exchange{
		Seq:      3,
		ThreadID: 1,
		Command:  &wire.ExecCommand{NewFrames: []uint32{}},
		Response: &wire.Response{},
	}

	obj, err := ex.Snapshot()
	require.NoError(t, err)
	got, err := MarshalCanonical(obj)
	require.NoError(t, err)
	assert.Equal(t,
		`{"command":{"branch":false,"frame_pops":0,"new_frames":[],"offset":0,"operands":[],"stack_pops":0},"response":{"concretized":[]},"seq":3,"thread":1}`,
		string(got))
}

func TestDecode(t *testing.T) {
	codec := wire.Codec{}
	cmd := &wire.ExecCommand{Offset: 4, NewFrames: []uint32{9}, Operands: []wire.Operand{wire.I32(1)}}
	req, err := codec.EncodeCommand(cmd)
	require.NoError(t, err)
	resp, err := codec.EncodeResponse(&wire.Response{})
	require.NoError(t, err)

	gotCmd, gotResp, err := Decode(codec, req, resp)
	require.NoError(t, err)
	assert.Equal(t, uint32(4), gotCmd.Offset)
	assert.False(t, gotResp.HasReturn)

	_, _, err = Decode(codec, req[:3], resp)
	assert.Error(t, err)
	_, _, err = Decode(codec, req, []byte{0, 1})
	assert.Error(t, err)
}
