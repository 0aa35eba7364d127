package cli

import (
	"encoding/hex"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/shade/internal/wire"
)

func TestDecodeCommand(t *testing.T) {
	codec, err := wire.NewCodec(8)
	require.NoError(t, err)
	raw, err := codec.EncodeCommand(&wire.ExecCommand{
		Offset:    4,
		NewFrames: []uint32{2},
		Operands:  []wire.Operand{wire.I32(7), wire.Symbolic{Distance: 1}},
		StackPops: 2,
	})
	require.NoError(t, err)

	out, _, err := execute(t, "decode", hex.EncodeToString(raw))
	require.NoError(t, err)
	assert.Equal(t,
		`{"branch":false,"frame_pops":0,"new_frames":[2],"offset":4,"operands":[{"tag":"i4","value":7},{"distance":1,"tag":"sym"}],"stack_pops":2}`+"\n",
		out)
}

func TestDecodeEmptyCommand(t *testing.T) {
	out, _, err := execute(t, "decode", "040000000000000000000000000000000000000000000000")
	require.NoError(t, err)
	assert.Equal(t, `{"branch":false,"frame_pops":0,"new_frames":[],"offset":4,"operands":[],"stack_pops":0}`+"\n", out)
}

func TestDecodeResponse(t *testing.T) {
	tests := []struct {
		name string
		hex  string
		want string
	}{
		{"empty", "00", `{"concretized":[]}`},
		{"concrete return", "0101", `{"concretized":[],"return_concrete":true}`},
		{"symbolic return", "0100", `{"concretized":[],"return_concrete":false}`},
		{"one operand", "00" + "01000000" + "02" + "0500000000000000", `{"concretized":[{"tag":"i4","value":5}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _, err := execute(t, "decode", "--response", tt.hex)
			require.NoError(t, err)
			assert.Equal(t, tt.want+"\n", out)
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	out, _, err := execute(t, "--format", "json", "decode", "--response", "0101")
	require.NoError(t, err)

	var resp struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.JSONEq(t, `{"concretized":[],"return_concrete":true}`, string(resp.Data))
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		exitCode int
		code     string
	}{
		{"bad hex", []string{"decode", "zz"}, ExitCommandError, ErrCodeHex},
		{"bad pointer size", []string{"decode", "--pointer-size", "2", "00"}, ExitCommandError, ErrCodeGeneric},
		{"truncated", []string{"decode", "04000000"}, ExitFailure, "TRUNCATED"},
		{"trailing", []string{"decode", "--response", "0000"}, ExitFailure, "TRUNCATED"},
		{"unknown tag", []string{"decode", "--response", "00" + "01000000" + "09" + "0000000000000000"}, ExitFailure, "UNKNOWN_TAG"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.Equal(t, tt.exitCode, GetExitCode(err))
			assert.Contains(t, out, "Error ["+tt.code+"]")
		})
	}
}

func TestDecodeErrorJSONCarriesOffset(t *testing.T) {
	out, _, err := execute(t, "--format", "json", "decode", "--response", "00"+"01000000"+"09"+"0000000000000000")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, "UNKNOWN_TAG", resp.Error.Code)
	require.NotNil(t, resp.Error.Offset)
	assert.Equal(t, 5, *resp.Error.Offset)
	assert.Nil(t, resp.Error.Depth)
}
