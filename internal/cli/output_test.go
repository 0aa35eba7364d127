package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/shade/internal/shadow"
	"github.com/roach88/shade/internal/wire"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	err := formatter.Success(map[string]int{"commands": 2})
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.NotNil(t, resp.Data)
	assert.Nil(t, resp.Error)
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	err := formatter.Error(&CLIError{Code: ErrCodeSchema, Message: "steps.0: field not allowed"})
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E101", resp.Error.Code)
	assert.Equal(t, "steps.0: field not allowed", resp.Error.Message)
	assert.Nil(t, resp.Error.Offset)
	assert.Nil(t, resp.Error.Depth)
}

func TestOutputFormatter_TextError(t *testing.T) {
	depth, offset := 2, 9
	tests := []struct {
		name string
		err  *CLIError
		want string
	}{
		{"cli", &CLIError{Code: ErrCodeDatabase, Message: "failed to open database"}, "Error [E201]: failed to open database\n"},
		{"protocol", &CLIError{Code: "TRUNCATED", Message: "need 4 bytes", Offset: &offset}, "Error [TRUNCATED] at byte 9: need 4 bytes\n"},
		{"corruption", &CLIError{Code: "STACK_UNDERFLOW", Message: "pop 1 with 0 live slots", Depth: &depth}, "Error [STACK_UNDERFLOW] at depth 2: pop 1 with 0 live slots\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			formatter := &OutputFormatter{Format: "text", Writer: buf}

			require.NoError(t, formatter.Error(tt.err))
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestOutputFormatter_Fail(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	err := formatter.Fail(ExitCommandError, ErrCodeNotFound, "scenario not found: x.yaml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Equal(t, "E005: scenario not found: x.yaml", err.Error())
	assert.Contains(t, buf.String(), "Error [E005]")
}

func TestOutputFormatter_FailWith(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}
	cause := fmt.Errorf("step 3: %w", shadow.NewCorruption(shadow.ErrCodeUnbalancedLeave, 2, "leave with 1 operand slots, want 0"))

	err := formatter.FailWith(ExitFailure, cause, ErrCodeGeneric)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.True(t, shadow.HasCode(err, shadow.ErrCodeUnbalancedLeave))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, string(shadow.ErrCodeUnbalancedLeave), resp.Error.Code)
	require.NotNil(t, resp.Error.Depth)
	assert.Equal(t, 2, *resp.Error.Depth)
}

func TestDescribeError(t *testing.T) {
	t.Run("protocol error keeps offset", func(t *testing.T) {
		e := DescribeError(&wire.ProtocolError{Code: wire.ErrCodeTruncated, Message: "short", Offset: 3}, ErrCodeGeneric)
		assert.Equal(t, "TRUNCATED", e.Code)
		require.NotNil(t, e.Offset)
		assert.Equal(t, 3, *e.Offset)
		assert.Equal(t, "TRUNCATED at byte 3: short", e.String())
	})

	t.Run("unpositioned protocol error", func(t *testing.T) {
		e := DescribeError(wire.NewProtocolError(wire.ErrCodeCountMismatch, "1 operands"), ErrCodeGeneric)
		assert.Equal(t, "COUNT_MISMATCH", e.Code)
		assert.Nil(t, e.Offset)
		assert.Equal(t, "COUNT_MISMATCH: 1 operands", e.String())
	})

	t.Run("corruption keeps depth", func(t *testing.T) {
		e := DescribeError(shadow.NewCorruption(shadow.ErrCodeStackOverflow, 4, "too deep"), ErrCodeGeneric)
		assert.Equal(t, "STACK_OVERFLOW", e.Code)
		require.NotNil(t, e.Depth)
		assert.Equal(t, 4, *e.Depth)
	})

	t.Run("other errors use the fallback", func(t *testing.T) {
		e := DescribeError(errors.New("boom"), ErrCodeGeneric)
		assert.Equal(t, &CLIError{Code: ErrCodeGeneric, Message: "boom"}, e)
	})
}

func TestOutputFormatter_VerboseLog(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		buf := &bytes.Buffer{}
		formatter := &OutputFormatter{Format: "text", Writer: buf}
		formatter.VerboseLog("running %s", "mixed_binop")
		assert.Empty(t, buf.String())
	})

	t.Run("falls back to Writer", func(t *testing.T) {
		buf := &bytes.Buffer{}
		formatter := &OutputFormatter{Format: "text", Writer: buf, Verbose: true}
		formatter.VerboseLog("running %s", "mixed_binop")
		assert.Equal(t, "running mixed_binop\n", buf.String())
	})

	t.Run("JSON keeps stdout clean", func(t *testing.T) {
		out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
		formatter := &OutputFormatter{Format: "json", Writer: out, ErrWriter: errOut, Verbose: true}
		formatter.VerboseLog("running %s", "mixed_binop")
		assert.Empty(t, out.String())
		assert.Contains(t, errOut.String(), "running mixed_binop")
	})
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "missing")))

	wrapped := WrapExitError(ExitFailure, "diverged", errors.New("offset 5"))
	assert.Equal(t, "diverged: offset 5", wrapped.Error())
	assert.Equal(t, ExitFailure, GetExitCode(wrapped))
}

func TestCLIResponse_SessionID(t *testing.T) {
	data, err := json.Marshal(CLIResponse{Status: "ok", SessionID: "test-session"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"ok","session_id":"test-session"}`, string(data))
}
