package harness

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateSchema_Accepts(t *testing.T) {
	err := ValidateSchema("ok.yaml", []byte(`
name: ok
description: "every step kind"
steps:
  - enter_main: { token: 1, max_stack: 2 }
  - enter: { token: 2, max_stack: 2 }
  - track: ldnull
    respond: {}
  - track: ldsfld
    respond: { raw: "0101" }
  - exec: ldsfld
    operands: []
  - call: { token: 3, virtual: true }
  - leave: { returns: 0 }
  - leave_main: { returns: 0 }
  - finalize: { returns: 1 }
  - unwind: 0
  - calli: true
assertions:
  - type: command_count
    count: 0
  - type: command
    index: 0
    command: { frame_pops: 1 }
  - type: eval_stack
    stack: [true, false]
  - type: depth
    count: 2
  - type: failure
    code: TRUNCATED
`))
	require.NoError(t, err)
}

func TestValidateSchema_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"missing description", "name: x\nsteps:\n  - calli: true\n"},
		{"bad name", "name: Bad Name\ndescription: d\nsteps:\n  - calli: true\n"},
		{"empty steps", "name: x\ndescription: d\nsteps: []\n"},
		{"pointer size", "name: x\ndescription: d\npointer_size: 2\nsteps:\n  - calli: true\n"},
		{"two actions", "name: x\ndescription: d\nsteps:\n  - track: nop\n    calli: true\n"},
		{"unknown field", "name: x\ndescription: d\nsteps:\n  - track: nop\n    color: red\n"},
		{"negative thread", "name: x\ndescription: d\nsteps:\n  - thread: -1\n    calli: true\n"},
		{"operand with two values", "name: x\ndescription: d\nsteps:\n  - exec: neg\n    operands: [{ i4: 1, i8: 2 }]\n"},
		{"raw with return", "name: x\ndescription: d\nsteps:\n  - track: nop\n    respond: { raw: \"00\", return: true }\n"},
		{"odd raw", "name: x\ndescription: d\nsteps:\n  - track: nop\n    respond: { raw: \"0\" }\n"},
		{"returns two", "name: x\ndescription: d\nsteps:\n  - leave: { returns: 2 }\n"},
		{"unknown assertion", "name: x\ndescription: d\nsteps:\n  - calli: true\nassertions:\n  - type: trace_contains\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSchema("bad.yaml", []byte(tt.content))
			require.Error(t, err)

			var se *SchemaError
			assert.True(t, errors.As(err, &se), "want *SchemaError, got %T", err)
		})
	}
}

func TestValidateSchema_Position(t *testing.T) {
	err := ValidateSchema("pos.yaml", []byte("name: x\ndescription: d\npointer_size: 16\nsteps:\n  - calli: true\n"))
	require.Error(t, err)

	var se *SchemaError
	require.True(t, errors.As(err, &se))
	if se.Pos.IsValid() {
		assert.Equal(t, "pos.yaml", se.Pos.Filename())
		assert.Contains(t, err.Error(), "pos.yaml:")
	}
}

func TestValidateSchema_NotYAML(t *testing.T) {
	err := ValidateSchema("broken.yaml", []byte("name: [unclosed\n"))
	require.Error(t, err)
}
