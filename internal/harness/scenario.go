package harness

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/shade/internal/probe"
	"github.com/roach88/shade/internal/wire"
)

// DefaultSessionID is the session ID of scenarios that do not name one.
// A fixed ID keeps golden snapshots stable.
const DefaultSessionID = "test-session"

// Scenario is a scripted run of one or more threads against a scripted
// executor, with assertions on what was sent and on the final shadow
// state.
type Scenario struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`

	// PointerSize is the Ref width on the wire. Zero means 8.
	PointerSize int `yaml:"pointer_size,omitempty"`

	// Session is a fixed session ID. Empty means DefaultSessionID unless
	// the runner is given an ID generator.
	Session string `yaml:"session,omitempty"`

	Steps      []Step      `yaml:"steps"`
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Step is one probe call. Exactly one action field is set.
type Step struct {
	Thread int64  `yaml:"thread,omitempty"`
	Offset uint32 `yaml:"offset,omitempty"`

	// Respond is queued on the thread's executor before the step runs.
	Respond *ResponseSpec `yaml:"respond,omitempty"`

	// Expect is the expected result of a track or exec step.
	Expect *bool `yaml:"expect,omitempty"`

	EnterMain *EnterMainStep `yaml:"enter_main,omitempty"`
	Enter     *FrameStep     `yaml:"enter,omitempty"`
	Track     string         `yaml:"track,omitempty"`
	Index     *int           `yaml:"index,omitempty"`
	Exec      string         `yaml:"exec,omitempty"`
	Operands  []OperandSpec  `yaml:"operands,omitempty"`
	Call      *CallStep      `yaml:"call,omitempty"`
	Leave     *ReturnStep    `yaml:"leave,omitempty"`
	LeaveMain *ReturnStep    `yaml:"leave_main,omitempty"`
	Finalize  *ReturnStep    `yaml:"finalize,omitempty"`
	Unwind    *int           `yaml:"unwind,omitempty"`
	Calli     bool           `yaml:"calli,omitempty"`
}

// FrameStep describes a method entry.
type FrameStep struct {
	Token    uint32 `yaml:"token"`
	Args     int    `yaml:"args"`
	MaxStack int    `yaml:"max_stack"`
	Locals   int    `yaml:"locals"`
}

// EnterMainStep starts a thread.
type EnterMainStep struct {
	FrameStep `yaml:",inline"`

	// Concrete is the concreteness of every entry argument. Defaults to
	// true.
	Concrete *bool `yaml:"concrete,omitempty"`
}

// CallStep is a call, callvirt or newobj.
type CallStep struct {
	Token      uint32 `yaml:"token"`
	Unresolved uint32 `yaml:"unresolved,omitempty"`
	Args       int    `yaml:"args"`
	Newobj     bool   `yaml:"newobj,omitempty"`
	Virtual    bool   `yaml:"virtual,omitempty"`
}

// ReturnStep is a leave, leave_main or finalize.
type ReturnStep struct {
	Returns int `yaml:"returns"`
}

// OperandSpec is one operand descriptor in YAML. Exactly one field is set.
type OperandSpec struct {
	I4  *int32   `yaml:"i4,omitempty"`
	I8  *int64   `yaml:"i8,omitempty"`
	R4  *float32 `yaml:"r4,omitempty"`
	R8  *float64 `yaml:"r8,omitempty"`
	Ref *uint64  `yaml:"ref,omitempty"`
	Sym *uint64  `yaml:"sym,omitempty"`
}

// Operand converts the spec to a wire operand.
func (o OperandSpec) Operand() (wire.Operand, error) {
	var ops []wire.Operand
	if o.I4 != nil {
		ops = append(ops, wire.I32(*o.I4))
	}
	if o.I8 != nil {
		ops = append(ops, wire.I64(*o.I8))
	}
	if o.R4 != nil {
		ops = append(ops, wire.F32(*o.R4))
	}
	if o.R8 != nil {
		ops = append(ops, wire.F64(*o.R8))
	}
	if o.Ref != nil {
		ops = append(ops, wire.Ref(*o.Ref))
	}
	if o.Sym != nil {
		ops = append(ops, wire.Symbolic{Distance: *o.Sym})
	}
	if len(ops) != 1 {
		return nil, fmt.Errorf("operand must set exactly one of i4, i8, r4, r8, ref, sym; got %d", len(ops))
	}
	return ops[0], nil
}

func toOperands(specs []OperandSpec) ([]wire.Operand, error) {
	ops := make([]wire.Operand, len(specs))
	for i, s := range specs {
		op, err := s.Operand()
		if err != nil {
			return nil, fmt.Errorf("operand %d: %w", i, err)
		}
		ops[i] = op
	}
	return ops, nil
}

// ResponseSpec is a scripted executor answer. Raw, when set, is sent as is
// (hex) to exercise malformed responses.
type ResponseSpec struct {
	Return      *bool         `yaml:"return,omitempty"`
	Concretized []OperandSpec `yaml:"concretized,omitempty"`
	Raw         string        `yaml:"raw,omitempty"`
}

// Response converts the spec to a wire response.
func (r ResponseSpec) Response() (*wire.Response, error) {
	ops, err := toOperands(r.Concretized)
	if err != nil {
		return nil, fmt.Errorf("concretized: %w", err)
	}
	resp := &wire.Response{Concretized: ops}
	if r.Return != nil {
		resp.HasReturn = true
		resp.ReturnConcrete = *r.Return
	}
	return resp, nil
}

// RawBytes decodes Raw.
func (r ResponseSpec) RawBytes() ([]byte, error) {
	b, err := hex.DecodeString(r.Raw)
	if err != nil {
		return nil, fmt.Errorf("raw response: %w", err)
	}
	return b, nil
}

// Action returns the name of the step's action, or "" if the step sets
// none or several.
func (s Step) Action() string {
	var names []string
	if s.EnterMain != nil {
		names = append(names, "enter_main")
	}
	if s.Enter != nil {
		names = append(names, "enter")
	}
	if s.Track != "" {
		names = append(names, "track")
	}
	if s.Exec != "" {
		names = append(names, "exec")
	}
	if s.Call != nil {
		names = append(names, "call")
	}
	if s.Leave != nil {
		names = append(names, "leave")
	}
	if s.LeaveMain != nil {
		names = append(names, "leave_main")
	}
	if s.Finalize != nil {
		names = append(names, "finalize")
	}
	if s.Unwind != nil {
		names = append(names, "unwind")
	}
	if s.Calli {
		names = append(names, "calli")
	}
	if len(names) != 1 {
		return ""
	}
	return names[0]
}

// Assertion checks the outcome of a run.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Count is the expected number of commands (command_count) or the
	// expected call-stack depth (depth).
	Count *int `yaml:"count,omitempty"`

	// Index selects the command (command).
	Index int `yaml:"index,omitempty"`

	// Command is matched field by field against the selected command.
	// Unset fields are not checked.
	Command *CommandSpec `yaml:"command,omitempty"`

	// Thread selects the thread (eval_stack, depth).
	Thread int64 `yaml:"thread,omitempty"`

	// Stack is the expected operand stack of the thread's top frame,
	// bottom first (eval_stack).
	Stack []bool `yaml:"stack,omitempty"`

	// Code is the expected failure code (failure).
	Code string `yaml:"code,omitempty"`
}

// CommandSpec is a partial command.
type CommandSpec struct {
	Offset    *uint32       `yaml:"offset,omitempty"`
	Branch    *bool         `yaml:"branch,omitempty"`
	NewFrames []uint32      `yaml:"new_frames,omitempty"`
	FramePops *uint32       `yaml:"frame_pops,omitempty"`
	StackPops *uint32       `yaml:"stack_pops,omitempty"`
	Operands  []OperandSpec `yaml:"operands,omitempty"`
}

// Assertion types.
const (
	AssertCommandCount = "command_count"
	AssertCommand      = "command"
	AssertEvalStack    = "eval_stack"
	AssertDepth        = "depth"
	AssertFailure      = "failure"
)

// LoadScenario reads, schema-checks and decodes a scenario file.
// Unknown fields are rejected.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(path, data)
}

// ParseScenario schema-checks and decodes scenario YAML. filename is used
// in error messages.
func ParseScenario(filename string, data []byte) (*Scenario, error) {
	if err := ValidateSchema(filename, data); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks what the schema cannot: mnemonics and slot
// indices, operand counts and operand values.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	for i, step := range s.Steps {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(a); err != nil {
			return fmt.Errorf("assertions[%d]: %w", i, err)
		}
	}
	return nil
}

func validateStep(step Step) error {
	action := step.Action()
	if action == "" {
		return fmt.Errorf("exactly one action is required")
	}
	if step.Respond != nil {
		if step.Respond.Raw != "" {
			if step.Respond.Return != nil || len(step.Respond.Concretized) > 0 {
				return fmt.Errorf("respond: raw excludes return and concretized")
			}
			if _, err := step.Respond.RawBytes(); err != nil {
				return fmt.Errorf("respond: %w", err)
			}
		} else if _, err := step.Respond.Response(); err != nil {
			return fmt.Errorf("respond: %w", err)
		}
	}
	if step.Expect != nil && action != "track" && action != "exec" {
		return fmt.Errorf("expect is only valid on track and exec")
	}

	switch action {
	case "track":
		in, ok := probe.Lookup(step.Track)
		if !ok {
			return fmt.Errorf("unknown mnemonic %q", step.Track)
		}
		shape, _ := probe.ShapeOf(in.Op)
		needsIndex := shape.Slot != probe.SlotNone && !in.FixedIndex()
		if needsIndex && step.Index == nil {
			return fmt.Errorf("%s needs an index", step.Track)
		}
		if !needsIndex && step.Index != nil {
			return fmt.Errorf("%s takes no index", step.Track)
		}
	case "exec":
		in, ok := probe.Lookup(step.Exec)
		if !ok {
			return fmt.Errorf("unknown mnemonic %q", step.Exec)
		}
		shape, _ := probe.ShapeOf(in.Op)
		if !shape.Class.TwoPhase() {
			return fmt.Errorf("%s is not a two-phase instruction", step.Exec)
		}
		if len(step.Operands) != shape.Pops {
			return fmt.Errorf("%s takes %d operands, got %d", step.Exec, shape.Pops, len(step.Operands))
		}
		ops, err := toOperands(step.Operands)
		if err != nil {
			return err
		}
		for i, op := range ops {
			if wire.IsSymbolic(op) {
				return fmt.Errorf("operand %d: runtime values cannot be symbolic", i)
			}
		}
	}
	if step.Index != nil && action != "track" {
		return fmt.Errorf("index is only valid on track")
	}
	if len(step.Operands) > 0 && action != "exec" {
		return fmt.Errorf("operands are only valid on exec")
	}
	return nil
}

func validateAssertion(a Assertion) error {
	switch a.Type {
	case AssertCommandCount, AssertDepth:
		if a.Count == nil || *a.Count < 0 {
			return fmt.Errorf("%s needs a non-negative count", a.Type)
		}
	case AssertCommand:
		if a.Command == nil {
			return fmt.Errorf("command needs a command")
		}
		if _, err := toOperands(a.Command.Operands); err != nil {
			return err
		}
	case AssertEvalStack:
	case AssertFailure:
		if a.Code == "" {
			return fmt.Errorf("failure needs a code")
		}
	case "":
		return fmt.Errorf("type is required")
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}
