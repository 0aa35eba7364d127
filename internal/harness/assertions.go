package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/shade/internal/wire"
)

// AssertionError is a failed assertion with enough context to debug it.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Commands []*wire.ExecCommand
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)
	if len(e.Commands) > 0 {
		fmt.Fprintf(&buf, "\nCommands sent:\n")
		for i, cmd := range e.Commands {
			fmt.Fprintf(&buf, "  [%d] %s\n", i, formatCommand(cmd))
		}
	}
	return buf.String()
}

func formatCommand(cmd *wire.ExecCommand) string {
	ops := make([]string, len(cmd.Operands))
	for i, op := range cmd.Operands {
		ops[i] = fmt.Sprint(op)
	}
	return fmt.Sprintf("offset=%d branch=%t new_frames=%v frame_pops=%d operands=[%s] stack_pops=%d",
		cmd.Offset, cmd.IsBranch, cmd.NewFrames, cmd.FramePops, strings.Join(ops, " "), cmd.StackPops)
}

// EvaluateAssertions checks every assertion against result and returns one
// message per failure.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluate(result, a); err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}

func evaluate(result *Result, a Assertion) error {
	commands := make([]*wire.ExecCommand, len(result.Exchanges))
	for i, ex := range result.Exchanges {
		commands[i] = ex.Command
	}

	switch a.Type {
	case AssertCommandCount:
		want := 0
		if a.Count != nil {
			want = *a.Count
		}
		if len(commands) != want {
			return &AssertionError{
				Type:     a.Type,
				Expected: fmt.Sprintf("%d commands", want),
				Actual:   fmt.Sprintf("%d commands", len(commands)),
				Commands: commands,
			}
		}
	case AssertCommand:
		if a.Index < 0 || a.Index >= len(commands) {
			return &AssertionError{
				Type:     a.Type,
				Expected: fmt.Sprintf("command %d", a.Index),
				Actual:   fmt.Sprintf("%d commands", len(commands)),
				Commands: commands,
			}
		}
		if a.Command == nil {
			return fmt.Errorf("command assertion without a command")
		}
		if diff := matchCommand(commands[a.Index], *a.Command); diff != "" {
			return &AssertionError{
				Type:     a.Type,
				Expected: fmt.Sprintf("command %d with %s", a.Index, diff),
				Actual:   formatCommand(commands[a.Index]),
				Commands: commands,
			}
		}
	case AssertEvalStack:
		ts, ok := result.Threads[a.Thread]
		if !ok {
			return fmt.Errorf("thread %d did not run", a.Thread)
		}
		want := a.Stack
		if !slices.Equal(ts.EvalStack, want) {
			return &AssertionError{
				Type:     a.Type,
				Expected: fmt.Sprintf("thread %d stack %v", a.Thread, want),
				Actual:   fmt.Sprintf("%v", ts.EvalStack),
			}
		}
	case AssertDepth:
		ts, ok := result.Threads[a.Thread]
		if !ok {
			return fmt.Errorf("thread %d did not run", a.Thread)
		}
		want := 0
		if a.Count != nil {
			want = *a.Count
		}
		if ts.Depth != want {
			return &AssertionError{
				Type:     a.Type,
				Expected: fmt.Sprintf("thread %d depth %d", a.Thread, want),
				Actual:   fmt.Sprintf("depth %d", ts.Depth),
			}
		}
	case AssertFailure:
		if result.Failure == nil {
			return &AssertionError{
				Type:     a.Type,
				Expected: a.Code,
				Actual:   "run completed",
			}
		}
		if got := FailureCode(result.Failure); got != a.Code {
			return &AssertionError{
				Type:     a.Type,
				Expected: a.Code,
				Actual:   fmt.Sprintf("%s (%v)", got, result.Failure),
			}
		}
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}

// matchCommand returns "" if every field set in want matches cmd, and a
// description of the first mismatch otherwise.
func matchCommand(cmd *wire.ExecCommand, want CommandSpec) string {
	if want.Offset != nil && *want.Offset != cmd.Offset {
		return fmt.Sprintf("offset %d", *want.Offset)
	}
	if want.Branch != nil && *want.Branch != cmd.IsBranch {
		return fmt.Sprintf("branch %t", *want.Branch)
	}
	if want.NewFrames != nil && !slices.Equal(want.NewFrames, cmd.NewFrames) {
		return fmt.Sprintf("new_frames %v", want.NewFrames)
	}
	if want.FramePops != nil && *want.FramePops != cmd.FramePops {
		return fmt.Sprintf("frame_pops %d", *want.FramePops)
	}
	if want.StackPops != nil && *want.StackPops != cmd.StackPops {
		return fmt.Sprintf("stack_pops %d", *want.StackPops)
	}
	if want.Operands != nil {
		ops, err := toOperands(want.Operands)
		if err != nil {
			return err.Error()
		}
		if !slices.Equal(ops, cmd.Operands) {
			return fmt.Sprintf("operands %v", ops)
		}
	}
	return ""
}
