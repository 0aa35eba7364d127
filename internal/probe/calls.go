package probe

import (
	"github.com/roach88/shade/internal/shadow"
)

// Call is the probe for call and newobj. It pops the callee's arguments
// from the caller and pushes a frame whose argument flags are the popped
// flags in declaration order; newobj prepends a concrete this.
//
// argCount must match the callee signature, excluding this for newobj. The
// argument slots are taken deepest-first, so the first declared parameter
// is the deepest slot.
//
// The popped arguments leave the caller's batching state and travel with the
// new frame. If the frame is popped before a flush reports it, they go back
// to the caller.
func (t *Tracker) Call(resolved, unresolved uint32, newobj bool, argCount int, offset uint32) error {
	if err := t.guard(); err != nil {
		return err
	}
	t.offset = offset
	if err := t.noPending("call"); err != nil {
		return err
	}
	top, err := t.top()
	if err != nil {
		return err
	}
	flags, err := top.PopFlags(argCount)
	if err != nil {
		return t.fail(err)
	}
	pops := top.ForgetWindow()

	args := flags
	if newobj {
		args = make([]bool, 0, argCount+1)
		args = append(args, true)
		args = append(args, flags...)
	}
	callee, err := t.stack.PushFrame(resolved, unresolved, args)
	if err != nil {
		return t.fail(err)
	}
	callee.SetCallerPops(pops)
	t.logger.Debug("call",
		"offset", offset,
		"resolved", resolved,
		"unresolved", unresolved,
		"args", len(args),
		"depth", t.stack.Depth())
	return nil
}

// CallVirt is the probe for callvirt. The target is resolved by the
// matching Enter.
func (t *Tracker) CallVirt(argCount int, offset uint32) error {
	return t.Call(0, 0, false, argCount, offset)
}

// Enter is the probe at the first instruction of a method.
//
// If the top frame is waiting for this method (same token, or token not
// known at call time) and has not been entered yet, it becomes the method's
// frame. Otherwise the method was called from code the tracker does not
// see, and a spontaneous frame with concrete arguments is pushed.
func (t *Tracker) Enter(token uint32, maxStackSize, argCount, localCount int) error {
	if err := t.guard(); err != nil {
		return err
	}
	if err := t.noPending("enter"); err != nil {
		return err
	}
	top, err := t.top()
	if err != nil {
		return err
	}

	expected := top.ResolvedToken
	if !top.Entered() && (expected == 0 || expected == token) {
		if expected == 0 {
			top.ResolvedToken = token
		}
		top.SetSpontaneous(false)
	} else {
		t.logger.Debug("spontaneous enter",
			"token", token,
			"expected", expected,
			"depth", t.stack.Depth()+1)
		args := make([]bool, argCount)
		for i := range args {
			args[i] = true
		}
		top, err = t.stack.PushFrame(token, token, args)
		if err != nil {
			return t.fail(err)
		}
		top.SetSpontaneous(true)
	}
	top.MarkEntered()
	top.Configure(maxStackSize, localCount)
	return nil
}

// EnterMain starts tracking a thread at its entry method. The shadow stack
// must be empty.
func (t *Tracker) EnterMain(token uint32, argCount int, argsConcrete bool, maxStackSize, localCount int) error {
	if err := t.guard(); err != nil {
		return err
	}
	if !t.stack.IsEmpty() {
		return t.fail(shadow.NewCorruption(shadow.ErrCodeOperandMismatch, t.stack.Depth(),
			"enter main with %d frames on the call stack", t.stack.Depth()))
	}
	args := make([]bool, argCount)
	for i := range args {
		args[i] = argsConcrete
	}
	if _, err := t.stack.PushFrame(token, token, args); err != nil {
		return t.fail(err)
	}
	if err := t.Enter(token, maxStackSize, argCount, localCount); err != nil {
		return err
	}
	t.stack.ResetPopsTracking()
	t.logger.Debug("main entered", "token", token, "args", argCount, "concrete", argsConcrete)
	return nil
}

// Leave is the probe at a ret instruction. The operand stack must hold
// exactly returnValues slots. The return flag moves to the caller unless
// the frame was spontaneous.
func (t *Tracker) Leave(returnValues int, offset uint32) error {
	if err := t.guard(); err != nil {
		return err
	}
	t.offset = offset
	top, err := t.checkLeave("leave", returnValues)
	if err != nil {
		return err
	}

	var ret bool
	if returnValues == 1 {
		if ret, err = top.Pop1(); err != nil {
			return t.fail(err)
		}
	}
	if _, err := t.stack.PopFrame(); err != nil {
		return t.fail(err)
	}
	if returnValues == 1 {
		caller, err := t.stack.Top()
		if err != nil {
			return t.fail(shadow.NewCorruption(shadow.ErrCodeEmptyCallStack, 0,
				"return value with no caller frame"))
		}
		if top.Spontaneous() {
			t.logger.Debug("ignoring return value of spontaneous frame",
				"token", top.ResolvedToken,
				"depth", t.stack.Depth())
		} else if err := caller.Push1(ret); err != nil {
			return t.fail(err)
		}
	}
	t.logger.Debug("leave", "offset", offset, "depth", t.stack.Depth())
	return nil
}

// LeaveMain is the probe at the ret of the thread's entry method.
func (t *Tracker) LeaveMain(returnValues int) error {
	if err := t.guard(); err != nil {
		return err
	}
	top, err := t.checkLeave("leave main", returnValues)
	if err != nil {
		return err
	}
	if returnValues == 1 {
		ret, err := top.Pop1()
		if err != nil {
			return t.fail(err)
		}
		t.logger.Info("main left", "return_concrete", ret)
	} else {
		t.logger.Info("main left")
	}
	if _, err := t.stack.PopFrame(); err != nil {
		return t.fail(err)
	}
	return nil
}

func (t *Tracker) checkLeave(what string, returnValues int) (*shadow.Frame, error) {
	if err := t.noPending(what); err != nil {
		return nil, err
	}
	if returnValues != 0 && returnValues != 1 {
		return nil, t.fail(shadow.NewCorruption(shadow.ErrCodeOperandMismatch, t.stack.Depth(),
			"%s with %d return values", what, returnValues))
	}
	top, err := t.top()
	if err != nil {
		return nil, err
	}
	if top.Count() != returnValues {
		return nil, t.fail(shadow.NewCorruption(shadow.ErrCodeUnbalancedLeave, top.Depth(),
			"%s with %d operand slots, want %d", what, top.Count(), returnValues))
	}
	return top, nil
}

// FinalizeCall runs after a call returns. A top frame that was never
// entered belongs to a method without instrumentation: it is popped and its
// result, if any, is pushed concrete.
func (t *Tracker) FinalizeCall(returnValues int) error {
	if err := t.guard(); err != nil {
		return err
	}
	if err := t.noPending("finalize call"); err != nil {
		return err
	}
	if returnValues != 0 && returnValues != 1 {
		return t.fail(shadow.NewCorruption(shadow.ErrCodeOperandMismatch, t.stack.Depth(),
			"finalize call with %d return values", returnValues))
	}
	top, err := t.top()
	if err != nil {
		return err
	}
	if top.Entered() {
		return nil
	}
	if _, err := t.stack.PopFrame(); err != nil {
		return t.fail(err)
	}
	caller, err := t.stack.Top()
	if err != nil {
		return t.fail(shadow.NewCorruption(shadow.ErrCodeEmptyCallStack, 0,
			"call stack empty after external call"))
	}
	t.logger.Debug("external call finished", "depth", t.stack.Depth())
	if returnValues == 1 {
		if err := caller.Push1Concrete(); err != nil {
			return t.fail(err)
		}
	}
	return nil
}

// Unwind pops frames left by an exception without propagating return
// values.
func (t *Tracker) Unwind(frames int) error {
	if err := t.guard(); err != nil {
		return err
	}
	if frames < 0 || frames > t.stack.Depth() {
		return t.fail(shadow.NewCorruption(shadow.ErrCodeEmptyCallStack, t.stack.Depth(),
			"unwind %d frames", frames))
	}
	t.pending = nil
	for i := 0; i < frames; i++ {
		if _, err := t.stack.PopFrame(); err != nil {
			return t.fail(err)
		}
	}
	t.logger.Debug("unwound", "frames", frames, "depth", t.stack.Depth())
	return nil
}
