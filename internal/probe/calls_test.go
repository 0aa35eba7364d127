package probe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/shade/internal/shadow"
	"github.com/roach88/shade/internal/wire"
)

func TestEnterMain(t *testing.T) {
	tr, _ := newTracker(t)
	require.NoError(t, tr.EnterMain(7, 2, false, 4, 1))

	top, err := tr.Stack().Top()
	require.NoError(t, err)
	assert.Equal(t, uint32(7), top.ResolvedToken)
	assert.Equal(t, []bool{false, false}, top.Args())
	assert.True(t, top.Entered())
	assert.False(t, top.Spontaneous())
	assert.Equal(t, 4, top.MaxStackSize())
	assert.Equal(t, 1, tr.Stack().MinTopSinceLastSent(), "main frame is not reported")
}

func TestEnterMain_NonEmptyStack(t *testing.T) {
	tr, _ := newTracker(t)
	enterMain(t, tr)

	err := tr.EnterMain(1, 0, true, 8, 0)
	require.Error(t, err)
	assert.True(t, shadow.HasCode(err, shadow.ErrCodeOperandMismatch))
}

func TestCall_ArgumentsInDeclarationOrder(t *testing.T) {
	tr, _ := newTracker(t)
	caller := enterMain(t, tr)
	pushFlags(t, caller, true, false, true)

	require.NoError(t, tr.Call(7, 7, false, 3, 10))

	assert.Equal(t, 2, tr.Stack().Depth())
	callee, err := tr.Stack().Top()
	require.NoError(t, err)
	assert.Equal(t, []bool{true, false, true}, callee.Args())
	assert.False(t, callee.Entered())
	assert.Empty(t, caller.EvalStack())
	assert.Zero(t, caller.StackPops(), "arguments are not caller pops")
	assert.Empty(t, caller.PoppedSymbolics())
}

func TestCall_NewobjPrependsThis(t *testing.T) {
	tr, _ := newTracker(t)
	caller := enterMain(t, tr)
	pushFlags(t, caller, false)

	require.NoError(t, tr.Call(7, 7, true, 1, 0))

	callee, err := tr.Stack().Top()
	require.NoError(t, err)
	assert.Equal(t, []bool{true, false}, callee.Args())
}

func TestCall_Underflow(t *testing.T) {
	tr, _ := newTracker(t)
	enterMain(t, tr)

	err := tr.Call(7, 7, false, 2, 0)
	require.Error(t, err)
	assert.True(t, shadow.HasCode(err, shadow.ErrCodeStackUnderflow))
}

func TestCallVirt_EnterResolvesToken(t *testing.T) {
	tr, _ := newTracker(t)
	caller := enterMain(t, tr)
	pushFlags(t, caller, true)

	require.NoError(t, tr.CallVirt(1, 0))
	require.NoError(t, tr.Enter(33, 4, 1, 0))

	assert.Equal(t, 2, tr.Stack().Depth())
	top, err := tr.Stack().Top()
	require.NoError(t, err)
	assert.Equal(t, uint32(33), top.ResolvedToken)
	assert.True(t, top.Entered())
	assert.False(t, top.Spontaneous())
}

func TestEnter_SpontaneousWhenNoCallPending(t *testing.T) {
	tr, _ := newTracker(t)
	enterMain(t, tr)

	require.NoError(t, tr.Enter(99, 4, 2, 1))

	assert.Equal(t, 2, tr.Stack().Depth())
	top, err := tr.Stack().Top()
	require.NoError(t, err)
	assert.True(t, top.Spontaneous())
	assert.True(t, top.Entered())
	assert.Equal(t, []bool{true, true}, top.Args())
	assert.Equal(t, uint32(99), top.ResolvedToken)
}

func TestEnter_SpontaneousOnTokenMismatch(t *testing.T) {
	tr, _ := newTracker(t)
	enterMain(t, tr)

	require.NoError(t, tr.Call(5, 5, false, 0, 0))
	require.NoError(t, tr.Enter(6, 4, 0, 0))

	assert.Equal(t, 3, tr.Stack().Depth())
	top, err := tr.Stack().Top()
	require.NoError(t, err)
	assert.True(t, top.Spontaneous())
	assert.Equal(t, uint32(6), top.ResolvedToken)
}

func TestCall_KCallsReportKFrames(t *testing.T) {
	tr, st := newTracker(t, &wire.Response{})
	enterMain(t, tr)

	for _, tok := range []uint32{10, 11, 12} {
		require.NoError(t, tr.Call(tok, tok, false, 0, 0))
		require.NoError(t, tr.Enter(tok, 4, 0, 0))
	}
	top, err := tr.Stack().Top()
	require.NoError(t, err)
	pushFlags(t, top, false)

	_, err = tr.Track(OpCondBranch, 6)
	require.NoError(t, err)

	cmds := commands(t, st)
	require.Len(t, cmds, 1)
	assert.Equal(t, []uint32{10, 11, 12}, cmds[0].NewFrames)
	assert.Zero(t, cmds[0].FramePops)
}

func TestLeave_PropagatesReturnFlag(t *testing.T) {
	tr, _ := newTracker(t)
	caller := enterMain(t, tr)

	require.NoError(t, tr.Call(5, 5, false, 0, 0))
	require.NoError(t, tr.Enter(5, 4, 0, 0))
	callee, err := tr.Stack().Top()
	require.NoError(t, err)
	pushFlags(t, callee, false)

	require.NoError(t, tr.Leave(1, 20))
	assert.Equal(t, 1, tr.Stack().Depth())
	assert.Equal(t, []bool{false}, caller.EvalStack())

	// external instrumentation still runs its finalizer; the entered
	// frame is gone so this is a no-op
	require.NoError(t, tr.FinalizeCall(1))
	assert.Equal(t, []bool{false}, caller.EvalStack())
}

func TestLeave_SpontaneousFrameDropsReturn(t *testing.T) {
	tr, _ := newTracker(t)
	caller := enterMain(t, tr)

	require.NoError(t, tr.Enter(99, 4, 0, 0))
	callee, err := tr.Stack().Top()
	require.NoError(t, err)
	pushFlags(t, callee, true)

	require.NoError(t, tr.Leave(1, 0))
	assert.Equal(t, 1, tr.Stack().Depth())
	assert.Empty(t, caller.EvalStack())
}

func TestLeave_Unbalanced(t *testing.T) {
	tr, _ := newTracker(t)
	enterMain(t, tr)
	require.NoError(t, tr.Call(5, 5, false, 0, 0))
	require.NoError(t, tr.Enter(5, 4, 0, 0))
	callee, err := tr.Stack().Top()
	require.NoError(t, err)
	pushFlags(t, callee, true, true)

	err = tr.Leave(1, 0)
	require.Error(t, err)
	assert.True(t, shadow.HasCode(err, shadow.ErrCodeUnbalancedLeave))
}

func TestLeave_InvalidReturnCount(t *testing.T) {
	tr, _ := newTracker(t)
	enterMain(t, tr)

	err := tr.Leave(2, 0)
	require.Error(t, err)
	assert.True(t, shadow.HasCode(err, shadow.ErrCodeOperandMismatch))
}

func TestLeave_ReturnWithoutCaller(t *testing.T) {
	tr, _ := newTracker(t)
	top := enterMain(t, tr)
	pushFlags(t, top, true)

	err := tr.Leave(1, 0)
	require.Error(t, err)
	assert.True(t, shadow.HasCode(err, shadow.ErrCodeEmptyCallStack))
}

func TestLeaveMain(t *testing.T) {
	tr, _ := newTracker(t)
	top := enterMain(t, tr)
	pushFlags(t, top, false)

	require.NoError(t, tr.LeaveMain(1))
	assert.True(t, tr.Stack().IsEmpty())
}

func TestLeave_ReportedFrameCountsAsFramePop(t *testing.T) {
	tr, st := newTracker(t, &wire.Response{}, &wire.Response{})
	caller := enterMain(t, tr)

	require.NoError(t, tr.Call(5, 5, false, 0, 0))
	require.NoError(t, tr.Enter(5, 4, 0, 0))
	callee, err := tr.Stack().Top()
	require.NoError(t, err)
	pushFlags(t, callee, false)
	_, err = tr.Track(OpCondBranch, 2)
	require.NoError(t, err)

	require.NoError(t, tr.Leave(0, 4))
	pushFlags(t, caller, false)
	_, err = tr.Track(OpCondBranch, 8)
	require.NoError(t, err)

	cmds := commands(t, st)
	require.Len(t, cmds, 2)
	assert.Equal(t, []uint32{5}, cmds[0].NewFrames)
	assert.Zero(t, cmds[0].FramePops)
	assert.Empty(t, cmds[1].NewFrames)
	assert.Equal(t, uint32(1), cmds[1].FramePops)
}

func TestLeave_UnreportedFrameLeavesNoTrace(t *testing.T) {
	tr, st := newTracker(t, &wire.Response{})
	caller := enterMain(t, tr)

	require.NoError(t, tr.Call(5, 5, false, 0, 0))
	require.NoError(t, tr.Enter(5, 4, 0, 0))
	require.NoError(t, tr.Leave(0, 4))

	pushFlags(t, caller, false)
	_, err := tr.Track(OpCondBranch, 8)
	require.NoError(t, err)

	cmds := commands(t, st)
	require.Len(t, cmds, 1)
	assert.Empty(t, cmds[0].NewFrames)
	assert.Zero(t, cmds[0].FramePops)
}

func TestLeave_UnreportedCalleeReturnsArgumentPops(t *testing.T) {
	tr, st := newTracker(t, &wire.Response{}, &wire.Response{}, &wire.Response{})
	caller := enterMain(t, tr)
	require.NoError(t, caller.SetLoc(0, false))
	require.NoError(t, caller.SetLoc(1, false))

	_, err := tr.TrackSlot(OpLdloc, 0, 0)
	require.NoError(t, err)
	_, err = tr.TrackSlot(OpLdloc, 1, 1)
	require.NoError(t, err)
	require.Equal(t, []bool{false, false}, caller.EvalStack())

	require.NoError(t, tr.Call(5, 5, false, 1, 2))
	require.NoError(t, tr.Enter(5, 4, 1, 0))
	_, err = tr.Track(OpLdc, 0)
	require.NoError(t, err)
	require.NoError(t, tr.Leave(1, 1))
	require.NoError(t, tr.FinalizeCall(1))
	require.Equal(t, []bool{false, true}, caller.EvalStack())

	ok, err := tr.Track(OpBinary, 7)
	require.NoError(t, err)
	require.False(t, ok)
	_, err = tr.Exec(OpBinary, 7, wire.I32(3), wire.I32(1))
	require.NoError(t, err)

	cmds := commands(t, st)
	require.Len(t, cmds, 3)
	cmd := cmds[2]
	assert.Empty(t, cmd.NewFrames)
	assert.Zero(t, cmd.FramePops)
	assert.Equal(t, []wire.Operand{wire.Symbolic{Distance: 1}, wire.I32(1)}, cmd.Operands,
		"the argument slot is still on the executor's stack above the first operand")
	assert.Equal(t, uint32(3), cmd.StackPops)
}

func TestLeave_ReportedCalleeKeepsArgumentPopsOut(t *testing.T) {
	tr, st := newTracker(t, &wire.Response{}, &wire.Response{}, &wire.Response{})
	caller := enterMain(t, tr)
	pushFlags(t, caller, false, false)

	require.NoError(t, tr.Call(5, 5, false, 1, 0))
	callee, err := tr.Stack().Top()
	require.NoError(t, err)
	require.NoError(t, tr.Enter(5, 4, 1, 0))
	_, err = tr.TrackSlot(OpLdarg, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, shadow.CallerPops{}, callee.CallerPops())

	_, err = tr.Track(OpCondBranch, 1)
	require.NoError(t, err)
	require.NoError(t, tr.Leave(0, 2))

	_, err = tr.Track(OpCondBranch, 8)
	require.NoError(t, err)

	cmds := commands(t, st)
	require.Len(t, cmds, 3)
	assert.Equal(t, []uint32{5}, cmds[0].NewFrames)
	assert.Equal(t, uint32(1), cmds[2].FramePops)
	assert.Equal(t, []wire.Operand{wire.Symbolic{Distance: 0}}, cmds[2].Operands)
	assert.Equal(t, uint32(1), cmds[2].StackPops, "argument pops went out with the callee frame")
}

func TestFinalizeCall_UninstrumentedCallee(t *testing.T) {
	tr, _ := newTracker(t)
	caller := enterMain(t, tr)
	pushFlags(t, caller, false)

	require.NoError(t, tr.Call(5, 5, false, 1, 0))
	require.Equal(t, 2, tr.Stack().Depth())

	require.NoError(t, tr.FinalizeCall(1))
	assert.Equal(t, 1, tr.Stack().Depth())
	assert.Equal(t, []bool{true}, caller.EvalStack(), "external results are concrete")
}

func TestFinalizeCall_NoResult(t *testing.T) {
	tr, _ := newTracker(t)
	caller := enterMain(t, tr)

	require.NoError(t, tr.Call(5, 5, false, 0, 0))
	require.NoError(t, tr.FinalizeCall(0))
	assert.Equal(t, 1, tr.Stack().Depth())
	assert.Empty(t, caller.EvalStack())
}

func TestUnwind(t *testing.T) {
	tr, _ := newTracker(t)
	enterMain(t, tr)
	require.NoError(t, tr.Call(5, 5, false, 0, 0))
	require.NoError(t, tr.Enter(5, 4, 0, 0))
	require.NoError(t, tr.Call(6, 6, false, 0, 0))

	require.NoError(t, tr.Unwind(2))
	assert.Equal(t, 1, tr.Stack().Depth())

	err := tr.Unwind(5)
	require.Error(t, err)
	assert.True(t, shadow.HasCode(err, shadow.ErrCodeEmptyCallStack))
}

func TestUnwind_ClearsPendingExec(t *testing.T) {
	tr, _ := newTracker(t)
	enterMain(t, tr)
	require.NoError(t, tr.Call(5, 5, false, 0, 0))
	require.NoError(t, tr.Enter(5, 4, 0, 0))
	callee, err := tr.Stack().Top()
	require.NoError(t, err)
	pushFlags(t, callee, false)

	_, err = tr.Track(OpUnary, 0)
	require.NoError(t, err)
	require.NoError(t, tr.Unwind(1))

	ok, err := tr.Track(OpLdc, 1)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCall_WhileExecPending(t *testing.T) {
	tr, _ := newTracker(t)
	top := enterMain(t, tr)
	pushFlags(t, top, false)

	_, err := tr.Track(OpUnary, 0)
	require.NoError(t, err)
	err = tr.Call(5, 5, false, 0, 2)
	require.Error(t, err)
	assert.True(t, shadow.HasCode(err, shadow.ErrCodeOperandMismatch))
}
