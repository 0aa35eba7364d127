package shadow

import "slices"

// PoppedSymbolic records one symbolic operand slot popped since the last flush.
//
// Generation is the number of symbolic slots on the operand stack right
// before the pop, so (current symbolic count + popped count) - Generation is
// the slot's distance from the executor's symbolic-stack top. Position is the
// slot's index inside its instruction's pop group, counted from the top.
type PoppedSymbolic struct {
	Generation int
	Position   int
}

// CallerPops is a caller pop group handed to a callee frame: the argument
// slots a call consumed. The executor learns about them only if the callee
// frame is reported.
type CallerPops struct {
	Popped    []PoppedSymbolic
	StackPops int
}

// Frame is the concreteness state of one call.
//
// Only booleans are stored: true means concrete. The top of the operand
// stack is the last element of the operand slice.
type Frame struct {
	// ResolvedToken and UnresolvedToken identify the method this frame
	// represents. A zero ResolvedToken means "not known at call time".
	ResolvedToken   uint32
	UnresolvedToken uint32

	args      []bool
	locals    []bool
	evalStack []bool

	// symbolics counts the false entries in evalStack.
	symbolics int

	popped      []PoppedSymbolic
	windowStart int // index into popped where the current pop group starts
	windowSize  int // slots popped by the current pop group
	stackPops   int

	// callerPops are the caller's argument pops, given back to the caller
	// if this frame is popped before any flush reported it.
	callerPops CallerPops

	maxStackSize int
	spontaneous  bool
	entered      bool

	depth int
}

func newFrame(resolved, unresolved uint32, args []bool, depth int) *Frame {
	argsCopy := make([]bool, len(args))
	copy(argsCopy, args)
	return &Frame{
		ResolvedToken:   resolved,
		UnresolvedToken: unresolved,
		args:            argsCopy,
		depth:           depth,
	}
}

// Depth returns the 1-based position of the frame in its stack.
func (f *Frame) Depth() int { return f.depth }

// Count returns the number of live operand slots.
func (f *Frame) Count() int { return len(f.evalStack) }

// Symbolics returns the number of live symbolic operand slots.
func (f *Frame) Symbolics() int { return f.symbolics }

// ArgCount returns the number of argument slots.
func (f *Frame) ArgCount() int { return len(f.args) }

// LocalCount returns the number of local slots.
func (f *Frame) LocalCount() int { return len(f.locals) }

// EvalStack returns a copy of the operand-stack flags, bottom first.
func (f *Frame) EvalStack() []bool {
	out := make([]bool, len(f.evalStack))
	copy(out, f.evalStack)
	return out
}

// Args returns a copy of the argument flags.
func (f *Frame) Args() []bool {
	out := make([]bool, len(f.args))
	copy(out, f.args)
	return out
}

// Entered reports whether the prologue probe configured this frame.
func (f *Frame) Entered() bool { return f.entered }

// MarkEntered records that the prologue probe fired.
func (f *Frame) MarkEntered() { f.entered = true }

// Spontaneous reports whether the frame was inferred from a mismatched prologue.
func (f *Frame) Spontaneous() bool { return f.spontaneous }

// SetSpontaneous sets the spontaneous marker.
func (f *Frame) SetSpontaneous(v bool) { f.spontaneous = v }

// MaxStackSize returns the configured operand-stack capacity.
func (f *Frame) MaxStackSize() int { return f.maxStackSize }

// Configure sizes the locals and the operand-stack capacity. Locals start
// concrete: the VM zero-initialises them.
func (f *Frame) Configure(maxStackSize, localCount int) {
	f.maxStackSize = maxStackSize
	f.locals = make([]bool, localCount)
	for i := range f.locals {
		f.locals[i] = true
	}
}

// Push1 pushes one slot with the given concreteness.
func (f *Frame) Push1(concrete bool) error {
	if f.entered && len(f.evalStack) >= f.maxStackSize {
		return corrupted(ErrCodeStackOverflow, f.depth,
			"push beyond max stack size %d", f.maxStackSize)
	}
	f.evalStack = append(f.evalStack, concrete)
	if !concrete {
		f.symbolics++
	}
	return nil
}

// Push1Concrete pushes one concrete slot.
func (f *Frame) Push1Concrete() error {
	return f.Push1(true)
}

// Peek0 returns the concreteness of the top slot without popping it.
func (f *Frame) Peek0() (bool, error) {
	if len(f.evalStack) == 0 {
		return false, corrupted(ErrCodeStackUnderflow, f.depth, "peek on empty operand stack")
	}
	return f.evalStack[len(f.evalStack)-1], nil
}

// Dup duplicates the top slot and returns its concreteness.
func (f *Frame) Dup() (bool, error) {
	c, err := f.Peek0()
	if err != nil {
		return false, err
	}
	return c, f.Push1(c)
}

// Pop0 marks an instruction that pops nothing: it opens an empty pop group.
func (f *Frame) Pop0() {
	f.beginWindow(0)
}

// Pop1 pops the top slot and returns its concreteness.
func (f *Frame) Pop1() (bool, error) {
	return f.Pop(1)
}

// Pop pops n slots as one pop group and reports whether all were concrete.
func (f *Frame) Pop(n int) (bool, error) {
	if err := f.checkPop(n); err != nil {
		return false, err
	}
	f.beginWindow(n)
	all := true
	for i := 0; i < n; i++ {
		if !f.popOne(i) {
			all = false
		}
	}
	return all, nil
}

// PopFlags pops n slots as one pop group and returns their flags in stack
// order, deepest first.
func (f *Frame) PopFlags(n int) ([]bool, error) {
	if err := f.checkPop(n); err != nil {
		return nil, err
	}
	f.beginWindow(n)
	flags := make([]bool, n)
	for i := 0; i < n; i++ {
		flags[n-1-i] = f.popOne(i)
	}
	return flags, nil
}

func (f *Frame) checkPop(n int) error {
	if n < 0 {
		return corrupted(ErrCodeOperandMismatch, f.depth, "negative pop count %d", n)
	}
	if n > len(f.evalStack) {
		return corrupted(ErrCodeStackUnderflow, f.depth,
			"pop %d with %d live slots", n, len(f.evalStack))
	}
	return nil
}

func (f *Frame) beginWindow(n int) {
	f.windowStart = len(f.popped)
	f.windowSize = n
}

// popOne pops the top slot; position is its index within the pop group.
func (f *Frame) popOne(position int) bool {
	last := len(f.evalStack) - 1
	c := f.evalStack[last]
	f.evalStack = f.evalStack[:last]
	f.stackPops++
	if !c {
		f.popped = append(f.popped, PoppedSymbolic{
			Generation: f.symbolics,
			Position:   position,
		})
		f.symbolics--
	}
	return c
}

// PoppedSymbolics returns the symbolic slots popped since the last flush.
func (f *Frame) PoppedSymbolics() []PoppedSymbolic {
	return f.popped
}

// Window returns the symbolic slots popped by the current pop group and the
// group's size.
func (f *Frame) Window() ([]PoppedSymbolic, int) {
	return f.popped[f.windowStart:], f.windowSize
}

// StackPops returns the operand pops since the last flush.
func (f *Frame) StackPops() int { return f.stackPops }

// ForgetWindow drops the current pop group from the batching bookkeeping
// and returns it. Call uses it: popped arguments reach the executor as the
// callee's arguments, not as caller pops.
func (f *Frame) ForgetWindow() CallerPops {
	p := CallerPops{
		Popped:    slices.Clone(f.popped[f.windowStart:]),
		StackPops: f.windowSize,
	}
	f.popped = f.popped[:f.windowStart]
	f.stackPops -= f.windowSize
	f.windowSize = 0
	return p
}

// SetCallerPops attaches the pop group of the call that pushed f.
func (f *Frame) SetCallerPops(p CallerPops) { f.callerPops = p }

// CallerPops returns the pop group attached by SetCallerPops, or the zero
// value once a flush reported f.
func (f *Frame) CallerPops() CallerPops { return f.callerPops }

// restorePops gives back the pop group of an unreported callee. The
// restored slots belong to no current pop group.
func (f *Frame) restorePops(p CallerPops) {
	f.popped = append(f.popped, p.Popped...)
	f.stackPops += p.StackPops
	f.windowStart = len(f.popped)
	f.windowSize = 0
}

func (f *Frame) resetTracking() {
	f.popped = f.popped[:0]
	f.windowStart = 0
	f.windowSize = 0
	f.stackPops = 0
}

// Arg returns the concreteness of argument i.
func (f *Frame) Arg(i int) (bool, error) {
	if i < 0 || i >= len(f.args) {
		return false, corrupted(ErrCodeIndexOutOfRange, f.depth,
			"argument %d out of range [0,%d)", i, len(f.args))
	}
	return f.args[i], nil
}

// SetArg sets the concreteness of argument i.
func (f *Frame) SetArg(i int, concrete bool) error {
	if i < 0 || i >= len(f.args) {
		return corrupted(ErrCodeIndexOutOfRange, f.depth,
			"argument %d out of range [0,%d)", i, len(f.args))
	}
	f.args[i] = concrete
	return nil
}

// Loc returns the concreteness of local i.
func (f *Frame) Loc(i int) (bool, error) {
	if i < 0 || i >= len(f.locals) {
		return false, corrupted(ErrCodeIndexOutOfRange, f.depth,
			"local %d out of range [0,%d)", i, len(f.locals))
	}
	return f.locals[i], nil
}

// SetLoc sets the concreteness of local i.
func (f *Frame) SetLoc(i int, concrete bool) error {
	if i < 0 || i >= len(f.locals) {
		return corrupted(ErrCodeIndexOutOfRange, f.depth,
			"local %d out of range [0,%d)", i, len(f.locals))
	}
	f.locals[i] = concrete
	return nil
}
