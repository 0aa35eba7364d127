package shadow

// DefaultMaxDepth bounds the call depth of a Stack unless overridden.
const DefaultMaxDepth = 1 << 16

// Stack is the shadow call stack of one managed thread.
//
// INVARIANTS:
//   - MinTopSinceLastSent() <= Depth()
//   - frames are only touched by the owning thread
type Stack struct {
	frames     []*Frame
	unsentPops int
	minTop     int
	maxDepth   int
}

// StackOption configures a Stack.
type StackOption func(*Stack)

// WithMaxDepth sets the maximum number of frames. Zero disables the limit.
func WithMaxDepth(n int) StackOption {
	return func(s *Stack) {
		s.maxDepth = n
	}
}

// NewStack creates an empty stack.
func NewStack(opts ...StackOption) *Stack {
	s := &Stack{maxDepth: DefaultMaxDepth}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Depth returns the number of frames.
func (s *Stack) Depth() int { return len(s.frames) }

// IsEmpty reports whether no frame is pushed.
func (s *Stack) IsEmpty() bool { return len(s.frames) == 0 }

// UnsentPops returns the reported frames popped since the last flush.
func (s *Stack) UnsentPops() int { return s.unsentPops }

// MinTopSinceLastSent returns the shallowest depth reached since the last flush.
func (s *Stack) MinTopSinceLastSent() int { return s.minTop }

// PushFrame pushes a frame that has not been entered yet.
func (s *Stack) PushFrame(resolved, unresolved uint32, args []bool) (*Frame, error) {
	if s.maxDepth > 0 && len(s.frames) >= s.maxDepth {
		return nil, corrupted(ErrCodeStackOverflow, len(s.frames),
			"call depth exceeds %d", s.maxDepth)
	}
	f := newFrame(resolved, unresolved, args, len(s.frames)+1)
	s.frames = append(s.frames, f)
	return f, nil
}

// PopFrame removes and returns the top frame.
//
// A frame the executor already knows about counts as an unsent pop. A frame
// pushed and popped inside one batching window is dropped, and the argument
// pops of its call go back to the caller: the executor still has to pop
// those slots.
func (s *Stack) PopFrame() (*Frame, error) {
	d := len(s.frames)
	if d == 0 {
		return nil, corrupted(ErrCodeEmptyCallStack, 0, "pop frame on empty call stack")
	}
	top := s.frames[d-1]
	s.frames[d-1] = nil
	s.frames = s.frames[:d-1]
	if d <= s.minTop {
		s.unsentPops++
		s.minTop = d - 1
	} else if d > 1 {
		s.frames[d-2].restorePops(top.callerPops)
	}
	top.callerPops = CallerPops{}
	return top, nil
}

// Top returns the top frame.
func (s *Stack) Top() (*Frame, error) {
	if len(s.frames) == 0 {
		return nil, corrupted(ErrCodeEmptyCallStack, 0, "no frame on call stack")
	}
	return s.frames[len(s.frames)-1], nil
}

// TokenAt returns the resolved token of the frame at 0-based index i.
func (s *Stack) TokenAt(i int) uint32 {
	return s.frames[i].ResolvedToken
}

// NewFrameTokens returns the tokens of frames pushed since the last flush,
// in call order.
func (s *Stack) NewFrameTokens() []uint32 {
	tokens := make([]uint32, 0, len(s.frames)-s.minTop)
	for i := s.minTop; i < len(s.frames); i++ {
		tokens = append(tokens, s.TokenAt(i))
	}
	return tokens
}

// ResetPopsTracking closes the batching window. It is called exactly once
// per flush.
func (s *Stack) ResetPopsTracking() {
	for i := s.minTop; i < len(s.frames); i++ {
		s.frames[i].callerPops = CallerPops{}
	}
	if n := len(s.frames); n > 0 {
		s.frames[n-1].resetTracking()
	}
	s.unsentPops = 0
	s.minTop = len(s.frames)
}
