package shadow

import (
	"errors"
	"fmt"
)

// CorruptionError reports a desynchronisation between the shadow stack and
// the real program. It is never recoverable.
type CorruptionError struct {
	// Code identifies the error category.
	Code CorruptionCode

	// Message is a human-readable description.
	Message string

	// Depth is the call-stack depth at which the violation was detected.
	Depth int
}

// CorruptionCode categorizes corruption errors.
type CorruptionCode string

const (
	// ErrCodeStackUnderflow indicates a pop beyond the live operand slots.
	ErrCodeStackUnderflow CorruptionCode = "STACK_UNDERFLOW"

	// ErrCodeStackOverflow indicates a push beyond the frame's max stack size
	// or a call deeper than the configured maximum depth.
	ErrCodeStackOverflow CorruptionCode = "STACK_OVERFLOW"

	// ErrCodeEmptyCallStack indicates a frame access with no frames pushed.
	ErrCodeEmptyCallStack CorruptionCode = "EMPTY_CALL_STACK"

	// ErrCodeIndexOutOfRange indicates an argument or local index outside the frame.
	ErrCodeIndexOutOfRange CorruptionCode = "INDEX_OUT_OF_RANGE"

	// ErrCodeOperandMismatch indicates disagreeing pop and push counts.
	ErrCodeOperandMismatch CorruptionCode = "OPERAND_MISMATCH"

	// ErrCodeUnbalancedLeave indicates a frame left with a wrong operand stack balance.
	ErrCodeUnbalancedLeave CorruptionCode = "UNBALANCED_LEAVE"
)

// Error implements the error interface.
func (e *CorruptionError) Error() string {
	return fmt.Sprintf("%s: %s (depth=%d)", e.Code, e.Message, e.Depth)
}

// IsCorruption returns true if err is or wraps a CorruptionError.
func IsCorruption(err error) bool {
	var ce *CorruptionError
	return errors.As(err, &ce)
}

// HasCode returns true if err wraps a CorruptionError with the given code.
func HasCode(err error, code CorruptionCode) bool {
	var ce *CorruptionError
	if errors.As(err, &ce) {
		return ce.Code == code
	}
	return false
}

// NewCorruption creates a CorruptionError for callers outside this package
// that detect a desynchronisation, such as mismatched probe sequences.
func NewCorruption(code CorruptionCode, depth int, format string, args ...any) *CorruptionError {
	return corrupted(code, depth, format, args...)
}

func corrupted(code CorruptionCode, depth int, format string, args ...any) *CorruptionError {
	return &CorruptionError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Depth:   depth,
	}
}
