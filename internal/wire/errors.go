package wire

import (
	"errors"
	"fmt"
)

// ProtocolError reports a malformed record or a response that does not fit
// the command it answers.
type ProtocolError struct {
	// Code identifies the error category.
	Code ProtocolErrorCode

	// Message is a human-readable description.
	Message string

	// Offset is the byte offset in the record where decoding failed,
	// or -1 when the error is not tied to a position.
	Offset int
}

// ProtocolErrorCode categorizes protocol errors.
type ProtocolErrorCode string

const (
	// ErrCodeTruncated indicates the record ended before a field was complete.
	ErrCodeTruncated ProtocolErrorCode = "TRUNCATED"

	// ErrCodeTrailingBytes indicates bytes left over after a complete record.
	ErrCodeTrailingBytes ProtocolErrorCode = "TRAILING_BYTES"

	// ErrCodeUnknownTag indicates an operand descriptor with an unknown tag.
	ErrCodeUnknownTag ProtocolErrorCode = "UNKNOWN_TAG"

	// ErrCodeCountMismatch indicates a response operand count that does not
	// match the command.
	ErrCodeCountMismatch ProtocolErrorCode = "COUNT_MISMATCH"

	// ErrCodeTypeMismatch indicates a concretized operand of the wrong type.
	ErrCodeTypeMismatch ProtocolErrorCode = "TYPE_MISMATCH"

	// ErrCodeDistanceMismatch indicates a symbolic echo with a different distance.
	ErrCodeDistanceMismatch ProtocolErrorCode = "DISTANCE_MISMATCH"

	// ErrCodeUnexpectedReturn indicates a return value for an instruction
	// that pushes nothing.
	ErrCodeUnexpectedReturn ProtocolErrorCode = "UNEXPECTED_RETURN"

	// ErrCodeInvalidOperand indicates an operand that cannot be encoded.
	ErrCodeInvalidOperand ProtocolErrorCode = "INVALID_OPERAND"
)

// Error implements the error interface.
func (e *ProtocolError) Error() string {
	if e.Offset >= 0 {
		return fmt.Sprintf("%s: %s (offset=%d)", e.Code, e.Message, e.Offset)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsProtocolError returns true if err is or wraps a ProtocolError.
func IsProtocolError(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe)
}

// HasCode returns true if err wraps a ProtocolError with the given code.
func HasCode(err error, code ProtocolErrorCode) bool {
	var pe *ProtocolError
	if errors.As(err, &pe) {
		return pe.Code == code
	}
	return false
}

// NewProtocolError creates a ProtocolError not tied to a byte offset.
func NewProtocolError(code ProtocolErrorCode, format string, args ...any) *ProtocolError {
	return &ProtocolError{Code: code, Message: fmt.Sprintf(format, args...), Offset: -1}
}

func malformed(code ProtocolErrorCode, offset int, format string, args ...any) *ProtocolError {
	return &ProtocolError{Code: code, Message: fmt.Sprintf(format, args...), Offset: offset}
}
