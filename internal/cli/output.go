package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/shade/internal/shadow"
	"github.com/roach88/shade/internal/wire"
)

// Process exit codes.
const (
	ExitSuccess      = 0
	ExitFailure      = 1 // tracker fault, failed assertion, diverged replay, malformed record
	ExitCommandError = 2 // bad argument, unreadable scenario or database
)

// ExitError is a command error with the exit code the process should use.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError returns an ExitError without an underlying error.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError attaches an exit code to err.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode returns the exit code carried by err, or ExitFailure.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// CLIResponse is the envelope of every JSON document a command prints.
type CLIResponse struct {
	Status    string    `json:"status"` // "ok" or "error"
	Data      any       `json:"data,omitempty"`
	Error     *CLIError `json:"error,omitempty"`
	SessionID string    `json:"session_id,omitempty"`
}

// CLIError describes a failure. Code is a CLI code (E001...), a wire
// protocol code or a shadow corruption code. Offset is the byte position of
// a malformed record field; Depth is the call depth at which the shadow
// stack broke.
type CLIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Offset  *int   `json:"offset,omitempty"`
	Depth   *int   `json:"depth,omitempty"`
}

// DescribeError turns err into a CLIError. Protocol and corruption errors
// keep their own code and position; anything else is reported under
// fallback.
func DescribeError(err error, fallback string) *CLIError {
	var pe *wire.ProtocolError
	if errors.As(err, &pe) {
		e := &CLIError{Code: string(pe.Code), Message: pe.Message}
		if pe.Offset >= 0 {
			offset := pe.Offset
			e.Offset = &offset
		}
		return e
	}
	var ce *shadow.CorruptionError
	if errors.As(err, &ce) {
		depth := ce.Depth
		return &CLIError{Code: string(ce.Code), Message: ce.Message, Depth: &depth}
	}
	return &CLIError{Code: fallback, Message: err.Error()}
}

// String renders e for text output.
func (e *CLIError) String() string {
	return e.Code + e.where() + ": " + e.Message
}

func (e *CLIError) where() string {
	switch {
	case e.Offset != nil:
		return fmt.Sprintf(" at byte %d", *e.Offset)
	case e.Depth != nil:
		return fmt.Sprintf(" at depth %d", *e.Depth)
	}
	return ""
}

// OutputFormatter writes command results as text or as a CLIResponse.
// Diagnostics go to ErrWriter when it is set.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer
	Verbose   bool
}

// Success writes data.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "ok",
			Data:   data,
		})
	}
	fmt.Fprintln(f.Writer, data)
	return nil
}

// Error writes e.
func (f *OutputFormatter) Error(e *CLIError) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error:  e,
		})
	}
	fmt.Fprintf(f.Writer, "Error [%s]%s: %s\n", e.Code, e.where(), e.Message)
	return nil
}

// Fail writes a CLI error and returns the matching ExitError.
func (f *OutputFormatter) Fail(exitCode int, code, message string) error {
	e := &CLIError{Code: code, Message: message}
	if err := f.Error(e); err != nil {
		return err
	}
	return NewExitError(exitCode, e.String())
}

// FailWith writes err as described by DescribeError and returns an
// ExitError wrapping it.
func (f *OutputFormatter) FailWith(exitCode int, err error, fallback string) error {
	e := DescribeError(err, fallback)
	if werr := f.Error(e); werr != nil {
		return werr
	}
	return WrapExitError(exitCode, e.Code, err)
}

// VerboseLog writes a diagnostic line when Verbose is set.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	w := f.ErrWriter
	if w == nil {
		w = f.Writer
	}
	fmt.Fprintf(w, format+"\n", args...)
}
