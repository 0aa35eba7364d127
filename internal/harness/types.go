package harness

import (
	"errors"

	"github.com/roach88/shade/internal/probe"
	"github.com/roach88/shade/internal/shadow"
	"github.com/roach88/shade/internal/trace"
	"github.com/roach88/shade/internal/transport"
	"github.com/roach88/shade/internal/wire"
)

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true if every step expectation and assertion held.
	Pass bool

	SessionID string

	// Exchanges holds every command and response, in seq order.
	Exchanges []trace.Exchange

	// Threads holds the final state of every thread that ran.
	Threads map[int64]ThreadState

	// Failure is the error that stopped the run, if any. FailedStep is
	// its step index, or -1.
	Failure    error
	FailedStep int

	// Errors contains one message per failed expectation or assertion.
	Errors []string
}

// ThreadState is the shadow state of a thread after the run.
type ThreadState struct {
	Depth     int
	EvalStack []bool
	Stats     probe.Stats
}

// NewResult creates a passing result with no exchanges.
func NewResult() *Result {
	return &Result{
		Pass:       true,
		Exchanges:  []trace.Exchange{},
		Threads:    make(map[int64]ThreadState),
		FailedStep: -1,
		Errors:     []string{},
	}
}

// AddError records a failed check and marks the result as failed.
func (r *Result) AddError(msg string) {
	r.Errors = append(r.Errors, msg)
	r.Pass = false
}

// Failure codes that are not protocol or corruption codes.
const (
	FailureUnimplemented = "UNIMPLEMENTED"
	FailureDivergence    = "DIVERGENCE"
	FailureOther         = "ERROR"
)

// FailureCode classifies err: a protocol error code, a corruption code,
// FailureUnimplemented, FailureDivergence, or FailureOther.
func FailureCode(err error) string {
	var pe *wire.ProtocolError
	if errors.As(err, &pe) {
		return string(pe.Code)
	}
	var ce *shadow.CorruptionError
	if errors.As(err, &ce) {
		return string(ce.Code)
	}
	if probe.IsUnimplemented(err) {
		return FailureUnimplemented
	}
	var de *transport.DivergenceError
	if errors.As(err, &de) {
		return FailureDivergence
	}
	return FailureOther
}
