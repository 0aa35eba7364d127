package probe

import (
	"errors"
	"fmt"
)

// ErrPoisoned is returned by every Tracker call after a fatal error. The
// returned error also wraps the original failure.
var ErrPoisoned = errors.New("tracker poisoned")

// UnimplementedError reports an instruction the tracker cannot follow.
type UnimplementedError struct {
	Op     string
	Offset uint32
}

// Error implements the error interface.
func (e *UnimplementedError) Error() string {
	return fmt.Sprintf("UNIMPLEMENTED: %s at offset %d", e.Op, e.Offset)
}

// IsUnimplemented returns true if err is or wraps an UnimplementedError.
func IsUnimplemented(err error) bool {
	var ue *UnimplementedError
	return errors.As(err, &ue)
}
