package rename

import (
	"errors"
	"fmt"
)

// ErrInvariant is the target for errors.Is on invariant violations. These
// indicate a programming error; callers abort the run.
var ErrInvariant = errors.New("invariant violation")

// InvariantError describes a broken naming invariant.
type InvariantError struct {
	Subject string
	Detail  string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("invariant violation: %q %s", e.Subject, e.Detail)
}

func (e *InvariantError) Unwrap() error {
	return ErrInvariant
}
