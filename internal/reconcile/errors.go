package reconcile

import (
	"fmt"
	"strings"

	"scriptsync/internal/services"
)

// InvocationError reports that every oracle attempt failed.
type InvocationError struct {
	Attempts []Attempt
}

func (e *InvocationError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, attempt := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s: %v", attempt.Model, attempt.Err))
	}
	return fmt.Sprintf("oracle failed after %d attempt(s): %s", len(e.Attempts), strings.Join(parts, "; "))
}

// Unwrap exposes services.ErrOracle and the last attempt's cause.
func (e *InvocationError) Unwrap() []error {
	errs := []error{services.ErrOracle}
	if n := len(e.Attempts); n > 0 && e.Attempts[n-1].Err != nil {
		errs = append(errs, e.Attempts[n-1].Err)
	}
	return errs
}
