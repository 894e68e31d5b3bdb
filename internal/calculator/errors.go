// Package calculator turns an ordered list of typed steps into an auditable
// running-total ledger. It performs no I/O.
package calculator

import (
	"errors"
	"fmt"
)

// ValidationError reports bad user input. Its message is safe to show to
// end users verbatim.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func validationErrorf(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is, or wraps, a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
