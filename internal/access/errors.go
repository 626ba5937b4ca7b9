package access

import (
	"errors"
	"fmt"
	"time"

	"github.com/tejzpr/formgate/internal/form"
)

var (
	ErrTokenRequired    = errors.New("token is required")
	ErrTokenNotFound    = errors.New("invalid token")
	ErrAlreadySubmitted = errors.New("form already submitted")
	ErrTokenExpired     = errors.New("token has expired")
	ErrFormInactive     = errors.New("form is no longer active")
	ErrFormMismatch     = errors.New("token does not belong to this form")
	ErrValidationFailed = errors.New("validation failed")
	ErrExpiryTooLong    = fmt.Errorf("expiresInDays must not exceed %d", MaxExpiresInDays)

	// errConflict means another request consumed the token between the
	// precondition check and the write. It never leaves this package.
	errConflict = errors.New("submission conflict")
)

// DeniedError explains why a token does not currently grant access.
// It unwraps to one of the sentinel errors above.
type DeniedError struct {
	Reason      error
	SubmittedAt *time.Time
	ExpiresAt   *time.Time
}

func (e *DeniedError) Error() string { return e.Reason.Error() }

func (e *DeniedError) Unwrap() error { return e.Reason }

func deny(reason error) *DeniedError { return &DeniedError{Reason: reason} }

// ValidationError carries every field problem found in a submission.
type ValidationError struct {
	Errors []form.FieldError
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %d field error(s)", ErrValidationFailed, len(e.Errors))
}

func (e *ValidationError) Unwrap() error { return ErrValidationFailed }

// AsDenied extracts the DeniedError from err, if any.
func AsDenied(err error) (*DeniedError, bool) {
	var d *DeniedError
	ok := errors.As(err, &d)
	return d, ok
}
