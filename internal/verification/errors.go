package verification

import (
	"errors"
	"fmt"

	"merchant/pkg/platform/sentinel"
)

var (
	// ErrUnavailable indicates the verification API could not be reached or
	// did not produce a readable response. Callers may retry the whole attempt.
	ErrUnavailable = fmt.Errorf("verification API %w", sentinel.ErrUnavailable)

	// ErrRejected indicates the verification API answered with a non-success
	// status. Match with errors.Is; use errors.As with *RejectedError for the status.
	ErrRejected = errors.New("verification API rejected request")

	// ErrMalformedResponse indicates a success status with an undecodable body.
	ErrMalformedResponse = errors.New("verification API returned a malformed response")
)

// RejectedError carries the status of a rejected verification call. Body is a
// truncated preview for server-side diagnostics and must not reach end users.
type RejectedError struct {
	StatusCode int
	Body       string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("%s: HTTP %d", ErrRejected.Error(), e.StatusCode)
}

// Is makes errors.Is(err, ErrRejected) hold for every RejectedError.
func (e *RejectedError) Is(target error) bool {
	return target == ErrRejected
}
