package widget

import (
	"errors"
	"fmt"
)

var (
	// ErrCancelled is returned by SDK.Authenticate when the user dismisses
	// the ceremony. It is a normal outcome, not a failure.
	ErrCancelled = errors.New("authentication cancelled")

	// ErrAttemptAbandoned is reported when an attempt produced no outcome
	// within the attempt timeout.
	ErrAttemptAbandoned = errors.New("authentication attempt abandoned")

	// ErrSDKUnavailable is returned when the script loaded but exposed no initializer.
	ErrSDKUnavailable = errors.New("PayAuth SDK global not available")

	// ErrInvalidConfig is returned for configurations that cannot mount.
	ErrInvalidConfig = errors.New("invalid widget configuration")
)

// LoadError reports that the widget script could not be fetched. The adapter
// does not retry; the caller may remount to try again.
type LoadError struct {
	URL string
	Err error
}

func (e *LoadError) Error() string {
	if e.URL == "" {
		return fmt.Sprintf("failed to load PayAuth SDK: %v", e.Err)
	}
	return fmt.Sprintf("failed to load PayAuth SDK from %s: %v", e.URL, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// IsLoadError reports whether err is (or wraps) a *LoadError.
func IsLoadError(err error) bool {
	var le *LoadError
	return errors.As(err, &le)
}
