package widget

// State is the adapter's lifecycle position.
type State int

const (
	// StateIdle: nothing mounted.
	StateIdle State = iota
	// StateMounting: script loading or SDK being constructed.
	StateMounting
	// StateAwaitingAuthentication: SDK mounted, waiting for the user.
	StateAwaitingAuthentication
	// StateSucceeded: the last attempt produced an AuthResult.
	StateSucceeded
	// StateCancelled: the user dismissed the last attempt.
	StateCancelled
	// StateFailed: loading, mounting or the last attempt failed.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateMounting:
		return "mounting"
	case StateAwaitingAuthentication:
		return "awaiting_authentication"
	case StateSucceeded:
		return "succeeded"
	case StateCancelled:
		return "cancelled"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Retryable reports whether s leaves the button live with no failure to
// show: a dismissal resets to it rather than to StateFailed.
func (s State) Retryable() bool {
	return s == StateAwaitingAuthentication || s == StateCancelled
}
