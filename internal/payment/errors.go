package payment

import "errors"

// Error kinds returned (wrapped in domain errors) by Service.Process.
// Match with errors.Is; the domain error carries the status code and the
// client-safe message.
var (
	// ErrTokenRequired: the request carried no token. No remote call is made.
	ErrTokenRequired = errors.New("authentication token is required")

	// ErrVerificationUnavailable: the verification API could not be reached.
	// Retryable by repeating the whole payment attempt.
	ErrVerificationUnavailable = errors.New("token verification unavailable")

	// ErrTokenVerificationFailed: the verification API rejected the call.
	// Not retryable with the same token.
	ErrTokenVerificationFailed = errors.New("token verification failed")

	// ErrInvalidToken: the verification API judged the token invalid.
	// Not retryable with the same token.
	ErrInvalidToken = errors.New("invalid authentication token")
)

// Client-facing messages. They never include remote response bodies.
const (
	MessageTokenRequired       = "Authentication token is required"
	MessageInvalidBody         = "Invalid request body"
	MessageVerificationError   = "Error verifying authentication token"
	MessageInvalidToken        = "Invalid authentication token"
	MessageProcessingFailed    = "Payment processing failed"
	messageVerificationFailedF = "Token verification failed: %d"
)
