package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Clients and infrastructure layers
// return these (optionally wrapped) so services can translate them into domain
// errors:
// - ErrUnavailable: a remote dependency could not be reached or answered garbage
// - ErrExpired: a token or attempt outlived its validity window
// - ErrInvalidState: a component was used in the wrong lifecycle state
var (
	ErrUnavailable  = errors.New("unavailable")
	ErrExpired      = errors.New("expired")
	ErrInvalidState = errors.New("invalid state")
)
