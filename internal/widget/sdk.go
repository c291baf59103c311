// Package widget adapts the externally hosted passkey authentication SDK to
// the host application: it loads the script once per process, mounts SDK
// instances and turns their callbacks into a state machine with exactly one
// terminal outcome per authentication attempt.
package widget

import (
	"context"

	"merchant/internal/payauth"
)

// Theme is the widget's visual variant. It has no behavioral effect.
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// DefaultButtonText labels the auto-rendered button.
const DefaultButtonText = "Pay with Passkey"

// SDK is one live instance of the remote widget.
type SDK interface {
	// Mount renders the widget's own button into container.
	Mount(container string) error
	// Unmount removes rendered nodes and listeners.
	Unmount()
	// Authenticate runs the passkey ceremony directly (custom-button mode).
	// A user dismissal returns an error matching ErrCancelled.
	Authenticate(ctx context.Context) (payauth.AuthResult, error)
	IsAuthenticated() bool
	// Destroy releases the instance; it must not be used afterwards.
	Destroy()
}

// Initializer is the global entry point the script exposes once loaded.
type Initializer interface {
	Init(opts Options) (SDK, error)
}

// InitializerFunc adapts a function to Initializer.
type InitializerFunc func(opts Options) (SDK, error)

// Init calls f.
func (f InitializerFunc) Init(opts Options) (SDK, error) {
	return f(opts)
}

// Callbacks are the three terminal notifications of an attempt.
type Callbacks struct {
	OnSuccess func(payauth.AuthResult)
	OnError   func(error)
	OnCancel  func()
}

// Options is the resolved configuration handed to Initializer.Init. It
// carries no API secret; verification credentials stay on the server.
type Options struct {
	MerchantID     string
	ServiceURL     string
	Theme          Theme
	ButtonText     string
	Container      string
	AllowedOrigins []string
	Callbacks      Callbacks
}

// Trigger is a caller-supplied element whose clicks start an attempt in
// custom-button mode.
type Trigger interface {
	// OnClick registers fn and returns a function that removes it.
	OnClick(fn func()) (unbind func())
}
