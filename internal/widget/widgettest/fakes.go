// Package widgettest provides in-memory stand-ins for the remote widget SDK.
package widgettest

import (
	"context"
	"sync"
	"sync/atomic"

	"merchant/internal/payauth"
	"merchant/internal/widget"
)

// SDK is a controllable widget.SDK. Tests drive outcomes through the Emit
// methods (the SDK's own button) or AuthenticateFunc (custom-button mode).
type SDK struct {
	Options widget.Options

	// AuthenticateFunc backs Authenticate. When nil, Authenticate blocks
	// until ctx is done.
	AuthenticateFunc func(ctx context.Context) (payauth.AuthResult, error)
	MountErr         error

	mu            sync.Mutex
	mounted       string
	mounts        int
	unmounts      int
	destroys      int
	authenticated bool
}

func (s *SDK) Mount(container string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.MountErr != nil {
		return s.MountErr
	}
	s.mounts++
	s.mounted = container
	return nil
}

func (s *SDK) Unmount() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unmounts++
	s.mounted = ""
}

func (s *SDK) Authenticate(ctx context.Context) (payauth.AuthResult, error) {
	if s.AuthenticateFunc == nil {
		<-ctx.Done()
		return payauth.AuthResult{}, ctx.Err()
	}
	res, err := s.AuthenticateFunc(ctx)
	if err == nil {
		s.mu.Lock()
		s.authenticated = true
		s.mu.Unlock()
	}
	return res, err
}

func (s *SDK) IsAuthenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authenticated
}

func (s *SDK) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.destroys++
}

// EmitSuccess fires the OnSuccess callback handed to Init.
func (s *SDK) EmitSuccess(res payauth.AuthResult) {
	s.mu.Lock()
	s.authenticated = true
	s.mu.Unlock()
	s.Options.Callbacks.OnSuccess(res)
}

// EmitError fires the OnError callback handed to Init.
func (s *SDK) EmitError(err error) { s.Options.Callbacks.OnError(err) }

// EmitCancel fires the OnCancel callback handed to Init.
func (s *SDK) EmitCancel() { s.Options.Callbacks.OnCancel() }

// MountedAt returns the container the SDK is rendered into, or "".
func (s *SDK) MountedAt() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mounted
}

// Counts returns how often Mount, Unmount and Destroy ran.
func (s *SDK) Counts() (mounts, unmounts, destroys int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mounts, s.unmounts, s.destroys
}

// Initializer hands out SDK instances and remembers them.
type Initializer struct {
	InitErr  error
	MountErr error
	// Authenticate is copied into every SDK it creates.
	Authenticate func(ctx context.Context) (payauth.AuthResult, error)

	mu        sync.Mutex
	instances []*SDK
}

func (i *Initializer) Init(opts widget.Options) (widget.SDK, error) {
	if i.InitErr != nil {
		return nil, i.InitErr
	}
	sdk := &SDK{Options: opts, AuthenticateFunc: i.Authenticate, MountErr: i.MountErr}
	i.mu.Lock()
	i.instances = append(i.instances, sdk)
	i.mu.Unlock()
	return sdk, nil
}

// Instances returns every SDK created so far, oldest first.
func (i *Initializer) Instances() []*SDK {
	i.mu.Lock()
	defer i.mu.Unlock()
	return append([]*SDK(nil), i.instances...)
}

// Last returns the most recent SDK, or nil.
func (i *Initializer) Last() *SDK {
	i.mu.Lock()
	defer i.mu.Unlock()
	if len(i.instances) == 0 {
		return nil
	}
	return i.instances[len(i.instances)-1]
}

// Source is a widget.ScriptSource that counts fetches. When Gate is set,
// each fetch waits for a value on it before returning.
type Source struct {
	Init widget.Initializer
	Err  error
	Gate chan struct{}

	calls atomic.Int32
}

func (s *Source) Load(ctx context.Context) (widget.Initializer, error) {
	s.calls.Add(1)
	if s.Gate != nil {
		select {
		case <-s.Gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.Err != nil {
		return nil, s.Err
	}
	return s.Init, nil
}

// Calls returns how many fetches were made.
func (s *Source) Calls() int {
	return int(s.calls.Load())
}

// Trigger is a clickable element for custom-button mode.
type Trigger struct {
	mu sync.Mutex
	fn func()
}

func (t *Trigger) OnClick(fn func()) func() {
	t.mu.Lock()
	t.fn = fn
	t.mu.Unlock()
	return func() {
		t.mu.Lock()
		t.fn = nil
		t.mu.Unlock()
	}
}

// Click invokes the bound handler, if any.
func (t *Trigger) Click() {
	t.mu.Lock()
	fn := t.fn
	t.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Bound reports whether a handler is registered.
func (t *Trigger) Bound() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.fn != nil
}
