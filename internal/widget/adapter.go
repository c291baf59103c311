package widget

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"merchant/internal/payauth"
	"merchant/pkg/platform/sentinel"
)

// DefaultAttemptTimeout bounds a ceremony the adapter started (a trigger
// click or Authenticate) that never reports an outcome.
const DefaultAttemptTimeout = 2 * time.Minute

// Config describes one logical pay button.
//
// With Container set the SDK renders its own button there (auto-mount mode).
// With Container empty, Trigger is required and its clicks call
// SDK.Authenticate directly (custom-button mode).
type Config struct {
	MerchantID     string
	ServiceURL     string
	Theme          Theme
	ButtonText     string
	Container      string
	Trigger        Trigger
	AllowedOrigins []string
	AttemptTimeout time.Duration
}

func (c Config) validate() error {
	if c.MerchantID == "" {
		return fmt.Errorf("%w: merchant id is required", ErrInvalidConfig)
	}
	if c.Container == "" && c.Trigger == nil {
		return fmt.Errorf("%w: either a container or a trigger is required", ErrInvalidConfig)
	}
	return nil
}

func (c Config) autoMount() bool {
	return c.Container != ""
}

func (c Config) attemptTimeout() time.Duration {
	if c.AttemptTimeout > 0 {
		return c.AttemptTimeout
	}
	return DefaultAttemptTimeout
}

func (c Config) options(cb Callbacks) Options {
	theme := c.Theme
	if theme == "" {
		theme = ThemeLight
	}
	text := c.ButtonText
	if text == "" {
		text = DefaultButtonText
	}
	return Options{
		MerchantID:     c.MerchantID,
		ServiceURL:     c.ServiceURL,
		Theme:          theme,
		ButtonText:     text,
		Container:      c.Container,
		AllowedOrigins: append([]string(nil), c.AllowedOrigins...),
		Callbacks:      cb,
	}
}

type outcome int

const (
	outcomeSuccess outcome = iota
	outcomeError
	outcomeCancel
)

// attempt is one authentication ceremony started by the adapter. It is open
// from the call to SDK.Authenticate until exactly one outcome is delivered.
type attempt struct {
	id       uint64
	ctx      context.Context
	cancel   context.CancelFunc
	timer    *time.Timer
	inFlight bool
}

// Adapter binds one logical button to SDK instances. Lifecycle methods
// (Initialize, Mount, Start, Reconfigure, Reset, Teardown) are serialized;
// host callbacks run outside internal locks and must not call lifecycle
// methods synchronously.
type Adapter struct {
	loader *Loader
	host   Callbacks
	logger *slog.Logger

	lifecycle sync.Mutex

	mu          sync.Mutex
	base        context.Context
	state       State
	cfg         Config
	initializer Initializer
	sdk         SDK
	unbind      func()
	generation  uint64
	attempt     *attempt
	attempts    uint64
}

// New creates an Adapter that loads the SDK through loader and reports
// outcomes to host.
func New(loader *Loader, host Callbacks, logger *slog.Logger) *Adapter {
	if host.OnSuccess == nil {
		host.OnSuccess = func(payauth.AuthResult) {}
	}
	if host.OnError == nil {
		host.OnError = func(error) {}
	}
	if host.OnCancel == nil {
		host.OnCancel = func() {}
	}
	return &Adapter{
		loader: loader,
		host:   host,
		logger: logger,
		base:   context.Background(),
		state:  StateIdle,
	}
}

// State returns the current lifecycle state.
func (a *Adapter) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// IsAuthenticated asks the live SDK instance, if any.
func (a *Adapter) IsAuthenticated() bool {
	a.mu.Lock()
	sdk := a.sdk
	a.mu.Unlock()
	return sdk != nil && sdk.IsAuthenticated()
}

// Start initializes and mounts in one step.
func (a *Adapter) Start(ctx context.Context, cfg Config) error {
	if err := a.Initialize(ctx, cfg); err != nil {
		return err
	}
	return a.Mount(ctx)
}

// Reconfigure tears down the live instance and mounts one built from cfg.
// The script is not reloaded.
func (a *Adapter) Reconfigure(ctx context.Context, cfg Config) error {
	return a.Start(ctx, cfg)
}

// Initialize records cfg and loads the script. A live instance is torn down
// first. A load failure moves the adapter to StateFailed and is reported
// through OnError as a *LoadError; Mount is then refused until the next
// successful Initialize.
func (a *Adapter) Initialize(ctx context.Context, cfg Config) error {
	if err := cfg.validate(); err != nil {
		return err
	}

	a.lifecycle.Lock()
	defer a.lifecycle.Unlock()

	a.mu.Lock()
	release := a.teardownLocked()
	a.cfg = cfg
	a.initializer = nil
	a.state = StateMounting
	a.mu.Unlock()
	release()

	init, err := a.loader.Load(ctx)

	a.mu.Lock()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && !IsLoadError(err) {
			a.state = StateIdle
			a.mu.Unlock()
			return ctxErr
		}
		a.state = StateFailed
		a.mu.Unlock()
		a.logger.ErrorContext(ctx, "widget script failed to load", "error", err)
		a.host.OnError(err)
		return err
	}
	a.initializer = init
	a.mu.Unlock()
	return nil
}

// Mount constructs an SDK instance and attaches it to the container or the
// trigger. Any previously mounted instance is destroyed first. Values on ctx,
// but not its cancellation, carry over to the instance's attempts.
func (a *Adapter) Mount(ctx context.Context) error {
	a.lifecycle.Lock()
	defer a.lifecycle.Unlock()

	a.mu.Lock()
	if a.initializer == nil {
		a.mu.Unlock()
		return fmt.Errorf("%w: mount before the script loaded", sentinel.ErrInvalidState)
	}
	init, cfg := a.initializer, a.cfg
	release := a.teardownLocked()
	gen := a.generation
	a.state = StateMounting
	a.mu.Unlock()
	release()

	sdk, err := init.Init(cfg.options(a.sdkCallbacks(gen)))
	if err != nil {
		return a.mountFailed(ctx, fmt.Errorf("initialize SDK: %w", err))
	}

	if cfg.autoMount() {
		if err := sdk.Mount(cfg.Container); err != nil {
			sdk.Destroy()
			return a.mountFailed(ctx, fmt.Errorf("mount SDK: %w", err))
		}
	}

	var unbind func()
	if !cfg.autoMount() {
		unbind = cfg.Trigger.OnClick(func() { a.startAttempt(gen) })
	}

	a.mu.Lock()
	a.sdk = sdk
	a.unbind = unbind
	a.base = context.WithoutCancel(ctx)
	a.state = StateAwaitingAuthentication
	a.mu.Unlock()

	a.logger.DebugContext(ctx, "widget mounted",
		"merchant_id", cfg.MerchantID,
		"auto_mount", cfg.autoMount(),
	)
	return nil
}

func (a *Adapter) mountFailed(ctx context.Context, err error) error {
	a.mu.Lock()
	a.state = StateFailed
	a.mu.Unlock()
	a.logger.ErrorContext(ctx, "widget mount failed", "error", err)
	a.host.OnError(err)
	return err
}

// Authenticate starts an attempt programmatically, as a trigger click would.
// In auto-mount mode it runs a ceremony alongside the rendered button; the
// first outcome from either path resolves it.
func (a *Adapter) Authenticate() {
	a.mu.Lock()
	gen := a.generation
	a.mu.Unlock()
	a.startAttempt(gen)
}

// Reset returns a mounted button to StateAwaitingAuthentication after a
// success, failure or cancellation. New attempts do not depend on it.
func (a *Adapter) Reset() error {
	a.lifecycle.Lock()
	defer a.lifecycle.Unlock()

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.sdk == nil {
		return fmt.Errorf("%w: nothing mounted", sentinel.ErrInvalidState)
	}
	if a.attempt != nil {
		return nil
	}
	a.state = StateAwaitingAuthentication
	return nil
}

// Teardown releases the live SDK instance: unbinds the trigger, unmounts,
// destroys and cancels the pending attempt (reported as a cancellation).
// It is idempotent and safe on every exit path.
func (a *Adapter) Teardown() {
	a.lifecycle.Lock()
	defer a.lifecycle.Unlock()

	a.mu.Lock()
	release := a.teardownLocked()
	a.mu.Unlock()
	release()
}

// teardownLocked detaches the live instance and returns the work to run once
// a.mu is released.
func (a *Adapter) teardownLocked() func() {
	a.generation++
	hadAttempt := a.attempt != nil
	a.closeAttemptLocked()

	sdk, unbind, auto := a.sdk, a.unbind, a.cfg.autoMount()
	a.sdk, a.unbind = nil, nil
	a.state = StateIdle

	return func() {
		if unbind != nil {
			unbind()
		}
		if sdk != nil {
			if auto {
				sdk.Unmount()
			}
			sdk.Destroy()
		}
		if hadAttempt {
			a.host.OnCancel()
		}
	}
}

// openAttemptLocked opens an attempt and arms its abandonment timer.
func (a *Adapter) openAttemptLocked(gen uint64) *attempt {
	a.attempts++
	ctx, cancel := context.WithCancel(a.base)
	att := &attempt{id: a.attempts, ctx: ctx, cancel: cancel}
	id := att.id
	att.timer = time.AfterFunc(a.cfg.attemptTimeout(), func() {
		a.finish(gen, id, outcomeError, payauth.AuthResult{}, ErrAttemptAbandoned)
	})
	a.attempt = att
	return att
}

func (a *Adapter) closeAttemptLocked() {
	if a.attempt == nil {
		return
	}
	a.attempt.timer.Stop()
	a.attempt.cancel()
	a.attempt = nil
}

// startAttempt runs SDK.Authenticate for the current generation, opening an
// attempt when none is open. Any mounted state may start one, so a buyer can
// retry after a success, failure or cancellation. Clicks during a running
// ceremony are ignored.
func (a *Adapter) startAttempt(gen uint64) {
	a.mu.Lock()
	if gen != a.generation || a.sdk == nil {
		a.mu.Unlock()
		return
	}
	att := a.attempt
	if att == nil {
		att = a.openAttemptLocked(gen)
	}
	if att.inFlight {
		a.mu.Unlock()
		return
	}
	att.inFlight = true
	a.state = StateAwaitingAuthentication
	sdk := a.sdk
	a.mu.Unlock()

	go func() {
		res, err := sdk.Authenticate(att.ctx)
		switch {
		case err == nil:
			a.finish(gen, att.id, outcomeSuccess, res, nil)
		case errors.Is(err, ErrCancelled):
			a.finish(gen, att.id, outcomeCancel, payauth.AuthResult{}, nil)
		default:
			a.finish(gen, att.id, outcomeError, payauth.AuthResult{}, err)
		}
	}()
}

// sdkCallbacks are handed to the SDK. They resolve the open attempt for
// their generation; callbacks from a torn-down instance are dropped.
func (a *Adapter) sdkCallbacks(gen uint64) Callbacks {
	return Callbacks{
		OnSuccess: func(res payauth.AuthResult) {
			a.finish(gen, 0, outcomeSuccess, res, nil)
		},
		OnError: func(err error) {
			if err == nil {
				err = errors.New("authentication failed")
			}
			a.finish(gen, 0, outcomeError, payauth.AuthResult{}, err)
		},
		OnCancel: func() {
			a.finish(gen, 0, outcomeCancel, payauth.AuthResult{}, nil)
		},
	}
}

// finish delivers the single outcome of an attempt. id 0 marks an SDK
// callback, which resolves whichever attempt is open. In auto-mount mode the
// SDK's button stays live for the instance's lifetime, so an SDK callback
// with no attempt open is a ceremony of its own and is delivered as one.
// Anything else arriving for a closed attempt is dropped.
func (a *Adapter) finish(gen, id uint64, kind outcome, res payauth.AuthResult, err error) {
	a.mu.Lock()
	ctx := a.base
	var attemptID uint64
	switch {
	case gen != a.generation:
	case a.attempt != nil && (id == 0 || a.attempt.id == id):
		attemptID = a.attempt.id
		ctx = a.attempt.ctx
		a.closeAttemptLocked()
	case a.attempt == nil && id == 0 && a.sdk != nil && a.cfg.autoMount():
		a.attempts++
		attemptID = a.attempts
	}
	if attemptID == 0 {
		a.mu.Unlock()
		a.logger.DebugContext(ctx, "dropping widget callback for a closed attempt", "attempt", id)
		return
	}

	switch kind {
	case outcomeSuccess:
		a.state = StateSucceeded
	case outcomeCancel:
		a.state = StateCancelled
	default:
		a.state = StateFailed
	}
	a.mu.Unlock()

	switch kind {
	case outcomeSuccess:
		a.logger.InfoContext(ctx, "widget authentication succeeded",
			"attempt", attemptID,
			"user_id", res.UserID,
			"token", payauth.RedactToken(res.Token),
		)
		a.host.OnSuccess(res)
	case outcomeCancel:
		a.logger.InfoContext(ctx, "widget authentication cancelled", "attempt", attemptID)
		a.host.OnCancel()
	default:
		a.logger.WarnContext(ctx, "widget authentication failed", "attempt", attemptID, "error", err)
		a.host.OnError(err)
	}
}
