// Package checkout drives the host page: it turns widget outcomes into a
// payment request and keeps the status line the buyer sees.
package checkout

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"merchant/internal/payauth"
	"merchant/internal/widget"
)

// Kind classifies a Status.
type Kind int

const (
	KindReady Kind = iota
	KindProcessing
	KindPaid
	KindPaymentFailed
	KindPaymentError
	KindAuthFailed
	KindCancelled
)

// Status is what the checkout page shows below the pay button.
type Status struct {
	Kind    Kind
	OrderID string
	Message string
}

// Text renders the status line.
func (s Status) Text() string {
	switch s.Kind {
	case KindProcessing:
		return "Processing payment..."
	case KindPaid:
		return "Payment successful! Order #" + s.OrderID
	case KindPaymentFailed:
		return "Payment failed: " + s.Message
	case KindPaymentError:
		return "Payment processing error. Please try again."
	case KindAuthFailed:
		return "Authentication failed: " + s.Message
	case KindCancelled:
		return "Authentication cancelled. You can try again when ready."
	default:
		return ""
	}
}

const (
	defaultResetDelay     = 3 * time.Second
	defaultRequestTimeout = 30 * time.Second
)

// Flow binds widget callbacks to a payment Processor for one order.
type Flow struct {
	processor      Processor
	order          payauth.Order
	logger         *slog.Logger
	resetDelay     time.Duration
	requestTimeout time.Duration
	onChange       func(Status)

	mu         sync.Mutex
	status     Status
	seq        uint64
	resetTimer *time.Timer
}

// FlowOption customizes a Flow.
type FlowOption func(*Flow)

// WithResetDelay sets how long the cancelled status stays before the flow
// returns to ready.
func WithResetDelay(d time.Duration) FlowOption {
	return func(f *Flow) {
		f.resetDelay = d
	}
}

// WithRequestTimeout bounds the payment request.
func WithRequestTimeout(d time.Duration) FlowOption {
	return func(f *Flow) {
		f.requestTimeout = d
	}
}

// WithOnChange registers a listener for every status change.
func WithOnChange(fn func(Status)) FlowOption {
	return func(f *Flow) {
		f.onChange = fn
	}
}

// NewFlow creates a Flow for order.
func NewFlow(processor Processor, order payauth.Order, logger *slog.Logger, opts ...FlowOption) *Flow {
	f := &Flow{
		processor:      processor,
		order:          order,
		logger:         logger,
		resetDelay:     defaultResetDelay,
		requestTimeout: defaultRequestTimeout,
		onChange:       func(Status) {},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Callbacks are passed to widget.New as the host callbacks.
func (f *Flow) Callbacks() widget.Callbacks {
	return widget.Callbacks{
		OnSuccess: f.handleSuccess,
		OnError:   f.handleError,
		OnCancel:  f.handleCancel,
	}
}

// Status returns the current status.
func (f *Flow) Status() Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

// Close stops a pending reset.
func (f *Flow) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	if f.resetTimer != nil {
		f.resetTimer.Stop()
		f.resetTimer = nil
	}
}

func (f *Flow) set(s Status) uint64 {
	f.mu.Lock()
	f.seq++
	if f.resetTimer != nil {
		f.resetTimer.Stop()
		f.resetTimer = nil
	}
	f.status = s
	seq := f.seq
	f.mu.Unlock()
	f.onChange(s)
	return seq
}

func (f *Flow) handleSuccess(result payauth.AuthResult) {
	f.set(Status{Kind: KindProcessing})

	ctx, cancel := context.WithTimeout(context.Background(), f.requestTimeout)
	defer cancel()

	f.logger.InfoContext(ctx, "submitting payment",
		"order_id", f.order.ID,
		"token", payauth.RedactToken(result.Token),
	)
	paid, err := f.processor.Process(ctx, payauth.NewPaymentRequest(result, f.order))
	if err != nil {
		var pe *PaymentError
		if errors.As(err, &pe) {
			f.logger.WarnContext(ctx, "payment refused", "status", pe.StatusCode, "error", pe.Message)
			f.set(Status{Kind: KindPaymentFailed, Message: pe.Message})
			return
		}
		f.logger.ErrorContext(ctx, "payment request failed", "error", err)
		f.set(Status{Kind: KindPaymentError})
		return
	}
	f.set(Status{Kind: KindPaid, OrderID: paid.OrderID})
}

func (f *Flow) handleError(err error) {
	f.logger.Warn("authentication failed", "error", err)
	f.set(Status{Kind: KindAuthFailed, Message: err.Error()})
}

func (f *Flow) handleCancel() {
	seq := f.set(Status{Kind: KindCancelled})

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.seq != seq {
		return
	}
	f.resetTimer = time.AfterFunc(f.resetDelay, func() {
		f.mu.Lock()
		if f.seq != seq {
			f.mu.Unlock()
			return
		}
		f.seq++
		f.resetTimer = nil
		f.status = Status{Kind: KindReady}
		f.mu.Unlock()
		f.onChange(Status{Kind: KindReady})
	})
}
