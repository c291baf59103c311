// Package payment is the merchant's authoritative gate between a
// client-asserted passkey token and a finalized payment.
package payment

//go:generate mockgen -destination=mocks/verifier_mock.go -package=mocks merchant/internal/verification Verifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"merchant/internal/payauth"
	"merchant/internal/payment/metrics"
	"merchant/internal/verification"
	dErrors "merchant/pkg/domain-errors"
	"merchant/pkg/requestcontext"
)

// Service verifies the token with the remote service and finalizes the
// payment only after a valid verdict in the same call.
type Service struct {
	verifier  verification.Verifier
	finalizer Finalizer
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

// Option customizes a Service.
type Option func(*Service)

// WithFinalizer replaces the stub finalizer.
func WithFinalizer(f Finalizer) Option {
	return func(s *Service) {
		s.finalizer = f
	}
}

// WithMetrics enables payment metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// NewService builds a Service around verifier.
func NewService(verifier verification.Verifier, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		verifier:  verifier,
		finalizer: NewStubFinalizer(),
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Process runs one payment attempt: validate, verify, finalize.
// Returned errors are domain errors wrapping one of the package error kinds.
func (s *Service) Process(ctx context.Context, req payauth.PaymentRequest) (*payauth.PaymentResult, error) {
	start := time.Now()
	requestID := requestcontext.RequestID(ctx)

	result, outcome, err := s.process(ctx, req, requestID)
	if s.metrics != nil {
		s.metrics.IncrementPaymentRequest(outcome)
		s.metrics.ObservePayment(start)
	}
	return result, err
}

func (s *Service) process(ctx context.Context, req payauth.PaymentRequest, requestID string) (*payauth.PaymentResult, string, error) {
	req.Token = strings.TrimSpace(req.Token)
	if req.Token == "" {
		return nil, metrics.OutcomeBadRequest,
			dErrors.Wrap(ErrTokenRequired, dErrors.CodeBadRequest, MessageTokenRequired)
	}

	verified, outcome, err := s.verify(ctx, req, requestID)
	if err != nil {
		return nil, outcome, err
	}

	s.logger.InfoContext(ctx, "processing payment",
		"request_id", requestID,
		"user_id", verified.UserID,
		"email", req.Email,
		"order_id", req.OrderID,
		"amount", req.Amount,
	)

	result, err := s.finalizer.Finalize(ctx, verified)
	if err != nil {
		s.logger.ErrorContext(ctx, "payment finalization failed",
			"request_id", requestID,
			"user_id", verified.UserID,
			"error", err,
		)
		return nil, metrics.OutcomeFailed, dErrors.Wrap(err, dErrors.CodeInternal, MessageProcessingFailed)
	}

	s.logger.InfoContext(ctx, "payment processed",
		"request_id", requestID,
		"user_id", verified.UserID,
		"order_id", result.OrderID,
	)
	return result, metrics.OutcomeSucceeded, nil
}

// verify performs the single verification round trip and maps its three
// failure modes. It is the only producer of VerifiedPayment.
func (s *Service) verify(ctx context.Context, req payauth.PaymentRequest, requestID string) (VerifiedPayment, string, error) {
	token := payauth.RedactToken(req.Token)
	s.logger.InfoContext(ctx, "verifying token with auth service",
		"request_id", requestID,
		"token", token,
	)

	start := time.Now()
	outcome, err := s.verifier.Verify(ctx, req.Token)
	if s.metrics != nil {
		s.metrics.ObserveVerification(start)
	}

	if err != nil {
		var rejected *verification.RejectedError
		switch {
		case errors.As(err, &rejected):
			s.recordVerification(metrics.VerificationRejected)
			s.logger.WarnContext(ctx, "token verification rejected",
				"request_id", requestID,
				"token", token,
				"status", rejected.StatusCode,
				"body_preview", rejected.Body,
			)
			return VerifiedPayment{}, metrics.OutcomeUnverified, dErrors.Wrap(
				fmt.Errorf("%w: %w", ErrTokenVerificationFailed, err),
				dErrors.CodeUnauthorized,
				fmt.Sprintf(messageVerificationFailedF, rejected.StatusCode),
			)
		default:
			s.recordVerification(metrics.VerificationUnavailable)
			s.logger.ErrorContext(ctx, "error verifying token",
				"request_id", requestID,
				"token", token,
				"error", err,
			)
			return VerifiedPayment{}, metrics.OutcomeUnavailable, dErrors.Wrap(
				fmt.Errorf("%w: %w", ErrVerificationUnavailable, err),
				dErrors.CodeInternal,
				MessageVerificationError,
			)
		}
	}

	if !outcome.Valid {
		s.recordVerification(metrics.VerificationInvalid)
		s.logger.WarnContext(ctx, "invalid authentication token",
			"request_id", requestID,
			"token", token,
		)
		return VerifiedPayment{}, metrics.OutcomeUnverified,
			dErrors.Wrap(ErrInvalidToken, dErrors.CodeUnauthorized, MessageInvalidToken)
	}

	s.recordVerification(metrics.VerificationValid)
	userID := outcome.UserID
	if userID == "" {
		userID = req.Email
	}
	s.logger.InfoContext(ctx, "token verified",
		"request_id", requestID,
		"user_id", userID,
	)
	return VerifiedPayment{Request: req, UserID: userID}, "", nil
}

func (s *Service) recordVerification(result string) {
	if s.metrics != nil {
		s.metrics.IncrementVerification(result)
	}
}
