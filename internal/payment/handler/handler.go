package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"merchant/internal/payauth"
	"merchant/internal/payment"
	dErrors "merchant/pkg/domain-errors"
	"merchant/pkg/platform/httputil"
	"merchant/pkg/requestcontext"
)

const maxBodyBytes = 64 << 10

// Service defines the interface for payment operations.
type Service interface {
	Process(ctx context.Context, req payauth.PaymentRequest) (*payauth.PaymentResult, error)
}

// Handler wires the payment endpoint to the payment service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a payment handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Register mounts payment endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/api/process-payment", h.HandleProcessPayment)
}

// HandleProcessPayment handles POST /api/process-payment.
// Every path, including a panic below this point, answers with a PaymentResult.
func (h *Handler) HandleProcessPayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	defer func() {
		if rec := recover(); rec != nil {
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			h.logger.ErrorContext(ctx, "panic in payment handler",
				"request_id", requestID,
				"panic", rec,
			)
			httputil.WriteJSON(w, http.StatusInternalServerError, payauth.Failed(payment.MessageProcessingFailed))
		}
	}()

	var req payauth.PaymentRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "failed to decode payment request",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteJSON(w, http.StatusBadRequest, payauth.Failed(payment.MessageInvalidBody))
		return
	}

	result, err := h.service.Process(ctx, req)
	if err != nil {
		h.writeFailure(ctx, w, requestID, err)
		return
	}

	h.logger.InfoContext(ctx, "payment request completed",
		"request_id", requestID,
		"order_id", result.OrderID,
		"client_ip", requestcontext.ClientIP(ctx),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, result)
}

// writeFailure maps a service error to the PaymentResult failure shape.
// Only domain-error messages reach the client; anything else is generic.
func (h *Handler) writeFailure(ctx context.Context, w http.ResponseWriter, requestID string, err error) {
	status := http.StatusInternalServerError
	message := payment.MessageProcessingFailed
	if de, ok := dErrors.As(err); ok {
		status = dErrors.ToHTTPStatus(de.Code)
		if de.Message != "" {
			message = de.Message
		}
	}

	level := slog.LevelWarn
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	h.logger.Log(ctx, level, "payment request failed",
		"request_id", requestID,
		"status", status,
		"verification_unavailable", errors.Is(err, payment.ErrVerificationUnavailable),
		"error", err,
	)
	httputil.WriteJSON(w, status, payauth.Failed(message))
}
