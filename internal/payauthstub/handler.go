package payauthstub

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"merchant/internal/payauth"
	dErrors "merchant/pkg/domain-errors"
	"merchant/pkg/platform/httputil"
	"merchant/pkg/platform/middleware/auth"
	"merchant/pkg/platform/sentinel"
	"merchant/pkg/requestcontext"
)

// Handler serves the stub's HTTP surface.
type Handler struct {
	issuer    *Issuer
	apiSecret string
	logger    *slog.Logger
	script    []byte
}

// HandlerOption customizes a Handler.
type HandlerOption func(*Handler)

// WithScript serves body at /sdk/* so the widget loader has something to fetch.
func WithScript(body []byte) HandlerOption {
	return func(h *Handler) {
		h.script = body
	}
}

// NewHandler creates the stub handler. apiSecret is the merchant credential
// required on verify-token.
func NewHandler(issuer *Issuer, apiSecret string, logger *slog.Logger, opts ...HandlerOption) *Handler {
	h := &Handler{issuer: issuer, apiSecret: apiSecret, logger: logger}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts the stub routes.
func (h *Handler) Register(r chi.Router) {
	r.With(auth.RequireBearerSecret(h.apiSecret, h.logger)).
		Post("/api/verify-token", h.HandleVerifyToken)
	r.Post("/api/authenticate", h.HandleAuthenticate)
	if h.script != nil {
		r.Get("/sdk/*", h.HandleScript)
	}
}

type verifyTokenRequest struct {
	Token string `json:"token"`
}

func (req *verifyTokenRequest) Validate() error {
	req.Token = strings.TrimSpace(req.Token)
	if req.Token == "" {
		return dErrors.New(dErrors.CodeValidation, "token is required")
	}
	return nil
}

type verifyTokenResponse struct {
	Valid     bool   `json:"valid"`
	UserID    string `json:"userId,omitempty"`
	ExpiresAt int64  `json:"expiresAt,omitempty"`
}

// HandleVerifyToken answers whether a token is genuine and unexpired.
// The verdict depends only on the token and the clock.
func (h *Handler) HandleVerifyToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[verifyTokenRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	claims, err := h.issuer.Verify(req.Token)
	if err != nil {
		reason := "invalid"
		if errors.Is(err, sentinel.ErrExpired) {
			reason = "expired"
		}
		h.logger.InfoContext(ctx, "token rejected",
			"request_id", requestID,
			"reason", reason,
			"token", payauth.RedactToken(req.Token),
		)
		httputil.WriteJSON(w, http.StatusOK, verifyTokenResponse{Valid: false})
		return
	}

	h.logger.InfoContext(ctx, "token verified",
		"request_id", requestID,
		"user_id", claims.Subject,
		"token", payauth.RedactToken(req.Token),
	)
	httputil.WriteJSON(w, http.StatusOK, verifyTokenResponse{
		Valid:     true,
		UserID:    claims.Subject,
		ExpiresAt: claims.ExpiresAt.Time.UnixMilli(),
	})
}

type authenticateRequest struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
}

func (req *authenticateRequest) Validate() error {
	req.UserID = strings.TrimSpace(req.UserID)
	req.Email = strings.TrimSpace(req.Email)
	if req.UserID == "" {
		return dErrors.New(dErrors.CodeValidation, "userId is required")
	}
	return nil
}

// HandleAuthenticate issues a token without a passkey ceremony. Development only.
func (h *Handler) HandleAuthenticate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[authenticateRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	result, err := h.issuer.Issue(req.UserID, req.Email)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to issue token",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue token"))
		return
	}

	h.logger.InfoContext(ctx, "token issued",
		"request_id", requestID,
		"user_id", result.UserID,
		"token", payauth.RedactToken(result.Token),
	)
	httputil.WriteJSON(w, http.StatusOK, result)
}

// HandleScript serves the placeholder widget script.
func (h *Handler) HandleScript(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/javascript")
	w.Header().Set("Cache-Control", "public, max-age=300")
	_, _ = w.Write(h.script)
}
