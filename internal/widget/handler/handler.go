// Package handler exposes the browser-facing widget configuration.
package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"merchant/pkg/platform/httputil"
	"merchant/pkg/requestcontext"
)

// Config is everything the host page needs to mount the widget. It has no
// secret field; the merchant API secret never leaves the server.
type Config struct {
	MerchantID       string   `json:"merchantId"`
	ServiceURL       string   `json:"serviceUrl"`
	ScriptURL        string   `json:"scriptUrl"`
	AllowedOrigins   []string `json:"allowedOrigins"`
	Theme            string   `json:"theme"`
	ButtonText       string   `json:"buttonText"`
	AttemptTimeoutMS int64    `json:"attemptTimeoutMs"`
}

// Handler serves the widget configuration.
type Handler struct {
	config Config
	logger *slog.Logger
}

// New creates a Handler that always serves cfg.
func New(cfg Config, logger *slog.Logger) *Handler {
	if cfg.AllowedOrigins == nil {
		cfg.AllowedOrigins = []string{}
	}
	return &Handler{config: cfg, logger: logger}
}

// Register mounts the config route.
func (h *Handler) Register(r chi.Router) {
	r.Get("/api/payauth/config", h.HandleConfig)
}

// HandleConfig handles GET /api/payauth/config.
func (h *Handler) HandleConfig(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	h.logger.DebugContext(ctx, "serving widget config",
		"request_id", requestcontext.RequestID(ctx),
		"merchant_id", h.config.MerchantID,
	)
	w.Header().Set("Cache-Control", "no-store")
	httputil.WriteJSON(w, http.StatusOK, h.config)
}
