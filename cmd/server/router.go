package main

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	paymenthandler "merchant/internal/payment/handler"
	"merchant/internal/platform/metrics"
	widgethandler "merchant/internal/widget/handler"
	"merchant/pkg/platform/httputil"
	"merchant/pkg/platform/middleware/metadata"
	"merchant/pkg/platform/middleware/requestid"
	"merchant/pkg/platform/middleware/requesttime"
)

type routerDeps struct {
	logger         *slog.Logger
	payments       *paymenthandler.Handler
	widgetConfig   *widgethandler.Handler
	registry       *prometheus.Registry // nil disables /metrics
	requestTimeout time.Duration
}

func newRouter(d routerDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestid.Middleware)
	r.Use(metadata.ClientMetadata)
	r.Use(requesttime.Middleware)
	if d.requestTimeout > 0 {
		r.Use(middleware.Timeout(d.requestTimeout))
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if d.registry != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(d.registry))
	}

	d.payments.Register(r)
	d.widgetConfig.Register(r)

	d.logger.Debug("routes registered")
	return r
}
