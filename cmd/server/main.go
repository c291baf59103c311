package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"merchant/internal/payment"
	paymenthandler "merchant/internal/payment/handler"
	paymentmetrics "merchant/internal/payment/metrics"
	"merchant/internal/platform/config"
	"merchant/internal/platform/httpserver"
	"merchant/internal/platform/logger"
	"merchant/internal/platform/metrics"
	"merchant/internal/verification"
	widgethandler "merchant/internal/widget/handler"
)

const shutdownTimeout = 10 * time.Second

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal packages.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel, cfg.IsDev())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Server, log *slog.Logger) error {
	reg := metrics.NewRegistry()

	verifier := verification.NewClient(cfg.PayAuth.ServiceURL, cfg.PayAuth.APISecret,
		verification.WithTimeout(cfg.PayAuth.VerifyTimeout),
	)
	payments := payment.NewService(verifier, log, payment.WithMetrics(paymentmetrics.New(reg)))

	deps := routerDeps{
		logger:         log,
		payments:       paymenthandler.New(payments, log),
		widgetConfig:   widgethandler.New(widgetConfig(cfg), log),
		requestTimeout: cfg.RequestTimeout,
	}
	if cfg.MetricsEnabled {
		deps.registry = reg
	}
	srv := httpserver.New(cfg.Addr, newRouter(deps))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting merchant server",
			"addr", cfg.Addr,
			"env", cfg.Environment,
			"merchant_id", cfg.PayAuth.MerchantID,
			"payauth_service", cfg.PayAuth.ServiceURL,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down merchant server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// widgetConfig is the browser-safe subset of cfg.
func widgetConfig(cfg config.Server) widgethandler.Config {
	return widgethandler.Config{
		MerchantID:       cfg.PayAuth.MerchantID,
		ServiceURL:       cfg.PayAuth.ServiceURL,
		ScriptURL:        cfg.PayAuth.ScriptURL(),
		AllowedOrigins:   cfg.PayAuth.AllowedOrigins,
		Theme:            cfg.Widget.Theme,
		ButtonText:       cfg.Widget.ButtonText,
		AttemptTimeoutMS: cfg.Widget.AttemptTimeout.Milliseconds(),
	}
}
