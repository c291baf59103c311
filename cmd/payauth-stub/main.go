// Command payauth-stub runs a local stand-in for the remote authentication
// service: token issuing, merchant verify-token and a placeholder widget script.
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

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"merchant/internal/payauthstub"
	"merchant/internal/platform/config"
	"merchant/internal/platform/httpserver"
	"merchant/internal/platform/logger"
	"merchant/pkg/platform/middleware/requestid"
)

const placeholderScript = "window.PayAuth = window.PayAuth || { stub: true };\n"

func main() {
	cfg, err := config.StubFromEnv()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel, true)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	issuer := payauthstub.NewIssuer(cfg.SigningKey, cfg.TokenTTL, nil)
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestid.Middleware)
	payauthstub.NewHandler(issuer, cfg.APISecret, log,
		payauthstub.WithScript([]byte(placeholderScript)),
	).Register(r)

	srv := httpserver.New(cfg.Addr, r)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting payauth stub", "addr", cfg.Addr, "token_ttl", cfg.TokenTTL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		log.Error("payauth stub stopped", "error", err)
		os.Exit(1)
	}
}
