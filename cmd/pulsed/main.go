// Package main implements pulsed, the HTTP server exposing the pulse ledger:
// an append-only, hash-linked chain of heart-rate readings.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	app "github.com/R3E-Network/pulse_ledger/internal/app"
	"github.com/R3E-Network/pulse_ledger/internal/app/httpapi"
	"github.com/R3E-Network/pulse_ledger/internal/app/metrics"
	"github.com/R3E-Network/pulse_ledger/internal/config"
	"github.com/R3E-Network/pulse_ledger/internal/middleware"
	"github.com/R3E-Network/pulse_ledger/pkg/logger"
)

func main() {
	addr := flag.String("addr", "", "Listen address, overrides configuration")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logger.NewDefault("pulsed").Fatalf("load config: %v", err)
	}

	log := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}).WithField("component", "pulsed")

	application, err := app.New(app.Stores{}, log)
	if err != nil {
		log.Fatalf("build application: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := application.Start(ctx); err != nil {
		log.Fatalf("start application: %v", err)
	}

	limiter := middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst, log)

	handler := httpapi.NewHandler(application)
	handler = limiter.Handler(handler)
	handler = middleware.RequestID(handler)
	handler = metrics.InstrumentHandler(handler)

	listenAddr := cfg.ListenAddr()
	if *addr != "" {
		listenAddr = *addr
	}

	server := &http.Server{
		Addr:         listenAddr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("listening on http://%s", listenAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Infof("received %s, shutting down", sig)
	case err := <-errCh:
		log.WithError(err).Error("server error")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("server shutdown")
	}
	if err := application.Stop(shutdownCtx); err != nil {
		log.WithError(err).Warn("application stop")
	}

	log.Info("stopped")
}
