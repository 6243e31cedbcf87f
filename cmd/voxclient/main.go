package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/emiago/sipgo"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/voxnode/voxclient/internal/api"
	"github.com/voxnode/voxclient/internal/config"
	"github.com/voxnode/voxclient/internal/metrics"
	"github.com/voxnode/voxclient/internal/session"
	"github.com/voxnode/voxclient/internal/sipclient"
	"github.com/voxnode/voxclient/internal/store"
	"github.com/voxnode/voxclient/internal/voxnode"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// Configure structured logging.
	logger := slog.New(cfg.SlogHandler(os.Stdout))
	slog.SetDefault(logger)

	slog.Info("starting voxclient",
		"http_port", cfg.HTTPPort,
		"api_base_url", cfg.APIBaseURL,
		"provider_id", cfg.ProviderID,
		"data_dir", cfg.DataDir,
	)

	// Open the preference store and run migrations.
	st, err := store.Open(cfg.DataDir)
	if err != nil {
		slog.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	// Application context for background goroutines.
	appCtx, appCancel := context.WithCancel(context.Background())
	defer appCancel()

	client := voxnode.NewClient(cfg.APIBaseURL, cfg.ProviderID)

	// SIP user agent and account registrar.
	ua, err := sipgo.NewUA(
		sipgo.WithUserAgent("voxclient"),
		sipgo.WithUserAgentHostname(cfg.SIPHost()),
	)
	if err != nil {
		slog.Error("failed to create sip user agent", "error", err)
		os.Exit(1)
	}
	registrar := sipclient.NewRegistrar(ua, logger)

	counters := &metrics.Counters{}
	sessions := session.NewManager(client, st, registrar, counters, logger)

	// Metrics registry with the scrape-time collector.
	startTime := time.Now()
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		metrics.NewCollector(sessions, registrar, counters, startTime),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// Pick a persisted session back up before serving requests.
	sessions.Resume(appCtx)

	// HTTP control API.
	handler, err := api.NewServer(cfg, sessions, st, client, registry)
	if err != nil {
		slog.Error("failed to create api server", "error", err)
		os.Exit(1)
	}
	defer handler.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine.
	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Wait for interrupt or server error.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		slog.Info("received shutdown signal", "signal", sig.String())
	case err := <-errCh:
		slog.Error("http server error", "error", err)
	}

	// Graceful shutdown with timeout.
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("shutting down")
	registrar.Remove()
	ua.Close()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("http server shutdown error", "error", err)
		os.Exit(1)
	}

	slog.Info("voxclient stopped")
}
