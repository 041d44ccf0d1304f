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

	"github.com/prometheus/client_golang/prometheus/promhttp"
	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	httphandler "github.com/ericfisherdev/basicci/internal/adapter/driving/http"
	"github.com/ericfisherdev/basicci/internal/application"
	"github.com/ericfisherdev/basicci/internal/bootstrap"
	"github.com/ericfisherdev/basicci/internal/config"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration (fail fast on missing required env vars).
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := cfg.NewLogger()
	slog.SetDefault(logger)
	slog.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"pipeline_path", cfg.PipelinePath,
		"repo_url", cfg.RepoURL,
		"results_dir", cfg.ResultsDir,
		"result_backend", cfg.ResultBackend,
		"workspace_root", cfg.WorkspaceRoot,
	)

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Wire result store, workspace, fetcher, executor and notifier.
	components, err := bootstrap.Build(cfg, logger, bootstrap.Options{})
	if err != nil {
		return err
	}
	// Left open when runs outlive the shutdown timeout so their results can
	// still be saved before the process exits.
	closeComponents := true
	defer func() {
		if !closeComponents {
			return
		}
		if closeErr := components.Close(); closeErr != nil {
			slog.Error("error closing components", "error", closeErr)
		}
	}()

	// 4. Create the webhook verifier and the run dispatcher.
	verifier, err := application.NewSignatureVerifier(cfg.WebhookSecret)
	if err != nil {
		return err
	}
	dispatcher := application.NewDispatcher(ctx, components.Orchestrator, logger)

	// 5. Create HTTP handler and register routes.
	apiHandler := httphandler.NewHandler(
		verifier,
		components.Tasks,
		dispatcher,
		components.Store,
		components.GitHub,
		version,
		logger,
	)
	mux := http.NewServeMux()
	metrics := promhttp.HandlerFor(components.Registry, promhttp.HandlerOpts{Registry: components.Registry})
	httphandler.RegisterAPIRoutes(mux, apiHandler, metrics)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           httphandler.ApplyMiddleware(mux, logger),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// 6. Log startup complete.
	slog.Info("basicci started", "version", version, "listen_addr", cfg.ListenAddr)

	// 7. Wait for shutdown signal or a listener failure.
	select {
	case <-ctx.Done():
		slog.Info("shutting down")
	case err := <-serveErr:
		if err != nil {
			return err
		}
	}

	// 8. Stop accepting deliveries, then let in-flight runs finish.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}
	if err := dispatcher.Wait(shutdownCtx); err != nil {
		closeComponents = false
		slog.Warn("runs still in flight at shutdown; result store left open",
			"error", err,
			"run_ids", dispatcher.InFlight(),
		)
	}

	// 9. Log shutdown complete.
	slog.Info("shutdown complete")
	return nil
}
