package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"

	"github.com/ent0n29/companion/internal/app"
	"github.com/ent0n29/companion/internal/config"
)

func main() {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Prefix:          "companion",
	})

	if err := config.LoadDotEnv(); err != nil {
		logger.Fatal("dotenv load failed", "err", err)
	}
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config error", "err", err)
	}
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		logger.Fatal("config error", "err", err)
	}
	logger.SetLevel(level)

	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()

	built, err := app.Build(runCtx, cfg, logger)
	if err != nil {
		logger.Fatal("startup failed", "err", err)
	}
	defer func() {
		if err := built.Cleanup(); err != nil {
			logger.Error("cleanup failed", "err", err)
		}
	}()

	storeMode := "in-memory"
	if cfg.DatabaseURL != "" {
		storeMode = "postgres"
	}
	logger.Info("companion ready",
		"persona", built.Orchestrator.Persona().Name,
		"generation", built.Generation,
		"store", storeMode,
		"session_timeout", cfg.SessionInactivityTimeout,
	)

	httpServer := &http.Server{
		Addr:              cfg.BindAddr,
		Handler:           built.API.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", cfg.BindAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
		logger.Info("shutdown signal received")
	case err := <-serveErr:
		logger.Error("listen error", "err", err)
	}

	runCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown failed", "err", err)
		_ = httpServer.Close()
	}

	logger.Info("shutdown complete")
}
