package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/CTAG07/wordchain/pkg/markov"
)

const shutdownTimeout = 10 * time.Second

// runServer serves the API until SIGINT or SIGTERM, then shuts down
// gracefully.
func runServer(config *Config, logger *slog.Logger, m *markov.Model) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	api := NewMarkovAPI(m, config.Model.ModelPath, config.Server.ApiKey, logger)
	if config.Server.ApiKey == "" {
		logger.Warn("No API key configured, the API is open to anyone who can reach it")
	}

	apiHttpServer := &http.Server{
		Addr:              config.Server.ApiAddr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Starting api server", "address", apiHttpServer.Addr)
		if err := apiHttpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("api server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		logger.Info("OS signal received, initiating shutdown.")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := apiHttpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Api server shutdown failed", "error", err)
		return err
	}
	logger.Info("HTTP server stopped.")
	return nil
}
