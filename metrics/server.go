package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/slackmgr/types"
)

// Server serves the Prometheus registry and health endpoints over HTTP.
type Server struct {
	server *http.Server
	logger types.Logger
}

// ServerConfig holds configuration for the metrics server.
type ServerConfig struct {
	Port    int           `env:"METRICS_PORT" envDefault:"9090"`
	Timeout time.Duration `env:"METRICS_TIMEOUT" envDefault:"30s"`
}

// NewServer creates a metrics server exposing /metrics, /health and /ready.
func NewServer(config ServerConfig, registry *Registry, logger types.Logger) *Server {
	mux := http.NewServeMux()

	mux.Handle("/metrics", registry.Handler())

	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"healthy","service":"s3ingest"}`))
	})

	mux.HandleFunc("/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ready","service":"s3ingest"}`))
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", config.Port),
		Handler:      mux,
		ReadTimeout:  config.Timeout,
		WriteTimeout: config.Timeout,
		IdleTimeout:  config.Timeout * 2,
	}

	return &Server{
		server: server,
		logger: logger.WithField("component", "metrics-server"),
	}
}

// Start serves until ctx is cancelled, then shuts the server down.
func (s *Server) Start(ctx context.Context) error {
	s.logger.WithField("addr", s.server.Addr).Info("Starting metrics server")

	errCh := make(chan error, 1)

	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("metrics server failed: %w", err)
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return s.Stop(context.WithoutCancel(ctx))
	}
}

// Stop gracefully stops the metrics server.
func (s *Server) Stop(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down metrics server: %w", err)
	}

	s.logger.Info("Metrics server stopped")

	return nil
}

// Addr returns the server address.
func (s *Server) Addr() string {
	return s.server.Addr
}
