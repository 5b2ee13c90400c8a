// Package server hosts the HTTP surface: the producer upload form backend,
// the webhook-guarded export stream, and the operational endpoints.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"aircheck/internal/catalog"
	"aircheck/internal/config"
	"aircheck/internal/export"
	"aircheck/internal/notify"
	"aircheck/internal/worker"
)

// Server wires the HTTP handlers to the workflow components. All
// dependencies are injected.
type Server struct {
	cfg      *config.Config
	store    *catalog.Store
	saga     *export.Saga
	mailer   *notify.Mailer
	pusher   notify.Pusher
	tools    worker.AudioTools
	metrics  *Metrics
	location *time.Location
	logger   *slog.Logger
}

// New builds the server. The location interprets the upload form's naive
// datetimes.
func New(cfg *config.Config, store *catalog.Store, saga *export.Saga, mailer *notify.Mailer, pusher notify.Pusher, tools worker.AudioTools, location *time.Location, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if location == nil {
		location = time.UTC
	}
	return &Server{
		cfg:      cfg,
		store:    store,
		saga:     saga,
		mailer:   mailer,
		pusher:   pusher,
		tools:    tools,
		metrics:  NewMetrics(),
		location: location,
		logger:   logger,
	}
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/uploads/{uuid}", s.handleUpload)
	mux.HandleFunc("GET /api/uploads/{id}/export", s.handleExport)
	mux.HandleFunc("GET /api/producers/{uuid}", s.handleProducer)
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.Handle("GET /metrics", s.metrics.Handler())
	return mux
}

// ListenAndServe runs the HTTP server until the context is canceled, then
// shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.cfg.Server.Bind,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", slog.String("bind", s.cfg.Server.Bind))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return err
		}
		err := <-errCh
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case err := <-errCh:
		return err
	}
}
