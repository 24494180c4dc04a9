// Package server exposes the action engine and audit log over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/raphaelgruber/histograph-go/internal/actions"
	"github.com/raphaelgruber/histograph-go/internal/db"
	"github.com/raphaelgruber/histograph-go/internal/metrics"
	"github.com/raphaelgruber/histograph-go/internal/models"
)

// ActionEngine performs actions.
type ActionEngine interface {
	CreateAction(ctx context.Context, kind string, raw json.RawMessage, performedBy string, opts ...actions.Option) (*actions.Outcome, error)
}

// AuditReader reads the audit log.
type AuditReader interface {
	GetAction(ctx context.Context, id string) (*models.Action, error)
	ListActions(ctx context.Context, filter db.ActionFilter) ([]models.Action, error)
}

// Dependencies holds what the server routes to. Events and Metrics may be nil.
type Dependencies struct {
	Engine  ActionEngine
	Audit   AuditReader
	Events  http.Handler
	Metrics *metrics.Collector
	Logger  *slog.Logger
}

// Server wraps the HTTP handler with lifecycle management.
type Server struct {
	deps    Dependencies
	handler http.Handler
}

// New creates a server and registers its routes.
func New(deps Dependencies) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	s := &Server{deps: deps}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/actions/{kind}", s.handleCreateAction)
	mux.HandleFunc("GET /api/actions", s.handleListActions)
	mux.HandleFunc("GET /api/actions/{id}", s.handleGetAction)
	mux.HandleFunc("GET /api/actions/schema/{kind}", s.handleSchema)
	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})
	if deps.Events != nil {
		mux.Handle("GET /ws", deps.Events)
	}

	s.handler = LoggingMiddleware(deps.Logger)(mux)
	return s
}

// Handler returns the root handler, including request logging.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      s.handler,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Minute, // bulk drains can take a while
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.deps.Logger.Info("http server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.deps.Logger.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	s.deps.Logger.Info("server stopped")
	return nil
}
