// Package api exposes the HTTP surface: starting and tracking indexing
// jobs, searching collections, and managing indexed collections.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"vodsearch/internal/jobs"
	"vodsearch/internal/search"
	"vodsearch/internal/status"
	"vodsearch/internal/store"
)

// Server wires the HTTP handlers to the engine components.
type Server struct {
	orch    *jobs.Orchestrator
	engine  *search.Engine
	indexes *store.IndexManager
	meta    *store.MetadataStore
	status  status.Store
	logger  *slog.Logger
}

// NewServer builds the HTTP layer. All dependencies are required.
func NewServer(orch *jobs.Orchestrator, engine *search.Engine, indexes *store.IndexManager, meta *store.MetadataStore, st status.Store, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		orch:    orch,
		engine:  engine,
		indexes: indexes,
		meta:    meta,
		status:  st,
		logger:  logger,
	}
}

// Handler returns the routed handler. Exposed separately so tests can
// drive it through httptest without binding a port.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/collections/{id}/index", s.handleStartIndex)
	mux.HandleFunc("GET /api/collections/{id}/search", s.handleSearch)
	mux.HandleFunc("GET /api/collections/{id}/channels", s.handleChannels)
	mux.HandleFunc("GET /api/collections", s.handleListCollections)
	mux.HandleFunc("DELETE /api/collections/{id}", s.handleDeleteCollection)
	mux.HandleFunc("GET /api/jobs/{id}", s.handleJobStatus)
	mux.HandleFunc("DELETE /api/jobs/{id}", s.handleCancelJob)
	mux.HandleFunc("GET /healthz", s.handleHealth)

	return s.logRequests(mux)
}

// ListenAndServe serves until ctx is cancelled, then drains in-flight
// requests.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	s.logger.Info("http_server_listening", slog.String("addr", addr))

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Info("http_request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Duration("duration", time.Since(start)))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
