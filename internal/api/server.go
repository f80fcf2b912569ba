// Package api exposes the sync status and manual re-sync HTTP surface.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"uw-workbench/internal/common/config"
	"uw-workbench/internal/common/logger"
)

// Server wraps the HTTP listener around the sync handlers.
type Server struct {
	cfg     config.ServerConfig
	handler *Handler
	logger  logger.Logger
	srv     *http.Server
}

func NewServer(cfg config.ServerConfig, handler *Handler, log logger.Logger) *Server {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/sync/status/{submissionID}", handler.GetStatus)
	mux.HandleFunc("GET /api/sync/lookups", handler.GetLookups)
	mux.HandleFunc("GET /api/sync/search/{term}", handler.Search)
	mux.HandleFunc("POST /api/sync/manual-sync", handler.ManualSync)
	mux.HandleFunc("GET /healthz", handler.Health)
	mux.Handle("GET /metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:         cfg.Address,
		Handler:      mux,
		ReadTimeout:  config.GetDuration(cfg.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.WriteTimeout),
	}

	return &Server{cfg: cfg, handler: handler, logger: log, srv: srv}
}

// Start blocks serving until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("HTTP server listening", map[string]interface{}{
		"address": s.cfg.Address,
	})
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests within the configured timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, config.GetDuration(s.cfg.ShutdownTimeout))
	defer cancel()
	return s.srv.Shutdown(shutdownCtx)
}

// Handler exposes the mux for tests.
func (s *Server) HTTPHandler() http.Handler {
	return s.srv.Handler
}

func nowRFC3339() string {
	return time.Now().UTC().Format(time.RFC3339)
}
