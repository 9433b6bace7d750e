package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/cyderes/facebook-auto-poster/internal/config"
	"github.com/cyderes/facebook-auto-poster/internal/models"
	"github.com/cyderes/facebook-auto-poster/internal/storage"
)

type runner interface {
	RunOnce(ctx context.Context) (models.RunReport, error)
}

// Server exposes health, state and a manual run trigger over HTTP
type Server struct {
	config  config.ServerConfig
	storage storage.Storage
	runner  runner
	logger  logrus.FieldLogger
	server  *http.Server
}

// NewServer creates a new HTTP server
func NewServer(cfg config.ServerConfig, store storage.Storage, r runner, logger logrus.FieldLogger) *Server {
	s := &Server{
		config:  cfg,
		storage: store,
		runner:  r,
		logger:  logger,
	}

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute, // POST /run waits for a whole run
	}

	return s
}

// Routes builds the router
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Get("/status", s.handleStatus)
	r.Get("/batch", s.handleBatch)
	r.Post("/run", s.handleRun)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return r
}

// Start starts the HTTP server
func (s *Server) Start() error {
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.storage.GetRunStatus(r.Context())
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to retrieve status: %v", err), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	batch, err := s.storage.LoadLastBatch(r.Context())
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to retrieve last batch: %v", err), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"identifiers": batch.IDs(),
		"count":       batch.Len(),
	})
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	report, err := s.runner.RunOnce(r.Context())
	switch {
	case errors.Is(err, models.ErrRunInProgress):
		http.Error(w, err.Error(), http.StatusConflict)
		return
	case errors.Is(err, models.ErrFetch), errors.Is(err, models.ErrParse):
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	case err != nil:
		s.logger.WithError(err).Error("manual run failed")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"run_id":    report.RunID,
		"fetched":   report.Fetched,
		"eligible":  report.Eligible,
		"published": report.Published(),
		"failed":    report.Failed(),
		"persisted": report.Persisted,
		"batch":     report.Batch.IDs(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
