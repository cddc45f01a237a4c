package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/mkelechi/docextract/internal/common"
	"github.com/mkelechi/docextract/internal/pipeline"
	"github.com/mkelechi/docextract/internal/repository"
	"github.com/mkelechi/docextract/internal/storage"
)

// Service wraps the HTTP server and its handlers.
type Service struct {
	cfg        *common.Config
	tracker    repository.RequestRepository
	processor  *pipeline.Processor
	store      storage.ObjectStore
	logger     *slog.Logger
	httpServer *http.Server
}

// NewService builds and wires all routes.
func NewService(cfg *common.Config, tracker repository.RequestRepository, processor *pipeline.Processor,
	store storage.ObjectStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		cfg:       cfg,
		tracker:   tracker,
		processor: processor,
		store:     store,
		logger:    logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.Server.RequestTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}))

	r.Get("/healthz", s.handleHealth)
	r.Post("/extract", s.handleExtract)
	r.Get("/status/{request_id}", s.handleStatus)
	r.Get("/historical-requests", s.handleHistory)
	r.Get("/get-base64/{request_id}", s.handleGetBase64)

	s.httpServer = &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: r,
	}
	return s
}

// Start runs the HTTP server until it is shut down.
func (s *Service) Start() error {
	s.logger.Info("server.listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Service) Shutdown(ctx context.Context) error {
	s.logger.Info("server.shutdown")
	return s.httpServer.Shutdown(ctx)
}

func (s *Service) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
