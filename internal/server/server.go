// Package server provides the HTTP API for tansaku.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/tansaku/internal/app"
)

// WatchService manages inbox directories at runtime. *watcher.Watcher satisfies it.
type WatchService interface {
	Directories() []string
	AddDirectory(path string, syncExisting bool) error
	RemoveDirectory(path string) error
}

// Server is the HTTP server for the tansaku API.
type Server struct {
	app        *app.App
	logger     *zap.Logger
	watch      WatchService
	configPath string
	configMu   sync.Mutex
	router     chi.Router
	server     *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithWatchService enables the watch directory endpoints.
func WithWatchService(w WatchService) Option {
	return func(s *Server) { s.watch = w }
}

// WithConfigPath persists watch directory changes to the config file at path.
func WithConfigPath(path string) Option {
	return func(s *Server) { s.configPath = path }
}

// NewServer creates a server over the application's collaborators.
func NewServer(a *app.App, opts ...Option) *Server {
	s := &Server{app: a, logger: a.Logger}
	for _, o := range opts {
		o(s)
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.app.Config.Server.RequestTimeout))

	r.Get("/health", s.handleHealth)
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/search", s.handleSearch)
		r.Post("/keyword", s.handleKeyword)
		r.Post("/chunks", s.handleChunkPreview)
		r.Get("/status", s.handleStatus)

		r.Route("/documents", func(r chi.Router) {
			r.Get("/", s.handleListDocuments)
			r.Post("/", s.handleIngestDocument)
			r.Post("/upload", s.handleUploadDocument)
			r.Get("/{id}", s.handleGetDocument)
			r.Get("/{id}/chunks", s.handleGetDocumentChunks)
			r.Delete("/{id}", s.handleDeleteDocument)
		})

		r.Route("/watch/directories", func(r chi.Router) {
			r.Get("/", s.handleWatchDirectoriesList)
			r.Post("/", s.handleWatchDirectoriesAdd)
			r.Delete("/", s.handleWatchDirectoriesRemove)
		})
	})
	return r
}

// Handler returns the routed handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	cfg := s.app.Config.Server
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.router,
	}
	s.logger.Info("starting server", zap.String("addr", addr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
