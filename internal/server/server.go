// Package server provides the HTTP API for searchsync.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/hyperjump/searchsync/internal/config"
	"github.com/hyperjump/searchsync/internal/content"
	"github.com/hyperjump/searchsync/internal/indexer"
	"github.com/hyperjump/searchsync/internal/metrics"
	"github.com/hyperjump/searchsync/internal/search"
)

// Server is the HTTP server for content events, rebuilds and searches.
type Server struct {
	engine    *search.Engine
	indexer   *indexer.Indexer
	rebuilder *indexer.Rebuilder
	store     content.Store
	config    *config.ServerConfig
	logger    *zap.Logger

	mu      sync.Mutex
	server  *http.Server
	stopped bool
}

// NewServer creates a server with the given dependencies.
func NewServer(
	engine *search.Engine,
	idx *indexer.Indexer,
	rebuilder *indexer.Rebuilder,
	store content.Store,
	cfg *config.ServerConfig,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		engine:    engine,
		indexer:   idx,
		rebuilder: rebuilder,
		store:     store,
		config:    cfg,
		logger:    logger,
	}
}

// Router returns the HTTP handler with every route mounted.
func (s *Server) Router() http.Handler {
	metrics.Register()

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware())
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/events/saved", s.handleSaved)
		r.Post("/events/deleted", s.handleDeleted)
		r.Post("/events/trashed", s.handleTrashed)
		r.Put("/content/{id}/search-options", s.handleSearchOptions)

		r.Post("/rebuild", s.handleRebuild)

		r.Get("/collection", s.handleCollectionStatus)
		r.Post("/collection", s.handleCollectionCreate)
		r.Delete("/collection", s.handleCollectionEmpty)

		r.Get("/documents/{contentID}", s.handleGetDocument)
		r.Get("/search", s.handleSearch)
	})
	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return http.ErrServerClosed
	}
	s.server = srv
	s.mu.Unlock()
	s.logger.Info("Starting server", zap.String("addr", addr))
	return srv.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.server
	s.stopped = true
	s.mu.Unlock()
	if srv != nil {
		return srv.Shutdown(ctx)
	}
	return nil
}
