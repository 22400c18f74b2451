// Package server provides the HTTP API for Kaiwa.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/civicgo/kaiwa/internal/classifier"
	"github.com/civicgo/kaiwa/internal/config"
	"github.com/civicgo/kaiwa/internal/store"
	"github.com/civicgo/kaiwa/internal/trainer"
)

// Server is the HTTP server for the Kaiwa API.
type Server struct {
	engine   *classifier.Engine
	trainer  *trainer.Trainer
	examples *store.ExampleStore
	config   *config.Config
	logger   *zap.Logger
	server   *http.Server

	// training guards against overlapping runs; at most one at a time.
	training atomic.Bool
}

// NewServer creates a server with the given dependencies.
func NewServer(
	engine *classifier.Engine,
	tr *trainer.Trainer,
	examples *store.ExampleStore,
	cfg *config.Config,
	logger *zap.Logger,
) *Server {
	return &Server{
		engine:   engine,
		trainer:  tr,
		examples: examples,
		config:   cfg,
		logger:   logger,
	}
}

// Router builds the chi router with all routes and middleware.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	// Long timeout: a full training run streams through this handler.
	r.Use(middleware.Timeout(30 * time.Minute))

	r.Post("/api/v1/predict", s.handlePredict)
	r.Post("/api/v1/train", s.handleTrain)
	r.Post("/api/v1/model/load", s.handleModelLoad)
	r.Get("/api/v1/status", s.handleStatus)
	r.Get("/health", s.handleHealth)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Router(),
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
