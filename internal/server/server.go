package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/me/gosweep/internal/cache"
	"github.com/me/gosweep/internal/config"
	"github.com/me/gosweep/internal/session"
	"github.com/me/gosweep/internal/store"
	"github.com/me/gosweep/internal/substrate"
)

// Server is the gosweep REST API server. It owns no run state of its
// own: live sessions come from the injected SessionStore, durable
// records from the Store, and execution goes through the Substrate.
type Server struct {
	router    chi.Router
	logger    *slog.Logger
	config    config.ServerConfig
	startTime time.Time
	store     store.Store
	sessions  session.SessionStore
	sub       substrate.Substrate
	cache     *cache.Cache

	// runCtx is the lifetime of session goroutines; cancelling it stops
	// every in-flight sweep.
	runCtx context.Context
}

// Option configures optional Server dependencies.
type Option func(*Server)

// WithRunContext sets the context session goroutines run under.
// Defaults to context.Background().
func WithRunContext(ctx context.Context) Option {
	return func(s *Server) {
		s.runCtx = ctx
	}
}

// WithCache sets the result cache consulted on lookups and populated
// as sweeps finish.
func WithCache(c *cache.Cache) Option {
	return func(s *Server) {
		s.cache = c
	}
}

// New creates a new Server with all routes registered.
func New(cfg config.ServerConfig, st store.Store, sessions session.SessionStore, sub substrate.Substrate, logger *slog.Logger, opts ...Option) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		logger:    logger.With("component", "server"),
		config:    cfg,
		startTime: time.Now(),
		store:     st,
		sessions:  sessions,
		sub:       sub,
		runCtx:    context.Background(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cache == nil {
		s.cache = cache.New(64, cache.DefaultTTL, cache.DefaultHistoryCapacity)
	}

	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Handler returns the http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	r := s.router

	// Global middleware
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(s.logger))

	// API routes (JSON)
	r.Route("/api/v1", func(r chi.Router) {
		// Discovery
		r.Get("/", s.handleDiscovery)

		// Health
		r.Get("/health", s.handleHealth)

		// Sweeps
		r.Route("/sweeps", func(r chi.Router) {
			r.Get("/", s.handleListSweeps)
			r.Post("/", s.handleCreateSweep)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetSweep)
				r.Delete("/", s.handleDeleteSweep)
				r.Get("/runs", s.handleListRuns)
				r.Get("/runs/{runID}", s.handleGetRun)
				r.Get("/failures", s.handleListFailures)
				r.Get("/results", s.handleListResults)
				r.Get("/export", s.handleExport)
				r.Post("/pipeline", s.handlePipeline)
			})
		})

		// Result utilities
		r.Route("/results", func(r chi.Router) {
			r.Post("/validate", s.handleValidateResult)
			r.Post("/lookup", s.handleLookupResult)
		})

		// Result history
		r.Get("/history", s.handleHistory)
	})
}
