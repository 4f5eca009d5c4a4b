package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/receipted/receipted-backend/internal/api/handlers"
	"github.com/receipted/receipted-backend/internal/api/middleware"
	"github.com/receipted/receipted-backend/internal/domain/analyzer"
	"github.com/receipted/receipted-backend/internal/domain/matcher"
)

// Config holds API server configuration.
type Config struct {
	Port           int
	AllowedOrigins []string
}

// DefaultConfig returns sensible defaults for the API server.
func DefaultConfig() Config {
	return Config{
		Port:           8080,
		AllowedOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
	}
}

// Server is the HTTP API server.
type Server struct {
	config     Config
	router     chi.Router
	httpServer *http.Server
	logger     *slog.Logger
	engine     *matcher.Engine
	analyzer   *analyzer.Analyzer
	recorder   *analyzer.Recorder
}

// NewServer creates a new API server.
// If analyzer or recorder is nil, the corresponding endpoints are not mounted.
func NewServer(cfg Config, engine *matcher.Engine, a *analyzer.Analyzer, recorder *analyzer.Recorder, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		config:   cfg,
		router:   chi.NewRouter(),
		logger:   logger,
		engine:   engine,
		analyzer: a,
		recorder: recorder,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// setupMiddleware configures global middleware.
func (s *Server) setupMiddleware() {
	corsConfig := middleware.CORSConfig{
		AllowedOrigins: s.config.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}
	s.router.Use(middleware.CORS(corsConfig))

	s.router.Use(middleware.Logging(s.logger))
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	// Health check (no /api prefix - for load balancers)
	healthHandler := handlers.NewHealthHandler()
	s.router.Get("/health", healthHandler.ServeHTTP)

	s.router.Route("/api", func(r chi.Router) {
		// Matching
		matchesHandler := handlers.NewMatchesHandler(s.engine)
		r.Get("/candidates", matchesHandler.ListCandidates)
		r.Post("/matches", matchesHandler.Confirm)
		r.Delete("/matches/{receiptID}", matchesHandler.Unmatch)
		r.Post("/receipts/{receiptID}/automatch", matchesHandler.AutoMatch)

		// Skip recording
		if s.recorder != nil {
			skipsHandler := handlers.NewSkipsHandler(s.recorder)
			r.Post("/skips", skipsHandler.Create)
		}

		// Pattern insights
		if s.analyzer != nil {
			insightsHandler := handlers.NewInsightsHandler(s.analyzer)
			r.Get("/insights", insightsHandler.List)
			r.Get("/insights/merchants", insightsHandler.Merchants)
			r.Get("/insights/recommendations", insightsHandler.Recommendations)
		}
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting API server", "addr", addr)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down API server")

	if s.httpServer == nil {
		return nil
	}

	return s.httpServer.Shutdown(ctx)
}

// Router returns the chi router for testing.
func (s *Server) Router() chi.Router {
	return s.router
}
