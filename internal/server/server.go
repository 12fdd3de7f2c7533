// Package server provides the HTTP server for the sync service.
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/alselawi/apexo-database/internal/config"
	apierrors "github.com/alselawi/apexo-database/internal/errors"
	"github.com/alselawi/apexo-database/internal/handler"
	"github.com/alselawi/apexo-database/internal/health"
	"github.com/alselawi/apexo-database/internal/identity"
	"github.com/alselawi/apexo-database/internal/middleware"
)

// Server represents the HTTP server.
type Server struct {
	router       *mux.Router
	httpServer   *http.Server
	syncHandler  *handler.SyncHandler
	healthCheck  *health.HealthChecker
	verifier     identity.Verifier
	errorHandler *apierrors.Handler
	logger       *zap.Logger
	cfg          *config.Config
}

// NewServer creates a new HTTP server.
func NewServer(
	cfg *config.Config,
	syncHandler *handler.SyncHandler,
	healthCheck *health.HealthChecker,
	verifier identity.Verifier,
	errorHandler *apierrors.Handler,
	logger *zap.Logger,
) *Server {
	router := mux.NewRouter()

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return &Server{
		router:       router,
		httpServer:   httpServer,
		syncHandler:  syncHandler,
		healthCheck:  healthCheck,
		verifier:     verifier,
		errorHandler: errorHandler,
		logger:       logger,
		cfg:          cfg,
	}
}

// SetupRoutes configures all HTTP routes.
func (s *Server) SetupRoutes() {
	middlewareChain := []func(http.Handler) http.Handler{
		middleware.Recovery(s.logger),
		middleware.RequestID,
		middleware.Logging(s.logger),
		middleware.CORS([]string{"*"}),
	}

	if s.cfg.RateLimiter.Enabled {
		rateLimiter := middleware.NewRateLimiter(
			s.cfg.RateLimiter.RequestsPerSecond,
			s.cfg.RateLimiter.BurstSize,
			s.logger,
		)
		middlewareChain = append(middlewareChain, rateLimiter.Limit)
	}

	chain := middleware.Chain(middlewareChain...)
	s.router.Use(func(next http.Handler) http.Handler {
		return chain(next)
	})

	// Health check endpoints, no auth
	s.router.HandleFunc("/health", s.healthCheck.LivenessHandler).Methods(http.MethodGet)
	s.router.HandleFunc("/ready", s.healthCheck.ReadinessHandler).Methods(http.MethodGet)

	// Sync API, tenant-scoped via bearer token
	v1 := s.router.PathPrefix("/v1").Subrouter()
	v1.Use(middleware.Auth(s.verifier, s.errorHandler, s.logger))

	v1.HandleFunc("/tables/{table}/rows", s.syncHandler.Fetch).Methods(http.MethodGet)
	v1.HandleFunc("/tables/{table}/rows", s.syncHandler.Upsert).Methods(http.MethodPost)
	v1.HandleFunc("/tables/{table}/rows/delete", s.syncHandler.Delete).Methods(http.MethodPost)
	v1.HandleFunc("/tables/{table}/reset", s.syncHandler.Reset).Methods(http.MethodPost)

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		s.errorHandler.WriteErrorResponse(w, http.StatusNotFound, apierrors.CodeNotFound, "endpoint not found", requestID)
	})

	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		s.errorHandler.WriteErrorResponse(w, http.StatusMethodNotAllowed, apierrors.CodeInvalidRequest, "method not allowed", requestID)
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server",
		zap.Int("port", s.cfg.Server.Port),
	)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// Handler returns the router, for tests driving the server in-process.
func (s *Server) Handler() http.Handler {
	return s.router
}
