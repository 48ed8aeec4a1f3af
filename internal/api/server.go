// Package api provides the HTTP API server for envkeep.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/narvanalabs/envkeep/internal/api/handlers"
	"github.com/narvanalabs/envkeep/internal/api/middleware"
	"github.com/narvanalabs/envkeep/internal/auth"
	"github.com/narvanalabs/envkeep/internal/service"
	"github.com/narvanalabs/envkeep/pkg/config"
)

// Version is the current version of the API server.
// This should be set at build time using ldflags.
var Version = "dev"

// Server represents the HTTP API server.
type Server struct {
	router     chi.Router
	httpServer *http.Server
	svc        *service.Service
	auth       *auth.Service
	config     *config.Config
	logger     *slog.Logger
}

// NewServer creates a new API server with the given dependencies.
func NewServer(cfg *config.Config, svc *service.Service, authSvc *auth.Service, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		svc:    svc,
		auth:   authSvc,
		config: cfg,
		logger: logger,
	}

	s.setupRouter()
	return s
}

// setupRouter configures the router with middleware and routes.
func (s *Server) setupRouter() {
	r := chi.NewRouter()

	timeout := s.config.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger(s.logger))
	r.Use(middleware.Recovery(s.logger))
	r.Use(chimiddleware.Timeout(timeout))

	appHandler := handlers.NewApplicationHandler(s.svc.Applications, s.logger)
	memberHandler := handlers.NewMemberHandler(s.svc.Members, s.logger)
	envHandler := handlers.NewEnvironmentHandler(s.svc.Environments, s.logger)
	secretHandler := handlers.NewSecretHandler(s.svc.Secrets, s.logger)
	variableHandler := handlers.NewVariableHandler(s.svc.Variables, s.logger)

	r.Route("/v1", func(r chi.Router) {
		authMiddleware := middleware.NewAuthMiddleware(s.auth, s.logger)
		r.Use(authMiddleware.Authenticate)

		r.Route("/applications", func(r chi.Router) {
			r.Get("/", appHandler.List)
			r.Post("/", appHandler.Create)
			r.Route("/{appID}", func(r chi.Router) {
				r.Get("/", appHandler.Get)
				r.Patch("/", appHandler.Update)
				r.Put("/", appHandler.Update)
				r.Delete("/", appHandler.Delete)

				r.Get("/members", memberHandler.List)
				r.Put("/members/{principalID}", memberHandler.Set)
				r.Delete("/members/{principalID}", memberHandler.Remove)

				r.Get("/environments", envHandler.List)
				r.Post("/environments", envHandler.Create)

				r.Get("/secrets", secretHandler.List)
				r.Post("/secrets", secretHandler.Create)

				r.Get("/variables", variableHandler.List)
				r.Post("/variables", variableHandler.Create)
			})
		})

		r.Route("/environments/{envID}", func(r chi.Router) {
			r.Get("/", envHandler.Get)
			r.Patch("/", envHandler.Update)
			r.Delete("/", envHandler.Delete)
		})

		r.Route("/secrets/{secretID}", func(r chi.Router) {
			r.Get("/", secretHandler.Get)
			r.Patch("/", secretHandler.Update)
			r.Delete("/", secretHandler.Delete)
		})

		r.Route("/variables/{variableID}", func(r chi.Router) {
			r.Get("/", variableHandler.Get)
			r.Patch("/", variableHandler.Update)
			r.Delete("/", variableHandler.Delete)
		})
	})

	s.router = r
}

// Start starts the HTTP server and blocks until ctx is cancelled or the
// listener fails. The caller stops the server with Shutdown.
func (s *Server) Start(ctx context.Context) error {
	addr := s.config.Addr()
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	s.logger.Info("starting API server", "addr", addr, "version", Version)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if !ok {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		return nil
	}
}

// Name identifies the server to the shutdown coordinator.
func (s *Server) Name() string {
	return "http"
}

// Shutdown stops accepting connections and waits for in-flight requests
// until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	s.logger.Info("shutting down API server")
	return s.httpServer.Shutdown(ctx)
}

// Router returns the chi router for testing purposes.
func (s *Server) Router() chi.Router {
	return s.router
}
