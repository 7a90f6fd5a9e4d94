package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/information-sharing-networks/eid-claim-demo/app/internal/config"
	"github.com/information-sharing-networks/eid-claim-demo/app/internal/server/handlers"
	"github.com/information-sharing-networks/eid-claim-demo/app/internal/server/middleware"
	"github.com/information-sharing-networks/eid-claim-demo/app/internal/services"
	"github.com/information-sharing-networks/eid-claim-demo/app/internal/version"
)

type Server struct {
	config   *config.ServerEnvironment
	services *services.Services
	logger   *slog.Logger
	router   *chi.Mux
}

func NewServer(
	cfg *config.ServerEnvironment,
	svcs *services.Services,
	logger *slog.Logger,
) *Server {
	server := &Server{
		config:   cfg,
		services: svcs,
		logger:   logger,
		router:   chi.NewRouter(),
	}

	server.setupMiddleware()
	server.registerRoutes()

	return server
}

// Handler returns the router, for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupMiddleware() {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.RequestLogging(s.logger))
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.SecurityHeaders(s.config.Environment))
	s.router.Use(middleware.RateLimit(s.config.RateLimitRPS, s.config.RateLimitBurst))
	s.router.Use(chimiddleware.Timeout(60 * time.Second))
}

func (s *Server) registerRoutes() {
	v := version.Get()

	s.router.Get("/health", handlers.HandleHealth)
	s.router.Get("/version", handlers.HandleVersion(v.Version, v.BuildDate))
	s.router.Get("/.well-known/jwks.json", handlers.HandleJWKS(s.services.KeySet))

	s.router.Group(func(r chi.Router) {
		r.Use(middleware.RequestSizeLimit(s.config.MaxRequestSize))
		r.Post("/submit", handlers.HandleSubmit(s.services.ClaimChecker, s.services.Responder))
	})
}

func (s *Server) Start(ctx context.Context) error {
	serverAddr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	httpServer := &http.Server{
		Addr:         serverAddr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("service listening",
			slog.String("environment", s.config.Environment),
			slog.String("address", serverAddr))

		err := httpServer.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			serverErrors <- fmt.Errorf("server failed to start: %w", err)
		}
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer shutdownCancel()

	s.logger.Info("shutting down HTTP server")

	err := httpServer.Shutdown(shutdownCtx)
	if err != nil {
		s.logger.Warn("HTTP server shutdown error",
			slog.String("error", err.Error()))
		return fmt.Errorf("HTTP server shutdown failed: %w", err)
	}

	s.logger.Info("HTTP server shutdown complete")
	return nil
}
