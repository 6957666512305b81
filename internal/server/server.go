// Package server wires the reconciliation API: routes, middleware chain
// and the HTTP server lifecycle.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/iudanet/opsync/internal/config"
	"github.com/iudanet/opsync/internal/server/handlers"
	"github.com/iudanet/opsync/internal/server/middleware"
)

const (
	healthPath      = "/api/v1/health"
	shutdownTimeout = 10 * time.Second
)

// Server HTTP сервер синхронизации
type Server struct {
	httpServer *http.Server
	limiter    *middleware.RateLimiter
	logger     *slog.Logger
}

// New собирает маршруты и цепочку middleware.
// Авторизация устройств включается, если задан jwt_secret; ограничение частоты - если rate_limit > 0.
func New(cfg *config.ServerConfig, service handlers.Reconciler, db handlers.Pinger, version string, logger *slog.Logger) *Server {
	s := &Server{logger: logger}

	syncHandler := handlers.NewSyncHandler(logger, service)
	healthHandler := handlers.NewHealthHandler(logger, db, version)

	protect := func(h http.HandlerFunc) http.Handler {
		var next http.Handler = h
		// Порядок важен: rate limit читает device_id, который кладет auth
		if cfg.RateLimit > 0 {
			if s.limiter == nil {
				s.limiter = middleware.NewRateLimiter(cfg.RateLimit, time.Minute, logger)
			}
			next = middleware.RateLimitMiddleware(s.limiter, logger)(next)
		}
		if cfg.JWTSecret != "" {
			next = middleware.AuthMiddleware(logger, handlers.JWTConfig{
				Secret:   []byte(cfg.JWTSecret),
				TokenTTL: cfg.TokenTTL,
			})(next)
		}
		return next
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET "+healthPath, healthHandler.Health)
	mux.Handle("POST /api/v1/sync/batch", protect(syncHandler.HandleBatch))
	mux.Handle("POST /api/v1/sync/resolve", protect(syncHandler.HandleResolve))
	mux.Handle("GET /api/v1/devices/{deviceID}", protect(syncHandler.HandleDeviceStatus))

	var handler http.Handler = mux
	handler = middleware.LoggingWithSkip(logger, []string{healthPath})(handler)
	handler = middleware.RecoveryMiddleware(logger)(handler)

	s.httpServer = &http.Server{
		Addr:              cfg.Listen,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	if cfg.JWTSecret == "" {
		logger.Warn("Device authentication is disabled: jwt_secret is empty")
	}

	return s
}

// Handler returns the full handler chain
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Run слушает адрес из конфигурации до отмены ctx, затем корректно завершает работу
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.httpServer.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve обслуживает запросы на ln до отмены ctx
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	defer func() {
		if s.limiter != nil {
			s.limiter.Stop()
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Server listening", "addr", ln.Addr().String())
		errCh <- s.httpServer.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}
