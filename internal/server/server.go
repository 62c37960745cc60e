// Package server runs the soilwatch HTTP server.
//
// The server wraps the handler's router with request ids, access logging,
// latency statistics and CORS, and shuts down gracefully when its context
// is cancelled.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/rs/cors"

	"github.com/xtxerr/soilwatch/config"
	"github.com/xtxerr/soilwatch/internal/handler"
	"github.com/xtxerr/soilwatch/internal/logging"
	"github.com/xtxerr/soilwatch/internal/stats"
)

var log = logging.Component("server")

// =============================================================================
// Configuration
// =============================================================================

// Config holds server configuration.
type Config struct {
	Listen          string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// CORSOrigins lists the origins allowed to call the API from a
	// browser. An empty list allows every origin.
	CORSOrigins []string
}

// DefaultConfig returns a default server configuration.
func DefaultConfig() Config {
	return Config{
		Listen:          config.DefaultListenAddress,
		ReadTimeout:     config.DefaultReadTimeout,
		WriteTimeout:    config.DefaultWriteTimeout,
		IdleTimeout:     config.DefaultIdleTimeout,
		ShutdownTimeout: config.DefaultShutdownTimeout,
	}
}

// =============================================================================
// Server
// =============================================================================

// Server serves the HTTP API.
type Server struct {
	cfg        Config
	httpServer *http.Server
	recorder   *stats.Recorder
}

// New creates a server for h. rec may be nil.
func New(cfg Config, h *handler.Handler, rec *stats.Recorder) *Server {
	s := &Server{cfg: cfg, recorder: rec}

	s.httpServer = &http.Server{
		Addr:         cfg.Listen,
		Handler:      s.wrap(h),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return s
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) wrap(h *handler.Handler) http.Handler {
	router := h.Router()
	router.Use(s.observe)

	c := cors.New(cors.Options{
		AllowedOrigins: s.cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", RequestIDHeader},
		ExposedHeaders: []string{RequestIDHeader},
	})
	return withRequestID(c.Handler(router))
}

// Run listens on the configured address and blocks until ctx is cancelled
// or the listener fails.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Listen, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errChan := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
		close(errChan)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()

		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		log.Info("server stopped")
		return nil
	case err, ok := <-errChan:
		if !ok {
			return nil
		}
		return err
	}
}
