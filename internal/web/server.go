package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/parlorchat/parlor/internal/config"
)

// Server wraps the HTTP server with graceful shutdown. It satisfies the
// lifecycle Service interface.
type Server struct {
	server          *http.Server
	logger          *zap.Logger
	shutdownTimeout time.Duration
}

// NewServer creates an HTTP server for the given handler.
//
// Precondition: handler and logger must be non-nil; cfg must be valid.
func NewServer(cfg config.ServerConfig, handler http.Handler, logger *zap.Logger) *Server {
	return &Server{
		server: &http.Server{
			Addr:    cfg.Addr(),
			Handler: handler,
			// No global write timeout: websocket connections are long-lived.
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger:          logger,
		shutdownTimeout: cfg.ShutdownTimeout,
	}
}

// Start begins listening for HTTP requests. It blocks until the server is
// stopped or fails.
func (s *Server) Start() error {
	s.logger.Info("http server listening", zap.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving on %s: %w", s.server.Addr, err)
	}
	return nil
}

// Stop gracefully shuts the server down, bounded by the shutdown timeout.
func (s *Server) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		s.logger.Warn("http shutdown incomplete", zap.Error(err))
		_ = s.server.Close()
	}
	s.logger.Info("http server stopped")
}
