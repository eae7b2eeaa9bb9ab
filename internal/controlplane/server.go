package controlplane

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Server is the local HTTP control plane. It binds loopback only - this is
// an operator surface, not a public API.
type Server struct {
	addr   string
	server *http.Server
}

func NewServer(addr string, h *Handler) *Server {
	gin.SetMode(gin.ReleaseMode)

	httpServer := &http.Server{
		Addr:    addr,
		Handler: SetupRoutes(h),
		// Timeouts to prevent slow client attacks
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1 MB
	}

	return &Server{
		addr:   addr,
		server: httpServer,
	}
}

func (s *Server) Start(ctx context.Context) error {
	slog.Info("control plane start", "addr", fmt.Sprintf("http://%s", s.addr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	slog.Info("control plane stop")
	return s.server.Shutdown(ctx)
}
