package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/openmined/rclonebox/internal/config"
	"github.com/openmined/rclonebox/internal/daemon/handlers"
	"github.com/openmined/rclonebox/internal/daemon/middleware"
	"github.com/openmined/rclonebox/internal/utils"
)

type ControlPlaneServer struct {
	config *config.ControlPlaneConfig
	server *http.Server
}

func NewControlPlaneServer(cfg *config.ControlPlaneConfig, svc *handlers.Services) *ControlPlaneServer {
	routes := SetupRoutes(svc, &RouteConfig{
		Auth: middleware.TokenAuthConfig{
			Token: cfg.Token,
		},
	})

	httpServer := &http.Server{
		Addr:    cfg.Addr,
		Handler: routes,
		// Timeouts to prevent slow client attacks.
		// No WriteTimeout: /v1/events connections stay open for the life of the client.
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		// Connection control
		MaxHeaderBytes: 1 << 20, // 1 MB
	}

	return &ControlPlaneServer{
		config: cfg,
		server: httpServer,
	}
}

// Start listens until Stop is called
func (s *ControlPlaneServer) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Addr, err)
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until Stop is called
func (s *ControlPlaneServer) Serve(ln net.Listener) error {
	token := "<none>"
	if s.config.Token != "" {
		token = utils.MaskSecret(s.config.Token)
	}
	slog.Info("control plane start", "addr", fmt.Sprintf("http://%s", ln.Addr()), "token", token)

	if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

func (s *ControlPlaneServer) Stop(ctx context.Context) error {
	slog.Info("control plane stop")
	return s.server.Shutdown(ctx)
}
