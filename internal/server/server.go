// Package server assembles the HTTP server: routing, middleware and
// graceful shutdown.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/JCampos05/Backend-Taskeer/internal/components/identity"
	"github.com/JCampos05/Backend-Taskeer/internal/components/notify"
	"github.com/JCampos05/Backend-Taskeer/internal/components/sharing"
	"github.com/JCampos05/Backend-Taskeer/internal/platform/config"
	"github.com/JCampos05/Backend-Taskeer/internal/platform/logutil"
)

// Deps are the handlers and collaborators the server routes to.
type Deps struct {
	Identity      *identity.Handler
	Sessions      identity.SessionRepo
	Sharing       *sharing.Handler
	Notifications *notify.Handler
	Logger        *slog.Logger
}

// Server is the HTTP front of the application.
type Server struct {
	cfg    *config.Config
	http   *http.Server
	logger *slog.Logger
}

// New builds a Server from configuration and dependencies.
func New(cfg *config.Config, deps Deps) *Server {
	logger := logutil.OrDiscard(deps.Logger)
	s := &Server{cfg: cfg, logger: logutil.Component(logger, "server")}
	s.http = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           s.routes(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", s.cfg.ListenAddr, "base_path", s.cfg.BasePath)
		errCh <- s.http.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return s.http.Shutdown(shutdownCtx)
}

// Handler returns the assembled router. Exposed for tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}
