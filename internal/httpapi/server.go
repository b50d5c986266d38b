// Package httpapi exposes the outward REST API and static file server the
// core requires per the specification's external-interfaces section: add/
// remove/list/get stream, and GET /hls/{id}/* file serving. It is not part
// of the core pipeline; it is the thinnest possible adapter onto
// internal/manager.
package httpapi

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/dashcast/dashcast/internal/httpapi/middleware"
	"github.com/dashcast/dashcast/internal/manager"
)

// Config holds outward HTTP server settings.
type Config struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// Server is the outward HTTP server: a chi router carrying a Huma API for
// the typed stream-control operations plus a raw route for HLS file
// serving.
type Server struct {
	cfg        Config
	router     *chi.Mux
	api        huma.API
	httpServer *http.Server
	logger     *slog.Logger
}

// New builds a Server wired to mgr, registering every route the outward
// API specifies.
func New(cfg Config, mgr *manager.Manager, logger *slog.Logger, version string) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if version == "" {
		version = "dev"
	}

	router := chi.NewRouter()
	router.Use(chimiddleware.RealIP)
	router.Use(middleware.RequestID)
	router.Use(middleware.NewLoggingMiddleware(logger))
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.CORS())
	router.Use(middleware.SkipCompressionForSSE(chimiddleware.Compress(5)))

	humaConfig := huma.DefaultConfig("dashcast API", version)
	humaConfig.Info.Description = "DASH-to-HLS live/VOD conversion control API"
	api := humachi.New(router, humaConfig)

	s := &Server{cfg: cfg, router: router, api: api, logger: logger}

	h := &streamHandler{mgr: mgr, logger: logger}
	h.Register(api)
	registerFileRoutes(router, mgr, logger)

	return s
}

// Router returns the chi router, for tests or additional route
// registration.
func (s *Server) Router() *chi.Mux { return s.router }

// ListenAndServe starts the server and blocks until ctx is cancelled or the
// server fails.
func (s *Server) ListenAndServe(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", slog.String("address", addr))
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	}
}
