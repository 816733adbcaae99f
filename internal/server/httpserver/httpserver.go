// Package httpserver assembles and runs the service's HTTP listeners:
// the public API server and a separate admin server for metrics.
package httpserver

import (
	"context"
	stdErrors "errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"git.home.luguber.info/inful/appbuilder/internal/config"
	apperrors "git.home.luguber.info/inful/appbuilder/internal/errors"
	"git.home.luguber.info/inful/appbuilder/internal/server/handlers"
	smw "git.home.luguber.info/inful/appbuilder/internal/server/middleware"
)

// Server manages the API and admin HTTP servers.
type Server struct {
	cfg    config.ServerConfig
	logger *slog.Logger

	apiServer   *http.Server
	adminServer *http.Server

	buildHandlers      *handlers.BuildHandlers
	monitoringHandlers *handlers.MonitoringHandlers
	metricsHandler     http.Handler

	mchain func(http.Handler) http.Handler
}

// New assembles the HTTP server from its handler modules. metricsHandler
// may be nil when the admin surface is not wanted.
func New(cfg config.ServerConfig, build *handlers.BuildHandlers, monitoring *handlers.MonitoringHandlers, metricsHandler http.Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:                cfg,
		logger:             logger,
		buildHandlers:      build,
		monitoringHandlers: monitoring,
		metricsHandler:     metricsHandler,
		mchain:             smw.Chain(logger, apperrors.NewHTTPErrorAdapter(logger)),
	}
}

func (s *Server) apiMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api-endpoint", s.buildHandlers.HandleBuildRequest)
	mux.HandleFunc("/", s.monitoringHandlers.HandleRoot)
	mux.HandleFunc("/health", s.monitoringHandlers.HandleHealth)
	mux.HandleFunc("/healthz", s.monitoringHandlers.HandleHealth)
	mux.HandleFunc("GET /status/{nonce}", s.monitoringHandlers.HandleStatus)
	return mux
}

func (s *Server) adminMux() *http.ServeMux {
	mux := http.NewServeMux()
	if s.metricsHandler != nil {
		mux.Handle("/metrics", s.metricsHandler)
	}
	mux.HandleFunc("/healthz", s.monitoringHandlers.HandleHealth)
	return mux
}

// Start binds both ports and begins serving. Ports are pre-bound so a
// conflict surfaces as one aggregate error instead of partial startup.
func (s *Server) Start(ctx context.Context) error {
	type preBind struct {
		name string
		port int
		ln   net.Listener
	}
	binds := []preBind{
		{name: "api", port: s.cfg.Port},
		{name: "admin", port: s.cfg.AdminPort},
	}
	var bindErrs []error
	for i := range binds {
		ln, err := net.Listen("tcp", fmt.Sprintf(":%d", binds[i].port))
		if err != nil {
			bindErrs = append(bindErrs, fmt.Errorf("%s port %d: %w", binds[i].name, binds[i].port, err))
			continue
		}
		binds[i].ln = ln
	}
	if len(bindErrs) > 0 {
		for _, b := range binds {
			if b.ln != nil {
				_ = b.ln.Close()
			}
		}
		return fmt.Errorf("http startup failed: %w", stdErrors.Join(bindErrs...))
	}

	s.apiServer = &http.Server{
		Handler:           s.mchain(s.apiMux()),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.adminServer = &http.Server{
		Handler:           s.adminMux(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go s.serve("api", s.apiServer, binds[0].ln)
	go s.serve("admin", s.adminServer, binds[1].ln)

	s.logger.Info("HTTP servers started",
		slog.Int("api_port", s.cfg.Port),
		slog.Int("admin_port", s.cfg.AdminPort))
	return nil
}

func (s *Server) serve(name string, srv *http.Server, ln net.Listener) {
	if err := srv.Serve(ln); err != nil && !stdErrors.Is(err, http.ErrServerClosed) {
		s.logger.Error("HTTP server stopped unexpectedly",
			slog.String("server", name), "error", err)
	}
}

// Stop gracefully shuts down both servers.
func (s *Server) Stop(ctx context.Context) error {
	var errs []error
	for name, srv := range map[string]*http.Server{"api": s.apiServer, "admin": s.adminServer} {
		if srv == nil {
			continue
		}
		if err := srv.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s shutdown: %w", name, err))
		}
	}
	return stdErrors.Join(errs...)
}
