// Package server provides the admin HTTP surface: job inspection,
// journal queries, out-of-band job fires, prometheus metrics, and a
// websocket event stream. It binds to loopback by default.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/flemzord/cronus/internal/daemon"
)

const (
	readTimeout     = 10 * time.Second
	writeTimeout    = 60 * time.Second
	requestTimeout  = 60 * time.Second
	shutdownTimeout = 5 * time.Second
)

// Server is the admin HTTP server for one daemon.
type Server struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	bind   string

	server *http.Server
	ln     net.Listener
}

// Compile-time interface check.
var _ daemon.AdminServer = (*Server)(nil)

// New builds an unstarted server bound to bind.
func New(bind string, d *daemon.Daemon, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{daemon: d, logger: logger, bind: bind}
}

// Addr returns the bound address, useful when bind held port 0.
func (s *Server) Addr() string {
	if s.ln == nil {
		return s.bind
	}
	return s.ln.Addr().String()
}

// Start binds the listener and begins serving in the background.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.bind,
		Handler:      s.buildRouter(),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(context.Background(), "tcp", s.bind)
	if err != nil {
		return fmt.Errorf("server: listen on %s: %w", s.bind, err)
	}
	s.ln = ln

	go func() {
		s.logger.Info("server: admin listening", "addr", ln.Addr().String())
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("server: serve error", "error", err)
		}
	}()
	return nil
}

// Stop shuts the server down gracefully. Streaming websocket handlers
// are not waited on; they end when the daemon closes the event hub.
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	s.logger.Info("server: shutting down")
	return s.server.Shutdown(shutdownCtx)
}

// buildRouter constructs the chi mux with all routes wired. The
// websocket route sits outside the timeout group because event
// streams outlive any sane request deadline.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(requestTimeout))
		r.Get("/healthz", s.handleHealth())
		r.Route("/api", func(r chi.Router) {
			r.Get("/jobs", s.handleListJobs())
			r.Get("/jobs/{name}", s.handleGetJob())
			r.Post("/jobs/{name}/run", s.handleRunJob())
			r.Get("/history", s.handleHistory())
		})
		r.Method(http.MethodGet, "/metrics",
			promhttp.HandlerFor(s.daemon.Metrics().Registry(), promhttp.HandlerOpts{}))
	})

	r.Get("/ws/events", s.handleEvents)
	return r
}

// requestLogger logs one line per request through slog.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("server: request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// writeJSON encodes v as JSON with the given status code.
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
