// Package server provides the base HTTP server, middleware chain and JSON
// envelope helpers shared by the API and admin routes.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"
)

// Options configures a Server.
type Options struct {
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	Verbose         bool
	CORSOrigins     []string
	RequestLogSize  int
	// Extra middleware mounted after the common chain, e.g. metrics.
	Middleware []func(http.Handler) http.Handler
}

// Server wraps a chi router with the common middleware and lifecycle management.
type Server struct {
	Options Options
	Router  *chi.Mux
	Logger  *slog.Logger
	mw      *Middleware
}

var allowCandidates = []string{
	http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete,
}

// New creates a Server. Routes are added to Router by the caller.
func New(opts Options, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	r := chi.NewRouter()
	mw := NewMiddleware(opts, logger)

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(mw.CorrelationID)
	r.Use(mw.RequestLog)
	r.Use(mw.Recover)
	r.Use(mw.CORS)
	for _, extra := range opts.Middleware {
		r.Use(extra)
	}

	// Set before any Route/Mount so sub-routers inherit them.
	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		Error(w, http.StatusNotFound, "Endpoint not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		if allowed := allowedMethods(r, req.URL.Path); len(allowed) > 0 {
			w.Header().Set("Allow", strings.Join(allowed, ", "))
		}
		Error(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	return &Server{
		Options: opts,
		Router:  r,
		Logger:  logger,
		mw:      mw,
	}
}

// allowedMethods lists the methods that have a route for path.
func allowedMethods(r *chi.Mux, path string) []string {
	var out []string
	for _, m := range allowCandidates {
		if r.Match(chi.NewRouteContext(), m, path) {
			out = append(out, m)
		}
	}
	return out
}

// Middleware returns the middleware instance, used by the admin request log.
func (s *Server) Middleware() *Middleware {
	return s.mw
}

// Serve listens on the configured port and blocks until ctx is cancelled or
// the listener fails. On cancellation it shuts down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.Options.Port))
	if err != nil {
		return fmt.Errorf("listening on port %d: %w", s.Options.Port, err)
	}
	return s.ServeListener(ctx, ln)
}

// ServeListener is Serve on an existing listener.
func (s *Server) ServeListener(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:      s.Router,
		ReadTimeout:  s.Options.ReadTimeout,
		WriteTimeout: s.Options.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.Logger.Info("starting server", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		s.Logger.Info("shutting down server")

		timeout := s.Options.ShutdownTimeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		sctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	return g.Wait()
}

// ServeHTTP implements http.Handler so Server can be used directly in tests.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Router.ServeHTTP(w, r)
}
