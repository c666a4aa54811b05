// Package server exposes the dataset catalog over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/net/netutil"
	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/anyset/internal/config"
	"github.com/leapstack-labs/anyset/internal/service"
)

// Server is the HTTP front end of a catalog.
type Server struct {
	catalog *service.Catalog
	cfg     config.ServerConfig
	logger  *slog.Logger
	handler http.Handler
}

// New creates a server for catalog.
// If logger is nil, a discard logger is used.
func New(catalog *service.Catalog, cfg config.ServerConfig, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Server{catalog: catalog, cfg: cfg, logger: logger}
	s.handler = s.routes()
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(
		RequestID,
		chimw.RealIP,
		RequestLogger(s.logger),
		chimw.Recoverer,
	)
	if len(s.cfg.CORS.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.cfg.CORS.AllowedOrigins,
			AllowedMethods:   s.cfg.CORS.AllowedMethods,
			AllowedHeaders:   s.cfg.CORS.AllowedHeaders,
			ExposedHeaders:   []string{RequestIDHeader},
			AllowCredentials: s.cfg.CORS.AllowCredentials,
			MaxAge:           s.cfg.CORS.MaxAge,
		}))
	}

	r.Get("/healthz", s.health)

	r.Route("/api", func(r chi.Router) {
		if s.cfg.RateLimit.RequestsPerSecond > 0 {
			r.Use(RateLimiter(s.cfg.RateLimit))
		}
		r.Get("/datasets", s.listDatasets)
		r.Route("/{prefix}/{version}", func(r chi.Router) {
			r.Post("/query", s.query)
			r.Post("/validate", s.validate)
			r.Post("/plan", s.plan)
			r.Get("/filter-options", s.filterOptions)
			r.Get("/schema", s.schema)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, notFound("no route for %s %s", r.Method, r.URL.Path))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		_ = writeJSON(w, http.StatusMethodNotAllowed, errorBody{
			Code:    "method_not_allowed",
			Message: "method not allowed",
		})
	})
	return r
}

// Serve listens on the configured address until ctx is cancelled, then shuts
// down gracefully. When watchDir is set, dataset schemas are reloaded as
// their documents change.
func (s *Server) Serve(ctx context.Context, watchDir string) error {
	ln, err := net.Listen("tcp", s.cfg.Address())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Address(), err)
	}
	return s.ServeListener(ctx, ln, watchDir)
}

// ServeListener is Serve on an existing listener.
func (s *Server) ServeListener(ctx context.Context, ln net.Listener, watchDir string) error {
	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Handler: s.handler,
		BaseContext: func(net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
	}

	if s.cfg.MaxConnections > 0 {
		ln = netutil.LimitListener(ln, s.cfg.MaxConnections)
	}

	if watchDir != "" {
		eg.Go(func() error {
			return s.catalog.Watch(egctx, watchDir)
		})
	}

	eg.Go(func() error {
		s.logger.Info("starting server", slog.String("addr", "http://"+ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egctx.Done()
		timeout := s.cfg.ShutdownTimeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		s.logger.Debug("shutting down server")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}
