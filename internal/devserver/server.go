// Package devserver is a local backend implementing the admin API contract
// over sqlite or postgres, so leapadmin can be used without the production
// server.
package devserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"
)

// apiPrefix is where the admin API is mounted.
const apiPrefix = "/api/admin"

// Options configures a Server.
type Options struct {
	// Addr is the listen address used by Run.
	Addr string
	// DSN selects the store; see OpenStore.
	DSN string
	// Fixtures is a YAML fixture file. Empty loads the embedded demo data.
	Fixtures string
	// Watch reloads Fixtures when the file changes.
	Watch bool
	// Secret signs bearer tokens.
	Secret string
	// TokenTTL is the lifetime of issued tokens. Zero disables expiry.
	TokenTTL time.Duration
	Logger   *slog.Logger
}

// Server is the development backend.
type Server struct {
	opts    Options
	store   *Store
	tokens  *tokenIssuer
	metrics *metrics
	logger  *slog.Logger
	handler http.Handler
}

// New opens and migrates the store, loads fixtures and builds the router.
func New(ctx context.Context, opts Options) (*Server, error) {
	if opts.Secret == "" {
		return nil, errors.New("devserver: token secret is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}

	store, err := OpenStore(ctx, opts.DSN, opts.Logger)
	if err != nil {
		return nil, err
	}
	s, err := newServer(ctx, opts, store)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return s, nil
}

func newServer(ctx context.Context, opts Options, store *Store) (*Server, error) {
	if err := store.Migrate(ctx); err != nil {
		return nil, err
	}
	fx, err := LoadFixturesFile(opts.Fixtures)
	if err != nil {
		return nil, err
	}
	if err := store.LoadFixtures(ctx, fx); err != nil {
		return nil, err
	}

	s := &Server{
		opts:    opts,
		store:   store,
		tokens:  newTokenIssuer(opts.Secret, opts.TokenTTL),
		metrics: newMetrics(),
		logger:  opts.Logger,
	}
	s.handler = s.routes()
	return s, nil
}

// Handler returns the HTTP handler serving the API.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Store returns the underlying store.
func (s *Server) Store() *Store {
	return s.store
}

// Close releases the store.
func (s *Server) Close() error {
	return s.store.Close()
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		s.logRequests,
		middleware.Recoverer,
		s.metrics.middleware,
	)
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", s.metrics.handler())

	r.Route(apiPrefix, func(r chi.Router) {
		r.Post("/login", s.handleLogin)
		r.Group(func(r chi.Router) {
			r.Use(s.requireAuth)
			r.Get("/profile", s.handleProfile)
			r.Get("/data-explorer/tables", s.handleListTables)
			r.Get("/data-explorer/tables/{table}/data", s.handleTableData)
		})
	})
	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// Run listens on Options.Addr and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.opts.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.logger.Info("starting devserver", "addr", "http://"+ln.Addr().String(), "dialect", s.store.Dialect())

	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Handler: s.handler,
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	if s.opts.Watch && s.opts.Fixtures != "" {
		eg.Go(func() error {
			return s.watchFixtures(egctx)
		})
	}

	eg.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Debug("shutting down devserver...")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}

// Reload re-reads the fixture file and replaces the store contents. A
// fixture file that fails to parse leaves the current data in place.
func (s *Server) Reload(ctx context.Context) error {
	fx, err := LoadFixturesFile(s.opts.Fixtures)
	if err != nil {
		return err
	}
	return s.store.LoadFixtures(ctx, fx)
}
