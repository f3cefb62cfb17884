package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/florianilch/dashgate/internal/routeguard"
	"github.com/florianilch/dashgate/internal/tokenstore"
)

// DashboardPath is the landing page after sign-in.
const DashboardPath = "/dashboard"

// Config holds the settings the server needs from the application config.
type Config struct {
	// UpstreamBaseURL is the backend API every session client talks to.
	UpstreamBaseURL   string
	Cookie            tokenstore.CookieOptions
	SignInPath        string
	SignUpPath        string
	ProtectedPrefixes []string
}

// Option configures a Server.
type Option func(*Server)

// WithTransport sets the base transport used for backend calls.
// If not provided, http.DefaultTransport is used.
func WithTransport(transport http.RoundTripper) Option {
	return func(s *Server) {
		s.transport = transport
	}
}

// WithLogger sets the logger for request logging.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// Server is the backend-for-frontend: it serves the authentication forms and the
// dashboard shell, and forwards API calls from the browser with the session token.
type Server struct {
	cfg       Config
	upstream  *url.URL
	transport http.RoundTripper
	logger    *slog.Logger

	handler http.Handler
	server  *http.Server
}

// Compile-time check that Server implements http.Handler
var _ http.Handler = (*Server)(nil)

// New creates a Server for the given configuration.
func New(cfg Config, opts ...Option) (*Server, error) {
	upstream, err := url.Parse(cfg.UpstreamBaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid upstream URL: %w", err)
	}
	if upstream.Scheme == "" || upstream.Host == "" {
		return nil, fmt.Errorf("invalid upstream URL %q: scheme and host required", cfg.UpstreamBaseURL)
	}
	if cfg.Cookie.Name == "" {
		cfg.Cookie.Name = tokenstore.DefaultCookieName
	}
	if cfg.SignUpPath == "" {
		cfg.SignUpPath = "/sign_up"
	}
	if err := ValidateRoutes(cfg.SignInPath, cfg.SignUpPath); err != nil {
		return nil, fmt.Errorf("invalid routes: %w", err)
	}

	guard, err := routeguard.New(routeguard.Config{
		CookieName:        cfg.Cookie.Name,
		SignInPath:        cfg.SignInPath,
		ProtectedPrefixes: cfg.ProtectedPrefixes,
	})
	if err != nil {
		return nil, fmt.Errorf("invalid route guard: %w", err)
	}

	s := &Server{
		cfg:       cfg,
		upstream:  upstream,
		transport: http.DefaultTransport,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET "+HealthPath, s.handleHealth)
	mux.HandleFunc("GET "+cfg.SignInPath, s.handleSignInForm)
	mux.HandleFunc("POST "+cfg.SignInPath, s.handleSignIn)
	mux.HandleFunc("GET "+cfg.SignUpPath, s.handleSignUpForm)
	mux.HandleFunc("POST "+cfg.SignUpPath, s.handleSignUp)
	mux.HandleFunc("POST "+SignOutPath, s.handleSignOut)
	mux.HandleFunc("GET "+DashboardPath, s.handleDashboard)
	mux.HandleFunc(APIPrefix+"/", s.handleAPI)

	s.handler = applyMiddlewares(mux,
		Logging(s.logger),
		Recovery,
		guard.Middleware,
	)

	return s, nil
}

// ServeHTTP implements http.Handler interface
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Start starts the HTTP server in the background and returns immediately.
// Returns a channel for runtime errors and a startup error if any.
//
// Startup errors (port in use, permission denied) are returned immediately.
// Runtime errors (network failures during operation) are sent to the error channel.
//
// The caller is responsible for calling Shutdown() to stop the server.
func (s *Server) Start(ctx context.Context, address string) (<-chan error, error) {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", address, err)
	}

	s.server = &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      2 * time.Minute, // bounds proxied API responses
		IdleTimeout:       90 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	errCh := make(chan error, 1)

	go func() {
		err := s.server.Serve(listener)
		// Only report error if not from graceful shutdown
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	return errCh, nil
}

// Shutdown performs graceful shutdown of the HTTP server.
// Returns error if shutdown fails or times out.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}

	if err := s.server.Shutdown(ctx); err != nil {
		// Graceful shutdown failed - force close
		_ = s.server.Close()
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	return nil
}
