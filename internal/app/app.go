package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/florianilch/dashgate/internal/apiclient"
	"github.com/florianilch/dashgate/internal/tokenstore"
	"github.com/florianilch/dashgate/internal/web"
)

// App orchestrates the lifecycle of the web server.
type App struct {
	cfg    *Config
	server *web.Server
}

// New creates a new App instance.
func New(cfg *Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	server, err := web.New(WebConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to create web server: %w", err)
	}

	return &App{
		cfg:    cfg,
		server: server,
	}, nil
}

// Handler exposes the web server, mainly for tests.
func (a *App) Handler() *web.Server {
	return a.server
}

// Start starts all services and blocks until shutdown is triggered.
// Uses errgroup for runtime error monitoring and shutdown function collection for coordinated cleanup.
func (a *App) Start(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	address := a.cfg.Server.Host + ":" + strconv.FormatUint(uint64(a.cfg.Server.Port), 10)
	var shutdownFuncs []func(context.Context) error

	slog.InfoContext(gCtx, "starting web server", "address", address, "upstream", a.cfg.Upstream.BaseURL)
	serverErrCh, err := a.server.Start(gCtx, address)
	if err != nil {
		return fmt.Errorf("web server startup failed: %w", err)
	}
	shutdownFuncs = append(shutdownFuncs, a.server.Shutdown)

	// Monitor runtime errors - errgroup cancels context on first error
	g.Go(func() error {
		select {
		case err := <-serverErrCh:
			if err != nil {
				slog.ErrorContext(gCtx, "web server runtime error", "error", err)
				return fmt.Errorf("web server: %w", err)
			}
			return nil
		case <-gCtx.Done():
			return nil
		}
	})

	slog.InfoContext(gCtx, "application ready", "address", address)

	runtimeErr := g.Wait()

	slog.InfoContext(gCtx, "shutting down services")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Shutdown.Timeout)
	defer cancel()

	var errs []error
	if runtimeErr != nil {
		errs = append(errs, fmt.Errorf("runtime: %w", runtimeErr))
	}

	for i := len(shutdownFuncs) - 1; i >= 0; i-- {
		if err := shutdownFuncs[i](shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "service shutdown failed", "error", err)
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	slog.Info("application stopped")
	return nil
}

// WebConfig derives the web server settings from the application config.
func WebConfig(cfg *Config) web.Config {
	return web.Config{
		UpstreamBaseURL: cfg.Upstream.BaseURL,
		Cookie: tokenstore.CookieOptions{
			Name:   cfg.Session.CookieName,
			Secure: cfg.Session.CookieSecure,
			MaxAge: cfg.Session.CookieMaxAge,
		},
		SignInPath:        cfg.Session.SignInPath,
		SignUpPath:        cfg.Session.SignUpPath,
		ProtectedPrefixes: cfg.Session.ProtectedPrefixes,
	}
}

// NewClient creates a CLI-side API client whose token lives in store.
// nav is fired when the backend rejects the session; it may be nil.
func NewClient(cfg *Config, store tokenstore.TokenStore, nav apiclient.Navigator) (*apiclient.Client, error) {
	return apiclient.New(cfg.Upstream.BaseURL, store,
		apiclient.WithNavigator(nav),
		apiclient.WithSignInPath(cfg.Session.SignInPath),
	)
}
