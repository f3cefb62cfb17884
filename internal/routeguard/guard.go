// Package routeguard gates protected pages on the presence of a session cookie.
//
// The guard never decodes or verifies the cookie. Validation is left to the
// backend API; a stale cookie surfaces later as a 401 on the first API call.
package routeguard

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/httplog/v3"
)

// Config describes which paths are protected and where unauthenticated
// requests are sent.
type Config struct {
	CookieName        string
	SignInPath        string
	ProtectedPrefixes []string
}

// Guard redirects unauthenticated requests for protected paths.
type Guard struct {
	cookieName string
	signInPath string
	prefixes   []string
}

// New creates a Guard. Prefixes must be absolute paths and must not cover the
// sign-in path, which would redirect to itself.
func New(cfg Config) (*Guard, error) {
	if cfg.CookieName == "" {
		return nil, fmt.Errorf("cookie name cannot be empty")
	}
	if !strings.HasPrefix(cfg.SignInPath, "/") {
		return nil, fmt.Errorf("sign-in path %q must start with /", cfg.SignInPath)
	}

	g := &Guard{
		cookieName: cfg.CookieName,
		signInPath: cfg.SignInPath,
	}
	for _, prefix := range cfg.ProtectedPrefixes {
		if !strings.HasPrefix(prefix, "/") {
			return nil, fmt.Errorf("protected prefix %q must start with /", prefix)
		}
		if prefix != "/" {
			prefix = strings.TrimSuffix(prefix, "/")
		}
		g.prefixes = append(g.prefixes, prefix)
	}

	if g.Protected(g.signInPath) {
		return nil, fmt.Errorf("sign-in path %s is protected, requests would loop", g.signInPath)
	}

	return g, nil
}

// Protected reports whether path falls under a protected prefix. Matching is on
// segment boundaries: "/dashboard" covers "/dashboard/x" but not "/dashboards".
func (g *Guard) Protected(path string) bool {
	for _, prefix := range g.prefixes {
		if prefix == "/" || path == prefix || strings.HasPrefix(path, prefix+"/") {
			return true
		}
	}
	return false
}

// Authenticated reports whether r carries the session cookie. Any value counts.
func (g *Guard) Authenticated(r *http.Request) bool {
	_, err := r.Cookie(g.cookieName)
	return err == nil
}

// Middleware redirects unauthenticated requests for protected paths to the
// sign-in path. Everything else proceeds unmodified.
func (g *Guard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !g.Protected(r.URL.Path) || g.Authenticated(r) {
			next.ServeHTTP(w, r)
			return
		}

		httplog.SetAttrs(r.Context(), slog.String("guard", "redirect"))
		http.Redirect(w, r, g.signInPath, http.StatusTemporaryRedirect)
	})
}
