package web

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/florianilch/dashgate/internal/apiclient"
	"github.com/florianilch/dashgate/internal/tokenstore"
)

// SignInLocationHeader tells script callers of /api/ where to send the user
// after the backend rejected their session.
const SignInLocationHeader = "X-Sign-In-Location"

// redirectNavigator turns a session teardown into a full-page redirect. Only the
// first navigation of a page request writes the response.
type redirectNavigator struct {
	w     http.ResponseWriter
	r     *http.Request
	once  sync.Once
	fired atomic.Bool
}

func (n *redirectNavigator) Navigate(_ context.Context, path string) {
	n.once.Do(func() {
		n.fired.Store(true)
		http.Redirect(n.w, n.r, path, http.StatusSeeOther)
	})
}

// Navigated reports whether the response has been taken over by a redirect.
func (n *redirectNavigator) Navigated() bool {
	return n.fired.Load()
}

// headerNavigator marks a proxied API response so the browser script can navigate.
type headerNavigator struct {
	w http.ResponseWriter
}

func (n headerNavigator) Navigate(_ context.Context, path string) {
	n.w.Header().Set(SignInLocationHeader, path)
}

func (s *Server) cookieStore(w http.ResponseWriter, r *http.Request) (*tokenstore.CookieStore, error) {
	return tokenstore.NewCookieStore(w, r, s.cfg.Cookie)
}

// sessionClient creates the per-request API client bound to the request's cookie.
// A nil navigator only clears the cookie on 401.
func (s *Server) sessionClient(store tokenstore.TokenStore, nav apiclient.Navigator) (*apiclient.Client, error) {
	opts := []apiclient.Option{
		apiclient.WithTransport(s.transport),
		apiclient.WithSignInPath(s.cfg.SignInPath),
		apiclient.WithLogger(s.logger),
	}
	if nav != nil {
		opts = append(opts, apiclient.WithNavigator(nav))
	}
	return apiclient.New(s.cfg.UpstreamBaseURL, store, opts...)
}
