package web

import (
	"net/http"
	"net/http/httputil"
	"strings"

	"github.com/florianilch/dashgate/internal/apiclient"
)

// handleAPI forwards browser API calls to the backend. The credential comes only
// from the session cookie; the same Bearer and SessionTeardown interceptors as
// the page clients apply, with the navigation surfaced as a response header.
func (s *Server) handleAPI(w http.ResponseWriter, r *http.Request) {
	store, err := s.cookieStore(w, r)
	if err != nil {
		writeJSON(w, r, apiError{Error: "invalid session cookie", SignIn: s.cfg.SignInPath}, http.StatusBadRequest)
		return
	}

	transport := apiclient.Chain(s.transport,
		apiclient.RequestID(),
		apiclient.TracePropagation(),
		apiclient.Logging(s.logger),
		apiclient.SessionTeardown(store, headerNavigator{w: w}, s.cfg.SignInPath, s.logger),
		apiclient.Bearer(store),
	)

	reverseProxy := &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			// /api/posts → <upstream>/posts, keeping escapes such as %2F intact
			pr.Out.URL.Path = strings.TrimPrefix(pr.In.URL.Path, APIPrefix)
			pr.Out.URL.RawPath = strings.TrimPrefix(pr.In.URL.RawPath, APIPrefix)
			pr.SetURL(s.upstream)
			pr.SetXForwarded()

			// The backend authenticates by bearer token only
			pr.Out.Header.Del("Cookie")
			pr.Out.Header.Del("Authorization")
		},
		// FlushInterval: -1 flushes as soon as the backend does, keeping streamed responses live
		FlushInterval: -1,
		Transport:     transport,
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			s.logger.ErrorContext(r.Context(), "backend call failed", "path", r.URL.Path, "error", err)
			writeJSON(w, r, apiError{Error: "backend unavailable"}, http.StatusBadGateway)
		},
	}

	reverseProxy.ServeHTTP(w, r)
}
