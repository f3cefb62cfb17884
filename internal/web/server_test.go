package web_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/florianilch/dashgate/internal/tokenstore"
	"github.com/florianilch/dashgate/internal/web"
)

// oddToken carries bytes a raw cookie value cannot hold.
const oddToken = `ab;c"d\e`

// fakeBackend mimics the backend API: "good" and oddToken are the valid tokens,
// issued to alice@example.com and odd@example.com (password secret).
type fakeBackend struct {
	*httptest.Server

	mu       sync.Mutex
	requests []*http.Request
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()
	b := &fakeBackend{}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /sign_in", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["email"] == "odd@example.com" && body["password"] == "secret" {
			_ = json.NewEncoder(w).Encode(map[string]string{"token": oddToken})
			return
		}
		if body["email"] != "alice@example.com" || body["password"] != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"error":"bad credentials"}`)
			return
		}
		_, _ = io.WriteString(w, `{"token":"good"}`)
	})
	mux.HandleFunc("POST /sign_up", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["email"] == "taken@example.com" {
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = io.WriteString(w, `{"error":"email already registered"}`)
			return
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"token":"good"}`)
	})
	mux.HandleFunc("GET /user/profile", func(w http.ResponseWriter, r *http.Request) {
		if auth := r.Header.Get("Authorization"); auth != "Bearer good" && auth != "Bearer "+oddToken {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = io.WriteString(w, `{"name":"Alice","email":"alice@example.com"}`)
	})
	mux.HandleFunc("GET /posts", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[{"id":1}]`)
	})

	b.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.requests = append(b.requests, r.Clone(r.Context()))
		b.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(b.Close)
	return b
}

func (b *fakeBackend) last() *http.Request {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.requests) == 0 {
		return nil
	}
	return b.requests[len(b.requests)-1]
}

func (b *fakeBackend) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.requests)
}

func newServer(t *testing.T, backendURL string) *web.Server {
	t.Helper()
	srv, err := web.New(web.Config{
		UpstreamBaseURL:   backendURL,
		Cookie:            tokenstore.CookieOptions{Name: "token"},
		SignInPath:        "/sign_in",
		ProtectedPrefixes: []string{"/dashboard"},
	})
	require.NoError(t, err)
	return srv
}

func serve(srv http.Handler, method, target string, form url.Values, cookie string) *httptest.ResponseRecorder {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	r := httptest.NewRequest(method, target, body)
	if form != nil {
		r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if cookie != "" {
		r.AddCookie(&http.Cookie{Name: "token", Value: tokenstore.EncodeCookieValue(cookie)})
	}
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, r)
	return w
}

func sessionCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == "token" {
			return c
		}
	}
	return nil
}

func TestDashboardRequiresCookie(t *testing.T) {
	backend := newFakeBackend(t)
	srv := newServer(t, backend.URL)

	w := serve(srv, http.MethodGet, "/dashboard", nil, "")

	assert.Equal(t, http.StatusTemporaryRedirect, w.Code)
	assert.Equal(t, "/sign_in", w.Header().Get("Location"))
	assert.Zero(t, backend.count(), "guard must stop the request before any backend call")
}

func TestDashboardRendersProfile(t *testing.T) {
	backend := newFakeBackend(t)
	srv := newServer(t, backend.URL)

	w := serve(srv, http.MethodGet, "/dashboard", nil, "good")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Alice")
	assert.Equal(t, "Bearer good", backend.last().Header.Get("Authorization"))
	assert.Nil(t, sessionCookie(t, w), "a valid session is left alone")
}

func TestDashboardStaleCookieRedirects(t *testing.T) {
	backend := newFakeBackend(t)
	srv := newServer(t, backend.URL)

	w := serve(srv, http.MethodGet, "/dashboard", nil, "stale")

	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/sign_in", w.Header().Get("Location"))

	c := sessionCookie(t, w)
	require.NotNil(t, c, "stale cookie must be cleared")
	assert.Empty(t, c.Value)
	assert.Equal(t, -1, c.MaxAge)
	assert.NotContains(t, w.Body.String(), "Dashboard")
}

func TestSignIn(t *testing.T) {
	backend := newFakeBackend(t)
	srv := newServer(t, backend.URL)

	w := serve(srv, http.MethodPost, "/sign_in", url.Values{
		"email":    {"alice@example.com"},
		"password": {"secret"},
	}, "")

	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/dashboard", w.Header().Get("Location"))

	c := sessionCookie(t, w)
	require.NotNil(t, c)
	assert.Equal(t, tokenstore.EncodeCookieValue("good"), c.Value)
	assert.True(t, c.HttpOnly)
}

func TestSignInOpaqueTokenSurvivesCookie(t *testing.T) {
	backend := newFakeBackend(t)
	srv := newServer(t, backend.URL)

	w := serve(srv, http.MethodPost, "/sign_in", url.Values{
		"email":    {"odd@example.com"},
		"password": {"secret"},
	}, "")
	require.Equal(t, http.StatusSeeOther, w.Code)
	c := sessionCookie(t, w)
	require.NotNil(t, c)

	r := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	r.AddCookie(c)
	w = httptest.NewRecorder()
	srv.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Bearer "+oddToken, backend.last().Header.Get("Authorization"))
}

func TestSignInBadCredentials(t *testing.T) {
	backend := newFakeBackend(t)
	srv := newServer(t, backend.URL)

	w := serve(srv, http.MethodPost, "/sign_in", url.Values{
		"email":    {"alice@example.com"},
		"password": {"wrong"},
	}, "")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, w.Header().Get("Location"), "a failed sign-in must not redirect to itself")
	assert.Contains(t, w.Body.String(), "invalid email or password")
	assert.Contains(t, w.Body.String(), "alice@example.com")
}

func TestSignInValidatesForm(t *testing.T) {
	backend := newFakeBackend(t)
	srv := newServer(t, backend.URL)

	w := serve(srv, http.MethodPost, "/sign_in", url.Values{
		"email": {"not-an-email"},
	}, "")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, backend.count())
}

func TestSignUp(t *testing.T) {
	backend := newFakeBackend(t)
	srv := newServer(t, backend.URL)

	w := serve(srv, http.MethodPost, "/sign_up", url.Values{
		"name":     {"Bob"},
		"email":    {"bob@example.com"},
		"password": {"long-enough"},
	}, "")

	assert.Equal(t, http.StatusSeeOther, w.Code)
	c := sessionCookie(t, w)
	require.NotNil(t, c)
	assert.Equal(t, tokenstore.EncodeCookieValue("good"), c.Value)

	w = serve(srv, http.MethodPost, "/sign_up", url.Values{
		"name":     {"Bob"},
		"email":    {"taken@example.com"},
		"password": {"long-enough"},
	}, "")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "email already registered")
}

func TestSignOut(t *testing.T) {
	backend := newFakeBackend(t)
	srv := newServer(t, backend.URL)

	w := serve(srv, http.MethodPost, "/sign_out", nil, "good")

	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/sign_in", w.Header().Get("Location"))
	c := sessionCookie(t, w)
	require.NotNil(t, c)
	assert.Equal(t, -1, c.MaxAge)
}

func TestAPIProxyAttachesToken(t *testing.T) {
	backend := newFakeBackend(t)
	srv := newServer(t, backend.URL)

	r := httptest.NewRequest(http.MethodGet, "/api/posts", nil)
	r.AddCookie(&http.Cookie{Name: "token", Value: tokenstore.EncodeCookieValue("good")})
	r.Header.Set("Authorization", "Bearer forged")
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[{"id":1}]`, w.Body.String())

	last := backend.last()
	require.NotNil(t, last)
	assert.Equal(t, "/posts", last.URL.Path)
	assert.Equal(t, "Bearer good", last.Header.Get("Authorization"))
	assert.Empty(t, last.Header.Get("Cookie"))
	assert.NotEmpty(t, last.Header.Get("X-Request-Id"))
}

func TestAPIProxyKeepsEscapedPath(t *testing.T) {
	backend := newFakeBackend(t)
	srv := newServer(t, backend.URL)

	serve(srv, http.MethodGet, "/api/files/a%2Fb?v=1", nil, "good")

	last := backend.last()
	require.NotNil(t, last)
	assert.Equal(t, "/files/a%2Fb", last.URL.EscapedPath())
	assert.Equal(t, "v=1", last.URL.RawQuery)
}

func TestAPIProxyBackendDown(t *testing.T) {
	backend := httptest.NewServer(http.NotFoundHandler())
	backend.Close()
	srv := newServer(t, backend.URL)

	w := serve(srv, http.MethodGet, "/api/posts", nil, "good")

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"error":"backend unavailable"}`, w.Body.String())
}

func TestAPIProxyWithoutCookie(t *testing.T) {
	backend := newFakeBackend(t)
	srv := newServer(t, backend.URL)

	w := serve(srv, http.MethodGet, "/api/posts", nil, "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, backend.last().Header.Get("Authorization"))
}

func TestAPIProxyUnauthorized(t *testing.T) {
	backend := newFakeBackend(t)
	srv := newServer(t, backend.URL)

	w := serve(srv, http.MethodGet, "/api/user/profile", nil, "stale")

	assert.Equal(t, http.StatusUnauthorized, w.Code, "the 401 reaches the browser")
	assert.Equal(t, "/sign_in", w.Header().Get(web.SignInLocationHeader))
	c := sessionCookie(t, w)
	require.NotNil(t, c)
	assert.Equal(t, -1, c.MaxAge)
}

func TestIndexAndHealth(t *testing.T) {
	backend := newFakeBackend(t)
	srv := newServer(t, backend.URL)

	w := serve(srv, http.MethodGet, "/", nil, "")
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/dashboard", w.Header().Get("Location"))

	w = serve(srv, http.MethodGet, "/healthz", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestNewRejectsClashingRoutes(t *testing.T) {
	tests := []struct {
		name       string
		signInPath string
		signUpPath string
	}{
		{name: "health route", signInPath: "/healthz"},
		{name: "sign-out route", signInPath: "/sign_out"},
		{name: "dashboard route", signInPath: "/sign_in", signUpPath: "/dashboard"},
		{name: "index route", signInPath: "/"},
		{name: "api prefix", signInPath: "/api/sign_in"},
		{name: "api root", signInPath: "/sign_in", signUpPath: "/api"},
		{name: "same page", signInPath: "/auth", signUpPath: "/auth"},
		{name: "default sign-up path", signInPath: "/sign_up"},
		{name: "wildcard", signInPath: "/{page}"},
		{name: "unclean", signInPath: "/sign_in/"},
		{name: "empty", signInPath: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var srv *web.Server
			var err error
			require.NotPanics(t, func() {
				srv, err = web.New(web.Config{
					UpstreamBaseURL: "http://localhost:8080",
					SignInPath:      tt.signInPath,
					SignUpPath:      tt.signUpPath,
				})
			})
			assert.Error(t, err)
			assert.Nil(t, srv)
		})
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	_, err := web.New(web.Config{UpstreamBaseURL: "not a url", SignInPath: "/sign_in"})
	assert.Error(t, err)

	_, err = web.New(web.Config{
		UpstreamBaseURL:   "http://localhost:8080",
		SignInPath:        "/dashboard/sign_in",
		ProtectedPrefixes: []string{"/dashboard"},
	})
	assert.Error(t, err)
}
