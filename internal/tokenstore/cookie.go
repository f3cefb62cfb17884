package tokenstore

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// DefaultCookieName is the session cookie read by the route guard and written on sign-in.
const DefaultCookieName = "token"

// CookieOptions controls the attributes of the session cookie.
type CookieOptions struct {
	Name   string
	Path   string
	Secure bool
	// MaxAge of zero issues a browser-session cookie.
	MaxAge time.Duration
}

// EncodeCookieValue returns the cookie value under which token is stored.
// Tokens are opaque and may contain bytes a cookie value cannot carry.
func EncodeCookieValue(token string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(token))
}

// DecodeCookieValue reverses EncodeCookieValue.
func DecodeCookieValue(value string) (string, error) {
	token, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return "", err
	}
	return string(token), nil
}

// CookieStore is a per-request TokenStore backed by the session cookie of one
// HTTP exchange. Reads see the inbound cookie until the store is written or
// cleared; afterwards they see the pending value that will reach the browser.
type CookieStore struct {
	w    http.ResponseWriter
	opts CookieOptions

	mu      sync.Mutex
	token   string
	present bool
}

var _ TokenStore = (*CookieStore)(nil)

// NewCookieStore creates a CookieStore for the given request and response writer.
func NewCookieStore(w http.ResponseWriter, r *http.Request, opts CookieOptions) (*CookieStore, error) {
	if w == nil || r == nil {
		return nil, fmt.Errorf("cookie store requires a request and response writer")
	}
	if opts.Name == "" {
		opts.Name = DefaultCookieName
	}
	if opts.Path == "" {
		opts.Path = "/"
	}

	s := &CookieStore{w: w, opts: opts}

	c, err := r.Cookie(opts.Name)
	switch {
	case errors.Is(err, http.ErrNoCookie):
	case err != nil:
		return nil, fmt.Errorf("reading cookie %s: %w", opts.Name, err)
	default:
		// A value this store did not write reads as absent; the backend never sees it
		if token, err := DecodeCookieValue(c.Value); err == nil {
			s.token = token
			s.present = token != ""
		}
	}

	return s, nil
}

func (c *CookieStore) Read(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.present {
		return "", fmt.Errorf("cookie %s: %w", c.opts.Name, ErrNotFound)
	}
	return c.token, nil
}

// Write sets the session cookie on the response.
func (c *CookieStore) Write(ctx context.Context, token string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if token == "" {
		return c.Clear(ctx)
	}

	cookie := c.cookie(EncodeCookieValue(token))
	if c.opts.MaxAge > 0 {
		cookie.MaxAge = int(c.opts.MaxAge.Seconds())
		cookie.Expires = time.Now().Add(c.opts.MaxAge)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	http.SetCookie(c.w, cookie)
	c.token = token
	c.present = true
	return nil
}

// Clear expires the session cookie on the response.
func (c *CookieStore) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	cookie := c.cookie("")
	cookie.MaxAge = -1
	cookie.Expires = time.Unix(0, 0)

	c.mu.Lock()
	defer c.mu.Unlock()
	http.SetCookie(c.w, cookie)
	c.token = ""
	c.present = false
	return nil
}

func (c *CookieStore) cookie(value string) *http.Cookie {
	return &http.Cookie{
		Name:     c.opts.Name,
		Value:    value,
		Path:     c.opts.Path,
		Secure:   c.opts.Secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}
