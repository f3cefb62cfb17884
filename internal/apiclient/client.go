package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/florianilch/dashgate/internal/tokenstore"
)

// Option configures a Client.
type Option func(*config)

type config struct {
	transport    http.RoundTripper
	navigator    Navigator
	signInPath   string
	logger       *slog.Logger
	interceptors []Interceptor
}

// WithTransport sets the base transport. If not provided, http.DefaultTransport is used.
func WithTransport(transport http.RoundTripper) Option {
	return func(c *config) {
		c.transport = transport
	}
}

// WithNavigator sets the navigator fired on session teardown.
func WithNavigator(nav Navigator) Option {
	return func(c *config) {
		c.navigator = nav
	}
}

// WithSignInPath overrides DefaultSignInPath.
func WithSignInPath(path string) Option {
	return func(c *config) {
		c.signInPath = path
	}
}

// WithLogger sets the logger used by the Logging interceptor.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithInterceptors appends interceptors between the built-in observability
// interceptors and the session interceptors.
func WithInterceptors(interceptors ...Interceptor) Option {
	return func(c *config) {
		c.interceptors = append(c.interceptors, interceptors...)
	}
}

// Client issues JSON requests against the backend API on behalf of one session.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
}

// New creates a Client for baseURL whose credentials live in store.
func New(baseURL string, store tokenstore.TokenStore, opts ...Option) (*Client, error) {
	if store == nil {
		return nil, fmt.Errorf("missing token store")
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q: scheme and host required", baseURL)
	}

	cfg := &config{
		signInPath: DefaultSignInPath,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	interceptors := []Interceptor{
		RequestID(),
		TracePropagation(),
		Logging(cfg.logger),
	}
	interceptors = append(interceptors, cfg.interceptors...)
	interceptors = append(interceptors,
		SessionTeardown(store, cfg.navigator, cfg.signInPath, cfg.logger),
		Bearer(store),
	)

	return &Client{
		baseURL: base,
		httpClient: &http.Client{
			Transport: Chain(cfg.transport, interceptors...),
			// The backend speaks JSON; redirects are surfaced instead of followed
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}, nil
}

// Do sends a request with an optional JSON body and decodes a 2xx JSON response
// into out when out is non-nil. Non-2xx responses return a *StatusError.
func (c *Client) Do(ctx context.Context, method, path string, body, out any) error {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, req.URL.Path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return newStatusError(req, resp.StatusCode, data)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%s %s: decoding response: %w", method, req.URL.Path, err)
	}
	return nil
}

// Get issues a GET request.
func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.Do(ctx, http.MethodGet, path, nil, out)
}

// Post issues a POST request with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPost, path, body, out)
}

// Put issues a PUT request with a JSON body.
func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPut, path, body, out)
}

// Patch issues a PATCH request with a JSON body.
func (c *Client) Patch(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPatch, path, body, out)
}

// Delete issues a DELETE request.
func (c *Client) Delete(ctx context.Context, path string, out any) error {
	return c.Do(ctx, http.MethodDelete, path, nil, out)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	target, err := c.resolve(path)
	if err != nil {
		return nil, err
	}

	var reader io.Reader
	if body != nil {
		// json.RawMessage and []byte bodies are sent as-is
		var data []byte
		switch b := body.(type) {
		case json.RawMessage:
			data = b
		case []byte:
			data = b
		default:
			data, err = json.Marshal(body)
			if err != nil {
				return nil, fmt.Errorf("marshaling request body: %w", err)
			}
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target.String(), reader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// resolve joins path onto the base URL, keeping any base path prefix
// (base "https://host/api" + "/posts" → "https://host/api/posts").
func (c *Client) resolve(path string) (*url.URL, error) {
	ref, err := url.Parse(path)
	if err != nil {
		return nil, fmt.Errorf("invalid path %q: %w", path, err)
	}
	if ref.IsAbs() || ref.Host != "" {
		return nil, fmt.Errorf("invalid path %q: must be relative to the base URL", path)
	}

	u := *c.baseURL
	u.Path = strings.TrimSuffix(u.Path, "/") + "/" + strings.TrimPrefix(ref.Path, "/")
	u.RawPath = ""
	u.RawQuery = ref.RawQuery
	u.Fragment = ""
	return &u, nil
}
