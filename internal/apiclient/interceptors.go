package apiclient

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/oauth2"

	"github.com/florianilch/dashgate/internal/tokenstore"
)

// RequestIDHeader carries the per-call correlation id.
const RequestIDHeader = "X-Request-Id"

// Interceptor wraps a transport with request and/or response handling.
type Interceptor func(next http.RoundTripper) http.RoundTripper

// RoundTripperFunc adapts a function to http.RoundTripper.
type RoundTripperFunc func(*http.Request) (*http.Response, error)

// RoundTrip calls f(req).
func (f RoundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// Chain applies interceptors to base in the order they appear.
// The first interceptor is the outermost (executes first).
func Chain(base http.RoundTripper, interceptors ...Interceptor) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	rt := base
	for i := len(interceptors) - 1; i >= 0; i-- {
		rt = interceptors[i](rt)
	}
	return rt
}

// Bearer attaches the stored token as a bearer credential.
// The store is read on every call; an absent token sends the request unauthenticated.
func Bearer(store tokenstore.TokenStore) Interceptor {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
			token, err := store.Read(req.Context())
			if errors.Is(err, tokenstore.ErrNotFound) {
				return next.RoundTrip(req)
			}
			if err != nil {
				return nil, fmt.Errorf("reading session token: %w", err)
			}

			// RoundTrippers must not modify the caller's request
			out := req.Clone(req.Context())
			(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}).SetAuthHeader(out)
			return next.RoundTrip(out)
		})
	}
}

// SessionTeardown reacts to 401 responses by clearing the store and navigating
// to signInPath. The response is returned unchanged so the failure still reaches
// the caller. A nil navigator only clears the store. A nil logger uses slog.Default.
func SessionTeardown(store tokenstore.TokenStore, nav Navigator, signInPath string, logger *slog.Logger) Interceptor {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
			resp, err := next.RoundTrip(req)
			if err != nil || resp.StatusCode != http.StatusUnauthorized {
				return resp, err
			}

			ctx := req.Context()
			logger.InfoContext(ctx, "session rejected by backend, tearing down", "path", req.URL.Path)

			// Clear runs on the caller's context; a canceled call still gets its local teardown
			if err := store.Clear(ctx); err != nil {
				logger.WarnContext(ctx, "failed to clear session token", "error", err)
			}
			if nav != nil {
				nav.Navigate(ctx, signInPath)
			}
			return resp, nil
		})
	}
}

// RequestID sets X-Request-Id to a fresh UUID unless the caller provided one.
func RequestID() Interceptor {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
			if req.Header.Get(RequestIDHeader) != "" {
				return next.RoundTrip(req)
			}
			out := req.Clone(req.Context())
			out.Header.Set(RequestIDHeader, uuid.NewString())
			return next.RoundTrip(out)
		})
	}
}

// TracePropagation injects the trace context of the request's context using the
// globally registered propagator.
func TracePropagation() Interceptor {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
			out := req.Clone(req.Context())
			otel.GetTextMapPropagator().Inject(req.Context(), propagation.HeaderCarrier(out.Header))
			return next.RoundTrip(out)
		})
	}
}

// Logging logs each call at debug level with method, path, status and duration.
// Headers and bodies are never logged.
func Logging(logger *slog.Logger) Interceptor {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
			ctx := req.Context()
			start := time.Now()

			attrs := []any{
				"method", req.Method,
				"path", req.URL.Path,
				"request_id", req.Header.Get(RequestIDHeader),
			}
			if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
				attrs = append(attrs, "trace_id", sc.TraceID().String())
			}

			resp, err := next.RoundTrip(req)
			attrs = append(attrs, "duration", time.Since(start))
			if err != nil {
				logger.DebugContext(ctx, "backend call failed", append(attrs, "error", err)...)
				return nil, err
			}

			logger.DebugContext(ctx, "backend call", append(attrs, "status", resp.StatusCode)...)
			return resp, nil
		})
	}
}
