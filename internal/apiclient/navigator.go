package apiclient

import "context"

// DefaultSignInPath is where an expired session is sent.
const DefaultSignInPath = "/sign_in"

// Navigator performs the navigation side effect of a session teardown.
// Implementations must tolerate concurrent calls; several in-flight requests can
// observe the same stale token.
type Navigator interface {
	Navigate(ctx context.Context, path string)
}

// NavigatorFunc adapts a function to the Navigator interface.
type NavigatorFunc func(ctx context.Context, path string)

// Navigate calls f(ctx, path).
func (f NavigatorFunc) Navigate(ctx context.Context, path string) {
	f(ctx, path)
}
