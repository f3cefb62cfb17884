// Package apiclient provides the authenticated HTTP client used for every backend call.
//
// The client is an ordered chain of interceptors around a base transport. Each
// interceptor is a func(http.RoundTripper) http.RoundTripper; the first in the
// chain is the outermost and sees the request first and the response last.
//
//	store := tokenstore.NewMemoryStore("abc")
//	client, err := apiclient.New("https://api.example.com", store,
//		apiclient.WithNavigator(nav),
//	)
//	var profile Profile
//	err = client.Get(ctx, "/user/profile", &profile)
//
// # Session teardown
//
// A 401 response clears the token store and hands the sign-in path to the
// Navigator before the error reaches the caller. The session is binary: there is
// no refresh and no retry, so the token is valid until the first 401.
package apiclient
