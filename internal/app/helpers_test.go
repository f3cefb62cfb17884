package app_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/florianilch/dashgate/internal/apiclient"
)

func newTestServer(t *testing.T, h http.Handler) string {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv.URL
}

func navigatorFunc(f func(path string)) apiclient.Navigator {
	return apiclient.NavigatorFunc(func(_ context.Context, path string) { f(path) })
}
