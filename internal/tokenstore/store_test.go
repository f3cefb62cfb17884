package tokenstore_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"github.com/florianilch/dashgate/internal/tokenstore"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := tokenstore.NewMemoryStore("")

	_, err := store.Read(ctx)
	assert.ErrorIs(t, err, tokenstore.ErrNotFound)

	require.NoError(t, store.Write(ctx, "abc"))
	token, err := store.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, "abc", token)

	require.NoError(t, store.Clear(ctx))
	_, err = store.Read(ctx)
	assert.ErrorIs(t, err, tokenstore.ErrNotFound)
}

func TestEnvStore(t *testing.T) {
	ctx := context.Background()
	t.Setenv("DASHGATE_TEST_TOKEN", "abc")

	store, err := tokenstore.NewEnvStore("DASHGATE_TEST_TOKEN")
	require.NoError(t, err)

	token, err := store.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, "abc", token)

	assert.ErrorIs(t, store.Write(ctx, "def"), tokenstore.ErrReadOnly)
	assert.ErrorIs(t, store.Clear(ctx), tokenstore.ErrReadOnly)

	t.Setenv("DASHGATE_TEST_TOKEN", "")
	_, err = store.Read(ctx)
	assert.ErrorIs(t, err, tokenstore.ErrNotFound)

	_, err = tokenstore.NewEnvStore("")
	assert.Error(t, err)
}

func TestKeyringStore(t *testing.T) {
	keyring.MockInit()
	ctx := context.Background()

	store, err := tokenstore.NewKeyringStore("dashgate-test", "alice")
	require.NoError(t, err)

	_, err = store.Read(ctx)
	assert.ErrorIs(t, err, tokenstore.ErrNotFound)

	require.NoError(t, store.Write(ctx, "abc"))
	token, err := store.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, "abc", token)

	require.NoError(t, store.Clear(ctx))
	_, err = store.Read(ctx)
	assert.ErrorIs(t, err, tokenstore.ErrNotFound)
	assert.NoError(t, store.Clear(ctx), "clearing a missing entry succeeds")

	_, err = tokenstore.NewKeyringStore("", "alice")
	assert.Error(t, err)
	_, err = tokenstore.NewKeyringStore("dashgate-test", "")
	assert.Error(t, err)
}

func TestCookieStore(t *testing.T) {
	ctx := context.Background()

	t.Run("reads inbound cookie", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
		r.AddCookie(&http.Cookie{Name: "token", Value: tokenstore.EncodeCookieValue("abc")})
		w := httptest.NewRecorder()

		store, err := tokenstore.NewCookieStore(w, r, tokenstore.CookieOptions{})
		require.NoError(t, err)

		token, err := store.Read(ctx)
		require.NoError(t, err)
		assert.Equal(t, "abc", token)
		assert.Empty(t, w.Result().Cookies(), "reading must not touch the response")
	})

	t.Run("missing cookie is absent", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		store, err := tokenstore.NewCookieStore(httptest.NewRecorder(), r, tokenstore.CookieOptions{Name: "session"})
		require.NoError(t, err)

		_, err = store.Read(ctx)
		assert.ErrorIs(t, err, tokenstore.ErrNotFound)
	})

	t.Run("write sets cookie", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/sign_in", nil)
		w := httptest.NewRecorder()
		store, err := tokenstore.NewCookieStore(w, r, tokenstore.CookieOptions{Secure: true, MaxAge: time.Hour})
		require.NoError(t, err)

		require.NoError(t, store.Write(ctx, "abc"))

		token, err := store.Read(ctx)
		require.NoError(t, err)
		assert.Equal(t, "abc", token)

		cookies := w.Result().Cookies()
		require.Len(t, cookies, 1)
		assert.Equal(t, "token", cookies[0].Name)
		assert.Equal(t, tokenstore.EncodeCookieValue("abc"), cookies[0].Value)
		assert.Equal(t, "/", cookies[0].Path)
		assert.Equal(t, 3600, cookies[0].MaxAge)
		assert.True(t, cookies[0].Secure)
		assert.True(t, cookies[0].HttpOnly)
	})

	t.Run("clear expires cookie", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
		r.AddCookie(&http.Cookie{Name: "token", Value: "abc"})
		w := httptest.NewRecorder()
		store, err := tokenstore.NewCookieStore(w, r, tokenstore.CookieOptions{})
		require.NoError(t, err)

		require.NoError(t, store.Clear(ctx))

		_, err = store.Read(ctx)
		assert.ErrorIs(t, err, tokenstore.ErrNotFound)

		cookies := w.Result().Cookies()
		require.Len(t, cookies, 1)
		assert.Equal(t, "token", cookies[0].Name)
		assert.Empty(t, cookies[0].Value)
		assert.Equal(t, -1, cookies[0].MaxAge)
	})

	t.Run("round-trips tokens with cookie-unsafe bytes", func(t *testing.T) {
		const token = `ab;c"d\e f,g`

		w := httptest.NewRecorder()
		store, err := tokenstore.NewCookieStore(w, httptest.NewRequest(http.MethodPost, "/sign_in", nil), tokenstore.CookieOptions{})
		require.NoError(t, err)
		require.NoError(t, store.Write(ctx, token))

		cookies := w.Result().Cookies()
		require.Len(t, cookies, 1)

		next := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
		next.AddCookie(cookies[0])
		store, err = tokenstore.NewCookieStore(httptest.NewRecorder(), next, tokenstore.CookieOptions{})
		require.NoError(t, err)

		got, err := store.Read(ctx)
		require.NoError(t, err)
		assert.Equal(t, token, got)
	})

	t.Run("foreign cookie value is absent", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
		r.AddCookie(&http.Cookie{Name: "token", Value: "not*base64"})
		store, err := tokenstore.NewCookieStore(httptest.NewRecorder(), r, tokenstore.CookieOptions{})
		require.NoError(t, err)

		_, err = store.Read(ctx)
		assert.ErrorIs(t, err, tokenstore.ErrNotFound)
	})

	t.Run("requires writer and request", func(t *testing.T) {
		_, err := tokenstore.NewCookieStore(nil, httptest.NewRequest(http.MethodGet, "/", nil), tokenstore.CookieOptions{})
		assert.Error(t, err)
	})
}
