package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCartSessionUsesHeader(t *testing.T) {
	var got string
	handler := CartSession(false, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = CartSessionFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	req.Header.Set(CartSessionHeader, "guest-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, "guest-token", got)
	assert.Equal(t, "guest-token", rec.Header().Get(CartSessionHeader))
	assert.Empty(t, rec.Result().Cookies())
}

func TestCartSessionFallsBackToCookie(t *testing.T) {
	var got string
	handler := CartSession(false, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = CartSessionFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	req.AddCookie(&http.Cookie{Name: cartSessionCookie, Value: "cookie-token"})
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "cookie-token", got)
}

func TestCartSessionMintsToken(t *testing.T) {
	var got string
	handler := CartSession(true, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = CartSessionFromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil))

	require.NotEmpty(t, got)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, got, cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)
	assert.True(t, cookies[0].Secure)
}
