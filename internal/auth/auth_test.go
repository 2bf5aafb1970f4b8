package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWT_RoundTrip(t *testing.T) {
	j := NewJWT("secret")
	tok, err := j.Sign(User{ID: "8f14e45f-ea1c-4b0c-9f4e-3c1f5a6b7d20", Email: "a@b.c", Role: "authenticated"}, time.Hour)
	require.NoError(t, err)

	u, err := j.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, "8f14e45f-ea1c-4b0c-9f4e-3c1f5a6b7d20", u.ID)
	assert.Equal(t, "authenticated", u.Role)
}

func TestJWT_Rejects(t *testing.T) {
	j := NewJWT("secret")

	other, err := NewJWT("other").Sign(User{ID: "u1"}, time.Hour)
	require.NoError(t, err)
	_, err = j.Verify(other)
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired, err := j.Sign(User{ID: "u1"}, -time.Minute)
	require.NoError(t, err)
	_, err = j.Verify(expired)
	assert.ErrorIs(t, err, ErrInvalidToken)

	noSub, err := j.Sign(User{}, time.Hour)
	require.NoError(t, err)
	_, err = j.Verify(noSub)
	assert.ErrorIs(t, err, ErrInvalidToken)

	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "u1"}).SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = j.Verify(noExp)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRequireAuth(t *testing.T) {
	j := NewJWT("secret")
	h := RequireAuth(j)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, ok := UserFromContext(r.Context())
		require.True(t, ok)
		_, _ = w.Write([]byte(u.ID))
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	tok, err := j.Sign(User{ID: "u1"}, time.Hour)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "u1", rr.Body.String())
}

func TestOptionalAuth(t *testing.T) {
	j := NewJWT("secret")
	h := OptionalAuth(j)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, ok := UserFromContext(r.Context())
		if !ok {
			_, _ = w.Write([]byte("anon"))
		}
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "anon", rr.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}
