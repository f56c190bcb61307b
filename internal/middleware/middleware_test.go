package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signToken(t *testing.T, secret string, role string) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub":  uint64(42),
		"role": role,
		"exp":  time.Now().Add(time.Minute).Unix(),
		"iat":  time.Now().Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func run(mw echo.MiddlewareFunc, req *http.Request, prepare func(echo.Context)) (*httptest.ResponseRecorder, bool) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if prepare != nil {
		prepare(c)
	}
	called := false
	_ = mw(func(c echo.Context) error {
		called = true
		return c.NoContent(http.StatusOK)
	})(c)
	return rec, called
}

func TestJWTAuthAcceptsSignedToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "secret", "ADMIN"))

	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var role interface{}
	err := JWTAuth("secret")(func(c echo.Context) error {
		role = c.Get("role")
		return c.NoContent(http.StatusOK)
	})(c)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ADMIN", role)
}

func TestJWTAuthRejectsBadTokens(t *testing.T) {
	// No header at all.
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec, called := run(JWTAuth("secret"), req, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, called)

	// Signed with a different secret.
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "wrong", "ADMIN"))
	rec, called = run(JWTAuth("secret"), req, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, called)
}

func TestRequireRole(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	rec, called := run(RequireRole("ADMIN", "OBSERVER"), req, func(c echo.Context) {
		c.Set("role", "OBSERVER")
	})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, called)

	rec, called = run(RequireRole("ADMIN"), req, func(c echo.Context) {
		c.Set("role", "OBSERVER")
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.False(t, called)

	// Missing role claim is treated as forbidden, not a panic.
	rec, called = run(RequireRole("ADMIN"), req, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.False(t, called)
}
