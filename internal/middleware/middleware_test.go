package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/storefront/internal/config"
	"github.com/iliyamo/storefront/internal/model"
	"github.com/iliyamo/storefront/internal/utils"
)

const secret = "mw-secret"

func protectedEcho(roles ...string) *echo.Echo {
	e := echo.New()
	g := e.Group("", JWTAuth(secret))
	if len(roles) > 0 {
		g.Use(RequireRole(roles...))
	}
	g.GET("/who", func(c echo.Context) error {
		claims, _ := c.Get(ContextClaims).(*utils.Claims)
		return c.JSON(http.StatusOK, echo.Map{"user_id": UserID(c), "role": Role(c), "jti": claims.ID})
	})
	return e
}

func do(e *echo.Echo, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/who", nil)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func issue(t *testing.T, key, role string, ttl time.Duration) string {
	t.Helper()
	tok, err := utils.NewAccessToken(key, "42", role, ttl)
	require.NoError(t, err)
	return tok.Token
}

func TestJWTAuth_Accepts(t *testing.T) {
	rec := do(protectedEcho(), issue(t, secret, model.RoleCustomer, time.Hour))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"user_id":"42"`)
	assert.Contains(t, rec.Body.String(), `"role":"customer"`)
}

func TestJWTAuth_Rejects(t *testing.T) {
	noneTok, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"sub": "42", "role": "admin", "exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
		want  string
	}{
		{name: "missing", token: "", want: "missing bearer token"},
		{name: "malformed", token: "abc.def", want: "invalid token"},
		{name: "wrong secret", token: issue(t, "other-secret", model.RoleCustomer, time.Hour), want: "invalid token"},
		{name: "expired", token: issue(t, secret, model.RoleCustomer, -time.Minute), want: "token expired"},
		{name: "alg none", token: noneTok, want: "invalid token"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(protectedEcho(), tc.token)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Contains(t, rec.Body.String(), tc.want)
		})
	}
}

func TestRequireRole(t *testing.T) {
	e := protectedEcho(model.RoleAdmin)

	assert.Equal(t, http.StatusForbidden, do(e, issue(t, secret, model.RoleCustomer, time.Hour)).Code)
	assert.Equal(t, http.StatusOK, do(e, issue(t, secret, model.RoleAdmin, time.Hour)).Code)
}

func TestRequireRole_WithoutJWT(t *testing.T) {
	e := echo.New()
	e.GET("/x", func(c echo.Context) error { return c.NoContent(http.StatusOK) }, RequireRole(model.RoleCustomer))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func limitedEcho(t *testing.T, cfg config.RateLimitConfig) (*echo.Echo, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	e := echo.New()
	e.Use(NewTokenBucket(cfg, rdb, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))))
	e.POST("/login", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	return e, mr
}

func post(e *echo.Echo, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	req.RemoteAddr = ip + ":5555"
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestTokenBucket_BlocksAfterCapacity(t *testing.T) {
	cfg := config.RateLimitConfig{
		Enabled: true, Capacity: 2, RefillTokens: 1, RefillInterval: time.Hour,
		TTL: 2 * time.Hour, KeyStrategy: "ip_route", Prefix: "rl",
	}
	e, mr := limitedEcho(t, cfg)

	assert.Equal(t, http.StatusOK, post(e, "10.0.0.1").Code)
	rec := post(e, "10.0.0.1")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	rec = post(e, "10.0.0.1")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "too_many_requests")

	// Another client has its own bucket.
	assert.Equal(t, http.StatusOK, post(e, "10.0.0.2").Code)
	assert.True(t, mr.Exists("rl:ip:10.0.0.1:route:POST /login"))
}

func TestTokenBucket_FailsOpen(t *testing.T) {
	cfg := config.RateLimitConfig{Enabled: true, Capacity: 1, RefillTokens: 1, RefillInterval: time.Hour, TTL: time.Hour, Prefix: "rl"}
	e, mr := limitedEcho(t, cfg)
	mr.Close()

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, post(e, "10.0.0.1").Code)
	}
}

func TestTokenBucket_DisabledPassThrough(t *testing.T) {
	mw := NewTokenBucket(config.RateLimitConfig{Enabled: false}, nil, nil)
	e := echo.New()
	e.Use(mw)
	e.POST("/login", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, post(e, "10.0.0.1").Code)
	}
}

func TestBuildRateKey_UsesSubject(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/usuarios/pago", nil)
	req.RemoteAddr = "10.0.0.9:1"
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/usuarios/pago")

	cfg := config.RateLimitConfig{Prefix: "rl", KeyStrategy: "user_route"}
	assert.Equal(t, "rl:user:anon:route:POST /usuarios/pago", buildRateKey(cfg, c))

	c.Set(ContextUserID, "42")
	assert.Equal(t, "rl:user:42:route:POST /usuarios/pago", buildRateKey(cfg, c))

	cfg.KeyStrategy = ""
	assert.Equal(t, "rl:ip:10.0.0.9:user:42:route:POST /usuarios/pago", buildRateKey(cfg, c))
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, nil))

	e := echo.New()
	e.Use(RequestID(), RequestLogger(log))
	e.GET("/boom", func(c echo.Context) error { return echo.NewHTTPError(http.StatusTeapot, "nope") })

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))
	out := buf.String()
	assert.True(t, strings.Contains(out, `"status":418`), out)
	assert.Contains(t, out, `"level":"ERROR"`)
	assert.Contains(t, out, rec.Header().Get(echo.HeaderXRequestID))
}
