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

	"github.com/iliyamo/dorm-management/internal/config"
	"github.com/iliyamo/dorm-management/internal/utils"
)

const secret = "test-secret"

func protected(e *echo.Echo, mw ...echo.MiddlewareFunc) {
	e.GET("/v1/me", func(c echo.Context) error {
		id, ok := UserID(c)
		return c.JSON(http.StatusOK, echo.Map{"id": id, "ok": ok, "role": Role(c)})
	}, mw...)
}

func serve(e *echo.Echo, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/v1/me", nil)
	if authHeader != "" {
		req.Header.Set(echo.HeaderAuthorization, authHeader)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestJWTAuth(t *testing.T) {
	e := echo.New()
	protected(e, JWTAuth(secret), RequireRole("ADMIN"))

	tok, err := utils.NewAccessToken(secret, 7, "ADMIN", 5)
	require.NoError(t, err)
	rec := serve(e, "Bearer "+tok.Token)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":7,"ok":true,"role":"ADMIN"}`, rec.Body.String())

	assert.Equal(t, http.StatusUnauthorized, serve(e, "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(e, "Bearer not-a-jwt").Code)

	forged, err := utils.NewAccessToken("other-secret", 7, "ADMIN", 5)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, serve(e, "Bearer "+forged.Token).Code)

	expired, err := utils.NewAccessToken(secret, 7, "ADMIN", -5)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, serve(e, "Bearer "+expired.Token).Code)
}

func TestJWTAuth_RejectsOtherAlgorithms(t *testing.T) {
	e := echo.New()
	protected(e, JWTAuth(secret))

	claims := jwt.MapClaims{"sub": "7", "role": "ADMIN", "exp": time.Now().Add(time.Minute).Unix()}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, serve(e, "Bearer "+raw).Code)
}

func TestRequireRole(t *testing.T) {
	e := echo.New()
	protected(e, JWTAuth(secret), RequireRole("ADMIN"))

	tok, err := utils.NewAccessToken(secret, 9, "STAFF", 5)
	require.NoError(t, err)
	rec := serve(e, "Bearer "+tok.Token)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.JSONEq(t, `{"error":"forbidden"}`, rec.Body.String())
}

func TestNilRedisPassThrough(t *testing.T) {
	e := echo.New()
	calls := 0
	h := func(c echo.Context) error {
		calls++
		return c.String(http.StatusOK, "ok")
	}
	cache := NewRedisCache(config.CacheConfig{Enabled: true, Methods: map[string]bool{"GET": true}}, nil, nil)
	limit := NewTokenBucket(config.RateLimitConfig{Enabled: true, Capacity: 1}, nil, nil)
	e.GET("/x", h, limit, cache)

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, rec.Header().Get("X-Cache"))
	}
	assert.Equal(t, 3, calls)
}

func TestCacheKey(t *testing.T) {
	e := echo.New()
	cfg := config.CacheConfig{Prefix: "dorm:cache", KeyStrategy: "route_query"}
	key := func(url string) string {
		c := e.NewContext(httptest.NewRequest(http.MethodGet, url, nil), httptest.NewRecorder())
		c.SetPath("/v1/rooms/:id")
		return cacheKeyFrom(cfg, c)
	}
	assert.Regexp(t, `^dorm:cache:[0-9a-f]{40}$`, key("/v1/rooms/1"))
	assert.Equal(t, key("/v1/rooms/1?a=b"), key("/v1/rooms/1?a=b"))
	assert.NotEqual(t, key("/v1/rooms/1"), key("/v1/rooms/2"))
	assert.NotEqual(t, key("/v1/rooms/1"), key("/v1/rooms/1?page=2"))
}

func TestPayloadRoundTrip(t *testing.T) {
	hdr := http.Header{"Content-Type": {"application/json"}}
	bs, err := encodePayload(http.StatusOK, hdr, []byte(`{"a":1}`))
	require.NoError(t, err)

	status, got, body, ok := decodePayload(bs)
	require.True(t, ok)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "application/json", got.Get("Content-Type"))
	assert.Equal(t, `{"a":1}`, string(body))

	_, _, _, ok = decodePayload(bs[:5])
	assert.False(t, ok)
}

func TestBuildRateKey(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/contracts", nil)
	req.Header.Set(echo.HeaderXRealIP, "10.0.0.1")
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/v1/contracts")

	cfg := config.RateLimitConfig{Prefix: "dorm:rl"}
	assert.Equal(t, "dorm:rl:ip:10.0.0.1:user:anon:route:POST /v1/contracts", buildRateKey(cfg, c))

	c.Set(CtxUserID, "3")
	cfg.KeyStrategy = "user"
	assert.Equal(t, "dorm:rl:user:3", buildRateKey(cfg, c))
}
