package middleware

import (
    "context"
    "encoding/json"
    "errors"
    "net/http"
    "net/http/httptest"
    "testing"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/iliyamo/workbook-assignment/internal/config"
    "github.com/iliyamo/workbook-assignment/internal/ratelimit"
    "github.com/iliyamo/workbook-assignment/internal/utils"
)

type brokenStore struct{}

func (brokenStore) Incr(context.Context, string, time.Duration, time.Time) (int, time.Time, error) {
    return 0, time.Time{}, errors.New("redis: connection refused")
}

func okHandler(c echo.Context) error { return c.String(http.StatusOK, "ok") }

func serve(e *echo.Echo, req *http.Request) *httptest.ResponseRecorder {
    rec := httptest.NewRecorder()
    e.ServeHTTP(rec, req)
    return rec
}

func TestRateLimit_DeniesAfterMax(t *testing.T) {
    e := echo.New()
    p := ratelimit.Policy{Name: "auth", Window: 15 * time.Minute, MaxRequests: 5}
    e.GET("/", okHandler, RateLimit(ratelimit.New(ratelimit.NewMemoryStore(), nil), p))

    for i := 0; i < 5; i++ {
        rec := serve(e, httptest.NewRequest(http.MethodGet, "/", nil))
        require.Equal(t, http.StatusOK, rec.Code, "request %d", i+1)
        assert.Equal(t, "5", rec.Header().Get("X-RateLimit-Limit"))
    }

    rec := serve(e, httptest.NewRequest(http.MethodGet, "/", nil))
    require.Equal(t, http.StatusTooManyRequests, rec.Code)
    assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
    assert.NotEmpty(t, rec.Header().Get("X-RateLimit-Reset"))
    assert.NotEmpty(t, rec.Header().Get("Retry-After"))

    var body struct {
        Error             string `json:"error"`
        Limit             int    `json:"limit"`
        Remaining         int    `json:"remaining"`
        ResetTime         string `json:"resetTime"`
        RetryAfterSeconds int    `json:"retryAfterSeconds"`
    }
    require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
    assert.Equal(t, "TooManyRequests", body.Error)
    assert.Equal(t, 5, body.Limit)
    assert.Equal(t, 0, body.Remaining)
    assert.Greater(t, body.RetryAfterSeconds, 0)
    _, err := time.Parse(time.RFC3339, body.ResetTime)
    assert.NoError(t, err)
}

func TestRateLimit_SeparatesClientsByAgent(t *testing.T) {
    e := echo.New()
    p := ratelimit.Policy{Name: "auth", Window: time.Minute, MaxRequests: 1}
    e.GET("/", okHandler, RateLimit(ratelimit.New(ratelimit.NewMemoryStore(), nil), p))

    a := httptest.NewRequest(http.MethodGet, "/", nil)
    a.Header.Set("User-Agent", "curl/8")
    b := httptest.NewRequest(http.MethodGet, "/", nil)
    b.Header.Set("User-Agent", "Mozilla/5.0")

    assert.Equal(t, http.StatusOK, serve(e, a).Code)
    assert.Equal(t, http.StatusOK, serve(e, b).Code)
    assert.Equal(t, http.StatusTooManyRequests, serve(e, a).Code)
}

func TestRateLimit_FailsOpen(t *testing.T) {
    e := echo.New()
    p := ratelimit.Policy{Name: "public", Window: time.Minute, MaxRequests: 1}
    e.GET("/", okHandler, RateLimit(ratelimit.New(brokenStore{}, nil), p))

    for i := 0; i < 3; i++ {
        assert.Equal(t, http.StatusOK, serve(e, httptest.NewRequest(http.MethodGet, "/", nil)).Code)
    }
}

func TestClientKey(t *testing.T) {
    e := echo.New()
    req := httptest.NewRequest(http.MethodGet, "/", nil)
    req.Header.Set(echo.HeaderXRealIP, "203.0.113.7")
    req.Header.Set("User-Agent", "curl/8")
    c := e.NewContext(req, httptest.NewRecorder())

    key := ClientKey(c)
    assert.Regexp(t, `^203\.0\.113\.7:[0-9a-f]{8}$`, key)
}

func TestJWTAuthAndRole(t *testing.T) {
    const secret = "test-secret"
    e := echo.New()
    e.GET("/admin", func(c echo.Context) error {
        return c.String(http.StatusOK, c.Get("user_id").(string))
    }, JWTAuth(secret), RequireRole(RoleAdmin))

    rec := serve(e, httptest.NewRequest(http.MethodGet, "/admin", nil))
    assert.Equal(t, http.StatusUnauthorized, rec.Code)

    req := httptest.NewRequest(http.MethodGet, "/admin", nil)
    req.Header.Set("Authorization", "Bearer not.a.token")
    assert.Equal(t, http.StatusUnauthorized, serve(e, req).Code)

    coach, err := utils.NewAccessToken(secret, "coach-1", "COACH", 5)
    require.NoError(t, err)
    req = httptest.NewRequest(http.MethodGet, "/admin", nil)
    req.Header.Set("Authorization", "Bearer "+coach.Token)
    assert.Equal(t, http.StatusForbidden, serve(e, req).Code)

    wrongKey, err := utils.NewAccessToken("other", "admin-1", RoleAdmin, 5)
    require.NoError(t, err)
    req = httptest.NewRequest(http.MethodGet, "/admin", nil)
    req.Header.Set("Authorization", "Bearer "+wrongKey.Token)
    assert.Equal(t, http.StatusUnauthorized, serve(e, req).Code)

    admin, err := utils.NewAccessToken(secret, "admin-1", RoleAdmin, 5)
    require.NoError(t, err)
    req = httptest.NewRequest(http.MethodGet, "/admin", nil)
    req.Header.Set("Authorization", "Bearer "+admin.Token)
    rec = serve(e, req)
    assert.Equal(t, http.StatusOK, rec.Code)
    assert.Equal(t, "admin-1", rec.Body.String())
}

func TestTemplateCache_DisabledIsPassThrough(t *testing.T) {
    e := echo.New()
    e.GET("/t", okHandler, TemplateCache(config.CacheConfig{Enabled: true}, nil, nil))
    rec := serve(e, httptest.NewRequest(http.MethodGet, "/t", nil))
    assert.Equal(t, http.StatusOK, rec.Code)
    assert.Empty(t, rec.Header().Get("X-Cache"))
}

func TestCachePayload(t *testing.T) {
    hdr := http.Header{"Content-Type": {"application/json"}}
    bs, err := encodePayload(http.StatusOK, hdr, []byte(`{"id":"x"}`))
    require.NoError(t, err)

    status, got, body, ok := decodePayload(bs)
    require.True(t, ok)
    assert.Equal(t, http.StatusOK, status)
    assert.Equal(t, "application/json", got.Get("Content-Type"))
    assert.Equal(t, `{"id":"x"}`, string(body))

    _, _, _, ok = decodePayload(bs[:6])
    assert.False(t, ok)
}
