package middleware

import (
    "net/http"
    "net/http/httptest"
    "testing"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/iliyamo/runly/internal/apperr"
    "github.com/iliyamo/runly/internal/config"
    "github.com/iliyamo/runly/internal/model"
    "github.com/iliyamo/runly/internal/ratelimit"
)

func okHandler(c echo.Context) error { return c.NoContent(http.StatusOK) }

func newCtx(method string, headers map[string]string) (echo.Context, *httptest.ResponseRecorder) {
    e := echo.New()
    req := httptest.NewRequest(method, "http://api.runly.test/api/runs", nil)
    for k, v := range headers {
        req.Header.Set(k, v)
    }
    rec := httptest.NewRecorder()
    return e.NewContext(req, rec), rec
}

func TestCSRF(t *testing.T) {
    tests := []struct {
        name    string
        method  string
        headers map[string]string
        blocked bool
    }{
        {"safe method from anywhere", http.MethodGet, map[string]string{"Origin": "https://evil.example"}, false},
        {"no origin or referer", http.MethodPost, nil, false},
        {"same origin", http.MethodPost, map[string]string{"Origin": "http://api.runly.test"}, false},
        {"configured origin", http.MethodPatch, map[string]string{"Origin": "https://app.runly.test"}, false},
        {"foreign origin", http.MethodDelete, map[string]string{"Origin": "https://evil.example"}, true},
        {"foreign referer", http.MethodPost, map[string]string{"Referer": "https://evil.example/page"}, true},
        {"garbage referer", http.MethodPost, map[string]string{"Referer": "::"}, true},
    }
    for _, tt := range tests {
        t.Run(tt.name, func(t *testing.T) {
            c, _ := newCtx(tt.method, tt.headers)
            err := CSRF("https://app.runly.test")(okHandler)(c)
            if tt.blocked {
                assert.True(t, apperr.Is(err, apperr.CodeCSRFBlocked))
            } else {
                assert.NoError(t, err)
            }
        })
    }
}

func TestRateLimitBlocksAfterMax(t *testing.T) {
    cfg := config.RateLimitConfig{Enabled: true, Max: 2, Window: time.Minute, Backend: "memory", Prefix: "test"}
    mw := RateLimit(cfg, "login", ratelimit.NewMemory(cfg.Prefix, cfg.Max, cfg.Window), nil)

    for i := 0; i < 2; i++ {
        c, rec := newCtx(http.MethodPost, nil)
        require.NoError(t, mw(okHandler)(c))
        assert.Equal(t, http.StatusOK, rec.Code)
    }
    c, rec := newCtx(http.MethodPost, nil)
    err := mw(okHandler)(c)
    assert.True(t, apperr.Is(err, apperr.CodeRateLimited))
    assert.Equal(t, "60", rec.Header().Get("Retry-After"))
    assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
}

func TestRateLimitDisabledPassesThrough(t *testing.T) {
    mw := RateLimit(config.RateLimitConfig{Enabled: false}, "login", nil, nil)
    for i := 0; i < 10; i++ {
        c, _ := newCtx(http.MethodPost, nil)
        assert.NoError(t, mw(okHandler)(c))
    }
}

func TestRequireRole(t *testing.T) {
    mw := RequireRole("admin")

    c, _ := newCtx(http.MethodGet, nil)
    assert.True(t, apperr.Is(mw(okHandler)(c), apperr.CodeUnauthorized))

    c, _ = newCtx(http.MethodGet, nil)
    setIdentity(c, &model.Identity{UserID: 2, Role: model.RoleCoach})
    assert.True(t, apperr.Is(mw(okHandler)(c), apperr.CodeForbidden))

    c, _ = newCtx(http.MethodGet, nil)
    setIdentity(c, &model.Identity{UserID: 1, Role: model.RoleAdmin})
    assert.NoError(t, mw(okHandler)(c))
}

func TestSecurityHeaders(t *testing.T) {
    c, rec := newCtx(http.MethodGet, nil)
    require.NoError(t, SecurityHeaders()(okHandler)(c))
    assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
    assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
    assert.Equal(t, "strict-origin-when-cross-origin", rec.Header().Get("Referrer-Policy"))
    assert.Contains(t, rec.Header().Get("Content-Security-Policy"), "frame-ancestors 'none'")
    assert.NotEmpty(t, rec.Header().Get("Permissions-Policy"))
}

func TestCORS(t *testing.T) {
    mw := CORS("https://app.runly.test")

    c, rec := newCtx(http.MethodOptions, map[string]string{
        "Origin":                        "https://app.runly.test",
        "Access-Control-Request-Method": http.MethodPost,
    })
    require.NoError(t, mw(okHandler)(c))
    assert.Equal(t, http.StatusNoContent, rec.Code)
    assert.Equal(t, "https://app.runly.test", rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
    assert.Equal(t, "true", rec.Header().Get(echo.HeaderAccessControlAllowCredentials))
    assert.Contains(t, rec.Header().Get(echo.HeaderAccessControlAllowMethods), http.MethodPatch)

    c, rec = newCtx(http.MethodGet, map[string]string{"Origin": "https://evil.example"})
    require.NoError(t, mw(okHandler)(c))
    assert.Equal(t, http.StatusOK, rec.Code)
    assert.Empty(t, rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
}

func TestCORSWithoutOriginIsSameOriginOnly(t *testing.T) {
    c, rec := newCtx(http.MethodGet, map[string]string{"Origin": "https://app.runly.test"})
    require.NoError(t, CORS("")(okHandler)(c))
    assert.Empty(t, rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
}
