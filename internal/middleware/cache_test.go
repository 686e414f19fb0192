package middleware

import (
    "net/http"
    "net/http/httptest"
    "testing"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/iliyamo/device-fleet/internal/config"
)

func TestCacheKeyStability(t *testing.T) {
    e := echo.New()
    ctxFor := func(target string) echo.Context {
        c := e.NewContext(httptest.NewRequest(http.MethodGet, target, nil), httptest.NewRecorder())
        c.SetPath("/v1/devices")
        return c
    }

    a := cacheKey("cache", ctxFor("/v1/devices?name=x"))
    b := cacheKey("cache", ctxFor("/v1/devices?name=x"))
    other := cacheKey("cache", ctxFor("/v1/devices?name=y"))

    assert.Equal(t, a, b)
    assert.NotEqual(t, a, other)
    assert.Contains(t, a, "cache:")
}

func TestBodyRecorderLimit(t *testing.T) {
    rec := httptest.NewRecorder()
    w := &bodyRecorder{ResponseWriter: rec, status: http.StatusOK, limit: 5}

    n, err := w.Write([]byte("abc"))
    require.NoError(t, err)
    assert.Equal(t, 3, n)
    n, err = w.Write([]byte("defgh"))
    require.NoError(t, err)
    assert.Equal(t, 5, n)

    // the client sees everything; the buffer is capped at the limit
    assert.Equal(t, "abcdefgh", rec.Body.String())
    assert.Equal(t, "abcde", w.buf.String())
}

func TestDisabledMiddlewareIsPassThrough(t *testing.T) {
    e := echo.New()
    called := false
    h := func(c echo.Context) error {
        called = true
        return c.NoContent(http.StatusOK)
    }

    for name, mw := range map[string]echo.MiddlewareFunc{
        "cache":   NewRedisCache(config.CacheConfig{Enabled: false, TTL: time.Minute}, nil),
        "limiter": NewTokenBucket(config.RateLimitConfig{Enabled: false}, nil),
    } {
        called = false
        c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
        require.NoError(t, mw(h)(c), name)
        assert.True(t, called, name)
    }
}
