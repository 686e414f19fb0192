package auth

import (
    "net/http"
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
)

func TestRefreshCookie(t *testing.T) {
    exp := time.Now().UTC().Add(24 * time.Hour)
    c := RefreshCookie(CookieSettings{Domain: "example.com", Secure: true}, "raw-value", exp)

    assert.Equal(t, RefreshCookieName, c.Name)
    assert.Equal(t, "raw-value", c.Value)
    assert.Equal(t, "/", c.Path)
    assert.Equal(t, "example.com", c.Domain)
    assert.True(t, c.HttpOnly)
    assert.True(t, c.Secure)
    assert.Equal(t, http.SameSiteNoneMode, c.SameSite)
    assert.Equal(t, exp, c.Expires)
    assert.Greater(t, c.MaxAge, 0)
}

func TestClearRefreshCookie(t *testing.T) {
    c := ClearRefreshCookie(CookieSettings{Domain: "example.com"})

    assert.Equal(t, RefreshCookieName, c.Name)
    assert.Empty(t, c.Value)
    assert.Equal(t, -1, c.MaxAge)
    assert.True(t, c.HttpOnly)
}
