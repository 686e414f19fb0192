package auth

import (
    "net/http"
    "time"
)

// RefreshCookieName is the cookie under which the raw refresh token
// travels to the browser.
const RefreshCookieName = "refresh_token"

// CookieSettings carries the transport attributes of the refresh
// cookie, taken from configuration rather than hardcoded.
type CookieSettings struct {
    Domain string
    Secure bool
}

// RefreshCookie builds the Set-Cookie value delivering a refresh
// token.  The cookie is httpOnly so scripts cannot read it, uses
// SameSite=None so the SPA on another origin can send it, and expires
// together with the token.
func RefreshCookie(s CookieSettings, raw string, exp time.Time) *http.Cookie {
    return &http.Cookie{
        Name:     RefreshCookieName,
        Value:    raw,
        Path:     "/",
        Domain:   s.Domain,
        Expires:  exp,
        MaxAge:   int(time.Until(exp) / time.Second),
        HttpOnly: true,
        Secure:   s.Secure,
        SameSite: http.SameSiteNoneMode,
    }
}

// ClearRefreshCookie builds the Set-Cookie value that removes the
// refresh cookie on logout: empty value, immediate expiry.
func ClearRefreshCookie(s CookieSettings) *http.Cookie {
    return &http.Cookie{
        Name:     RefreshCookieName,
        Value:    "",
        Path:     "/",
        Domain:   s.Domain,
        MaxAge:   -1,
        HttpOnly: true,
        Secure:   s.Secure,
        SameSite: http.SameSiteNoneMode,
    }
}
