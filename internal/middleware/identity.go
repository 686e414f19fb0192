package middleware

// identity.go defines helper functions shared across middleware files.
// It provides the principal extraction used by the cache and rate-limit
// key builders: the numeric user id stored by JWTAuth, or "guest" when
// the request carries no valid token.

import (
    "strconv"

    "github.com/labstack/echo/v4"
)

// userID extracts a stable identifier for the authenticated caller
// from the Echo context.  It returns "guest" when no user is
// authenticated so unauthenticated traffic shares one bucket.
func userID(c echo.Context) string {
    v := c.Get(CtxUserID)
    if v == nil {
        return "guest"
    }
    if id, ok := v.(uint64); ok && id != 0 {
        return strconv.FormatUint(id, 10)
    }
    return "guest"
}
