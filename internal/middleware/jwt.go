package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
    "net/http" // HTTP status codes for responses
    "strings"  // string utilities for prefix checking and trimming

    "github.com/labstack/echo/v4" // Echo framework used for defining middleware and handlers

    "github.com/iliyamo/device-fleet/internal/utils" // access-token parsing and snapshot types
)

// Context keys under which JWTAuth stores the authenticated caller's
// identity for downstream handlers.
const (
    CtxUserID   = "user_id"   // uint64 id of the caller
    CtxRoleID   = "role_id"   // uint8 role of the caller
    CtxSnapshot = "user_snap" // utils.UserSnapshot of the caller
)

// JWTAuth returns an Echo middleware that validates a Bearer access
// token and injects the embedded user snapshot into the request
// context.  The provided secret must match the one used when issuing
// tokens.  Verification is stateless: signature and expiry only, no
// store lookup.  Handlers read the caller via c.Get(CtxSnapshot).
func JWTAuth(secret string) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            // A valid header starts with "Bearer " followed by the
            // serialized JWT.  Anything else is rejected with 401.
            auth := c.Request().Header.Get("Authorization")
            if !strings.HasPrefix(auth, "Bearer ") {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
            }
            raw := strings.TrimPrefix(auth, "Bearer ")

            snap, err := utils.ParseAccessToken(secret, raw)
            if err != nil {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
            }

            c.Set(CtxUserID, snap.ID)
            c.Set(CtxRoleID, snap.RoleID)
            c.Set(CtxSnapshot, snap)
            return next(c)
        }
    }
}
