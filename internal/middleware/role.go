package middleware // middleware provides shared request processing for handlers

import (
    "net/http" // http package defines standard HTTP status codes

    "github.com/labstack/echo/v4" // echo provides middleware chaining and context

    "github.com/iliyamo/device-fleet/internal/model" // model defines the fixed role set
)

// RequireRole returns a middleware function that enforces that the
// authenticated user holds one of the specified roles.  Role names
// correspond to the fixed set in the roles table (admin, owner,
// user).  It assumes JWTAuth already stored the caller's role id in
// the context; a missing or unknown role aborts with 403.
func RequireRole(roles ...string) echo.MiddlewareFunc {
    // Resolve names to ids once, at registration time.
    allowed := make(map[uint8]bool, len(roles))
    for _, name := range roles {
        if id, ok := model.RoleByName(name); ok {
            allowed[id] = true
        }
    }
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            roleID, ok := c.Get(CtxRoleID).(uint8)
            if !ok || !allowed[roleID] {
                return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
            }
            return next(c)
        }
    }
}

// RequireAdmin is shorthand for RequireRole("admin").
func RequireAdmin() echo.MiddlewareFunc {
    return RequireRole("admin")
}
