package handler // handler defines http handlers

import (
    "errors"
    "net/http"
    "strconv"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/device-fleet/internal/middleware"
    "github.com/iliyamo/device-fleet/internal/model"
    "github.com/iliyamo/device-fleet/internal/repository"
    "github.com/iliyamo/device-fleet/internal/utils"
)

// principal reconstructs the calling user from the snapshot JWTAuth
// stored in the context.  The snapshot carries everything the access
// evaluator needs (id, role, entity), so no database round trip is
// required to authorize a request.
func principal(c echo.Context) (model.User, error) {
    snap, ok := c.Get(middleware.CtxSnapshot).(utils.UserSnapshot)
    if !ok || snap.ID == 0 {
        return model.User{}, errors.New("missing principal in context")
    }
    return model.User{
        ID:       snap.ID,
        Username: snap.Username,
        RoleID:   snap.RoleID,
        EntityID: snap.EntityID,
    }, nil
}

// respondErr maps the core error taxonomy onto transport statuses.
// Every handler funnels failures through here so the mapping stays in
// one place: lookups 404, name conflicts and structural violations
// 409, authorization 403, authentication 401, weak passwords 422.
// Anything unrecognized is a 500 with a generic message so internal
// details never leak.
func respondErr(c echo.Context, err error) error {
    switch {
    case errors.Is(err, repository.ErrUserNotFound),
        errors.Is(err, repository.ErrTenantNotFound),
        errors.Is(err, repository.ErrFolderNotFound),
        errors.Is(err, repository.ErrDeviceNotFound),
        errors.Is(err, repository.ErrTagNotFound),
        errors.Is(err, repository.ErrEntityNotFound),
        errors.Is(err, repository.ErrParentNotFound):
        return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
    case errors.Is(err, repository.ErrUsernameTaken),
        errors.Is(err, repository.ErrTenantNameTaken),
        errors.Is(err, repository.ErrFolderNameTaken),
        errors.Is(err, repository.ErrTagNameTaken),
        errors.Is(err, repository.ErrDeviceNameTaken),
        errors.Is(err, repository.ErrFolderNotEmpty),
        errors.Is(err, repository.ErrRootFolder),
        errors.Is(err, repository.ErrTenantMismatch):
        return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
    case errors.Is(err, repository.ErrPermissionDenied):
        return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
    case errors.Is(err, repository.ErrInvalidCredentials),
        errors.Is(err, repository.ErrInvalidRefreshToken):
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": err.Error()})
    case errors.Is(err, repository.ErrInvalidPassword):
        return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": err.Error()})
    case errors.Is(err, repository.ErrUserTenantNotAssigned):
        return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
    default:
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
    }
}

// pathID parses a numeric path parameter, returning false when it is
// missing or not a positive integer.
func pathID(c echo.Context, name string) (uint64, bool) {
    id, err := strconv.ParseUint(c.Param(name), 10, 64)
    return id, err == nil && id != 0
}
