package handler

import (
    "context"
    "database/sql"
    "net/http"
    "strings"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/device-fleet/internal/access"
    "github.com/iliyamo/device-fleet/internal/database"
    "github.com/iliyamo/device-fleet/internal/model"
    "github.com/iliyamo/device-fleet/internal/repository"
)

// TenantHandler serves tenant CRUD and membership management.  Tenant
// creation and deletion are admin-only; reads are scoped through the
// access evaluator so members see their own tenants and admins see
// everything.
type TenantHandler struct {
    DB       *sql.DB
    Tenants  *repository.TenantRepo
    Users    *repository.UserRepo
    Folders  *repository.FolderRepo
    Devices  *repository.DeviceRepo
    Tags     *repository.TagRepo
    Entities *repository.EntityRepo
    Eval     *access.Evaluator
}

type tenantReq struct {
    Name string `json:"name"`
}

type tenantResp struct {
    ID       uint64 `json:"id"`
    Name     string `json:"name"`
    EntityID uint64 `json:"entity_id"`
}

func toTenantResp(t model.Tenant) tenantResp {
    return tenantResp{ID: t.ID, Name: t.Name, EntityID: t.EntityID}
}

// Create registers a tenant and provisions its root folder in the
// same transaction, so a new tenant is immediately usable and carries
// its identifying root tag.
func (h *TenantHandler) Create(c echo.Context) error {
    u, err := principal(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    if err := h.Eval.RequireAdmin(u); err != nil {
        return respondErr(c, err)
    }
    var req tenantReq
    if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Name) == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "name required"})
    }
    name := strings.TrimSpace(req.Name)

    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    var created model.Tenant
    err = database.WithTx(ctx, h.DB, func(tx *sql.Tx) error {
        entityID, err := h.Entities.CreateTx(ctx, tx)
        if err != nil {
            return err
        }
        created, err = h.Tenants.CreateTx(ctx, tx, name, entityID)
        if err != nil {
            return err
        }
        _, err = h.Folders.GetOrCreateRootTx(ctx, tx, created.ID)
        return err
    })
    if err != nil {
        return respondErr(c, err)
    }
    return c.JSON(http.StatusCreated, toTenantResp(created))
}

// List returns every tenant for admins and the member tenants for
// everyone else.
func (h *TenantHandler) List(c echo.Context) error {
    u, err := principal(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    var tenants []model.Tenant
    if h.Eval.IsAdmin(u) {
        tenants, err = h.Tenants.List(ctx)
    } else {
        tenants, err = h.Tenants.ListForUser(ctx, u.ID)
    }
    if err != nil {
        return respondErr(c, err)
    }
    out := make([]tenantResp, 0, len(tenants))
    for _, t := range tenants {
        out = append(out, toTenantResp(t))
    }
    return c.JSON(http.StatusOK, out)
}

// Get returns one tenant, provided the caller has access to it.
func (h *TenantHandler) Get(c echo.Context) error {
    u, err := principal(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    id, ok := pathID(c, "id")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid tenant id"})
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    t, err := h.Tenants.GetByID(ctx, id)
    if err != nil {
        return respondErr(c, err)
    }
    if err := h.Eval.RequireTenantAccess(ctx, u, id); err != nil {
        return respondErr(c, err)
    }
    return c.JSON(http.StatusOK, toTenantResp(t))
}

// Update renames a tenant (admin only); the new name must stay
// globally unique.
func (h *TenantHandler) Update(c echo.Context) error {
    u, err := principal(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    if err := h.Eval.RequireAdmin(u); err != nil {
        return respondErr(c, err)
    }
    id, ok := pathID(c, "id")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid tenant id"})
    }
    var req tenantReq
    if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Name) == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "name required"})
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    t, err := h.Tenants.Update(ctx, id, strings.TrimSpace(req.Name))
    if err != nil {
        return respondErr(c, err)
    }
    return c.JSON(http.StatusOK, toTenantResp(t))
}

// Delete removes a tenant (admin only).  Folders and devices under it
// go with it via foreign-key cascade; memberships and the tenant's
// entity are cleaned up in the same transaction.
func (h *TenantHandler) Delete(c echo.Context) error {
    u, err := principal(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    if err := h.Eval.RequireAdmin(u); err != nil {
        return respondErr(c, err)
    }
    id, ok := pathID(c, "id")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid tenant id"})
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    t, err := h.Tenants.GetByID(ctx, id)
    if err != nil {
        return respondErr(c, err)
    }
    err = database.WithTx(ctx, h.DB, func(tx *sql.Tx) error {
        return h.Tenants.DeleteTx(ctx, tx, t)
    })
    if err != nil {
        return respondErr(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"id": id})
}

// AddUser records a tenant membership (admin only).  Both sides must
// exist; adding an existing membership is a no-op.
func (h *TenantHandler) AddUser(c echo.Context) error {
    u, err := principal(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    if err := h.Eval.RequireAdmin(u); err != nil {
        return respondErr(c, err)
    }
    tenantID, ok := pathID(c, "id")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid tenant id"})
    }
    userID, ok := pathID(c, "uid")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id"})
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    if _, err := h.Tenants.GetByID(ctx, tenantID); err != nil {
        return respondErr(c, err)
    }
    if _, err := h.Users.GetByID(ctx, userID); err != nil {
        return respondErr(c, err)
    }
    if err := h.Tenants.AddUser(ctx, tenantID, userID); err != nil {
        return respondErr(c, err)
    }
    return c.NoContent(http.StatusNoContent)
}

// RemoveUser drops a tenant membership (admin only).
func (h *TenantHandler) RemoveUser(c echo.Context) error {
    u, err := principal(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    if err := h.Eval.RequireAdmin(u); err != nil {
        return respondErr(c, err)
    }
    tenantID, ok := pathID(c, "id")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid tenant id"})
    }
    userID, ok := pathID(c, "uid")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id"})
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    if err := h.Tenants.RemoveUser(ctx, tenantID, userID); err != nil {
        return respondErr(c, err)
    }
    return c.NoContent(http.StatusNoContent)
}

// ListTags lists a tenant's tags, optionally filtered by a name
// substring via ?name=.
func (h *TenantHandler) ListTags(c echo.Context) error {
    u, err := principal(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    tenantID, ok := pathID(c, "id")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid tenant id"})
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    if _, err := h.Tenants.GetByID(ctx, tenantID); err != nil {
        return respondErr(c, err)
    }
    if err := h.Eval.RequireTenantAccess(ctx, u, tenantID); err != nil {
        return respondErr(c, err)
    }
    tags, err := h.Tags.List(ctx, repository.TagFilter{TenantID: tenantID, Name: c.QueryParam("name")})
    if err != nil {
        return respondErr(c, err)
    }
    return c.JSON(http.StatusOK, tags)
}

// ListDevices lists every device under the tenant's folders.
func (h *TenantHandler) ListDevices(c echo.Context) error {
    u, err := principal(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    tenantID, ok := pathID(c, "id")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid tenant id"})
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    if err := h.Eval.RequireTenantAccess(ctx, u, tenantID); err != nil {
        return respondErr(c, err)
    }
    devices, err := h.Devices.ListByTenant(ctx, tenantID)
    if err != nil {
        return respondErr(c, err)
    }
    return c.JSON(http.StatusOK, toDeviceResps(devices))
}

// ListFolders lists every folder of a tenant, the root included.
func (h *TenantHandler) ListFolders(c echo.Context) error {
    u, err := principal(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    tenantID, ok := pathID(c, "id")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid tenant id"})
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    if err := h.Eval.RequireTenantAccess(ctx, u, tenantID); err != nil {
        return respondErr(c, err)
    }
    folders, err := h.Folders.ListByTenant(ctx, tenantID)
    if err != nil {
        return respondErr(c, err)
    }
    return c.JSON(http.StatusOK, toFolderResps(folders))
}
