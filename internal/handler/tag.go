package handler

import (
    "context"
    "database/sql"
    "net/http"
    "strconv"
    "strings"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/device-fleet/internal/access"
    "github.com/iliyamo/device-fleet/internal/database"
    "github.com/iliyamo/device-fleet/internal/model"
    "github.com/iliyamo/device-fleet/internal/repository"
)

// TagHandler serves tag CRUD plus the attach/detach/replace endpoints
// that associate tags with entities.  All tag mutations require owner
// or admin rank within the tag's tenant; the filtered listing is open
// to any member of the tenant being queried.
type TagHandler struct {
    DB   *sql.DB
    Tags *repository.TagRepo
    Eval *access.Evaluator
}

type tagCreateReq struct {
    Name     string `json:"name"`
    TenantID uint64 `json:"tenant_id"`
}

type tagRenameReq struct {
    Name string `json:"name"`
}

type tagReplaceReq struct {
    TagIDs []uint64 `json:"tag_ids"`
}

// Create adds a tag scoped to a tenant.  The name must be unique
// within that tenant.
func (h *TagHandler) Create(c echo.Context) error {
    u, err := principal(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    var req tagCreateReq
    if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Name) == "" || req.TenantID == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "name and tenant_id required"})
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    if err := h.Eval.RequireAdminOrOwner(u); err != nil {
        return respondErr(c, err)
    }
    if err := h.Eval.RequireTenantAccess(ctx, u, req.TenantID); err != nil {
        return respondErr(c, err)
    }
    t, err := h.Tags.Create(ctx, strings.TrimSpace(req.Name), req.TenantID)
    if err != nil {
        return respondErr(c, err)
    }
    return c.JSON(http.StatusCreated, t)
}

// List returns tags matching the query filters: ?name= for a
// case-insensitive substring, ?entity_id= (repeatable, OR'd) to
// restrict to tags attached to any of the given entities, and
// ?tenant_id= to restrict to one tenant.  Non-admin callers must
// supply a tenant they belong to.
func (h *TagHandler) List(c echo.Context) error {
    u, err := principal(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    f := repository.TagFilter{Name: c.QueryParam("name")}
    if raw := c.QueryParam("tenant_id"); raw != "" {
        id, err := strconv.ParseUint(raw, 10, 64)
        if err != nil || id == 0 {
            return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid tenant_id"})
        }
        f.TenantID = id
    }
    for _, raw := range c.QueryParams()["entity_id"] {
        id, err := strconv.ParseUint(raw, 10, 64)
        if err != nil || id == 0 {
            return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid entity_id"})
        }
        f.EntityIDs = append(f.EntityIDs, id)
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    if f.TenantID != 0 {
        if err := h.Eval.RequireTenantAccess(ctx, u, f.TenantID); err != nil {
            return respondErr(c, err)
        }
    } else if err := h.Eval.RequireAdmin(u); err != nil {
        return respondErr(c, err)
    }
    tags, err := h.Tags.List(ctx, f)
    if err != nil {
        return respondErr(c, err)
    }
    return c.JSON(http.StatusOK, tags)
}

// Get returns one tag, provided the caller can access its tenant.
func (h *TagHandler) Get(c echo.Context) error {
    u, err := principal(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    id, ok := pathID(c, "id")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid tag id"})
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    t, err := h.Tags.GetByID(ctx, id)
    if err != nil {
        return respondErr(c, err)
    }
    if err := h.Eval.RequireTenantAccess(ctx, u, t.TenantID); err != nil {
        return respondErr(c, err)
    }
    return c.JSON(http.StatusOK, t)
}

// Rename updates a tag's name; its tenant is fixed at creation.
func (h *TagHandler) Rename(c echo.Context) error {
    u, err := principal(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    id, ok := pathID(c, "id")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid tag id"})
    }
    var req tagRenameReq
    if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Name) == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "name required"})
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    t, err := h.Tags.GetByID(ctx, id)
    if err != nil {
        return respondErr(c, err)
    }
    if err := h.Eval.RequireAdminOrOwner(u); err != nil {
        return respondErr(c, err)
    }
    if err := h.Eval.RequireTenantAccess(ctx, u, t.TenantID); err != nil {
        return respondErr(c, err)
    }
    renamed, err := h.Tags.Update(ctx, id, strings.TrimSpace(req.Name))
    if err != nil {
        return respondErr(c, err)
    }
    return c.JSON(http.StatusOK, renamed)
}

// Delete removes a tag and every association it has.  Tagged entities
// stay untouched.
func (h *TagHandler) Delete(c echo.Context) error {
    u, err := principal(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    id, ok := pathID(c, "id")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid tag id"})
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    t, err := h.Tags.GetByID(ctx, id)
    if err != nil {
        return respondErr(c, err)
    }
    if err := h.Eval.RequireAdminOrOwner(u); err != nil {
        return respondErr(c, err)
    }
    if err := h.Eval.RequireTenantAccess(ctx, u, t.TenantID); err != nil {
        return respondErr(c, err)
    }
    if err := h.Tags.Delete(ctx, id); err != nil {
        return respondErr(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"id": id})
}

// Attach associates a tag with an entity.  Idempotent; fails with a
// conflict when the entity's owner lives outside the tag's tenant.
func (h *TagHandler) Attach(c echo.Context) error {
    u, tag, entityID, ok := h.resolveAttachment(c)
    if !ok {
        return nil
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    if err := h.Eval.RequireAdminOrOwner(u); err != nil {
        return respondErr(c, err)
    }
    if err := h.Eval.RequireTenantAccess(ctx, u, tag.TenantID); err != nil {
        return respondErr(c, err)
    }
    err := database.WithTx(ctx, h.DB, func(tx *sql.Tx) error {
        return h.Tags.AttachTx(ctx, tx, entityID, tag)
    })
    if err != nil {
        return respondErr(c, err)
    }
    return c.NoContent(http.StatusNoContent)
}

// Detach removes a tag from an entity; detaching an absent tag is a
// no-op.
func (h *TagHandler) Detach(c echo.Context) error {
    u, tag, entityID, ok := h.resolveAttachment(c)
    if !ok {
        return nil
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    if err := h.Eval.RequireAdminOrOwner(u); err != nil {
        return respondErr(c, err)
    }
    if err := h.Eval.RequireTenantAccess(ctx, u, tag.TenantID); err != nil {
        return respondErr(c, err)
    }
    err := database.WithTx(ctx, h.DB, func(tx *sql.Tx) error {
        return h.Tags.DetachTx(ctx, tx, entityID, tag.ID)
    })
    if err != nil {
        return respondErr(c, err)
    }
    return c.NoContent(http.StatusNoContent)
}

// Replace swaps an entity's entire tag set for the ids in the body.
// All replacement tags must belong to the entity owner's tenant.
func (h *TagHandler) Replace(c echo.Context) error {
    u, err := principal(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    entityID, ok := pathID(c, "eid")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid entity id"})
    }
    var req tagReplaceReq
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    if err := h.Eval.RequireAdminOrOwner(u); err != nil {
        return respondErr(c, err)
    }
    if err := h.Eval.RequireEntityAccess(ctx, u, entityID); err != nil {
        return respondErr(c, err)
    }
    err = database.WithTx(ctx, h.DB, func(tx *sql.Tx) error {
        return h.Tags.ReplaceForEntityTx(ctx, tx, entityID, req.TagIDs)
    })
    if err != nil {
        return respondErr(c, err)
    }
    tags, err := h.Tags.ListForEntity(ctx, entityID)
    if err != nil {
        return respondErr(c, err)
    }
    return c.JSON(http.StatusOK, tags)
}

// ListForEntity returns the tags attached to an entity.  The caller
// must be able to reach the entity's owner tenant.
func (h *TagHandler) ListForEntity(c echo.Context) error {
    u, err := principal(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    entityID, ok := pathID(c, "eid")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid entity id"})
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    if err := h.Eval.RequireEntityAccess(ctx, u, entityID); err != nil {
        return respondErr(c, err)
    }
    tags, err := h.Tags.ListForEntity(ctx, entityID)
    if err != nil {
        return respondErr(c, err)
    }
    return c.JSON(http.StatusOK, tags)
}

// resolveAttachment parses the :eid and :tid path parameters and
// loads the tag.  On failure the response is already written and ok
// is false.
func (h *TagHandler) resolveAttachment(c echo.Context) (model.User, model.Tag, uint64, bool) {
    u, err := principal(c)
    if err != nil {
        _ = c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
        return model.User{}, model.Tag{}, 0, false
    }
    entityID, ok := pathID(c, "eid")
    if !ok {
        _ = c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid entity id"})
        return model.User{}, model.Tag{}, 0, false
    }
    tagID, ok := pathID(c, "tid")
    if !ok {
        _ = c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid tag id"})
        return model.User{}, model.Tag{}, 0, false
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    t, err := h.Tags.GetByID(ctx, tagID)
    if err != nil {
        _ = respondErr(c, err)
        return model.User{}, model.Tag{}, 0, false
    }
    return u, t, entityID, true
}
