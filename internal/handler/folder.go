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

// folderStore is the slice of the folder repository this handler
// uses.  Satisfied by *repository.FolderRepo.
type folderStore interface {
    CreateTx(ctx context.Context, tx repository.DBTX, name string, tenantID uint64, parentID *uint64) (model.Folder, error)
    GetByID(ctx context.Context, id uint64) (model.Folder, error)
    ListVisibleRoots(ctx context.Context, user model.User) ([]model.Folder, error)
    ListChildren(ctx context.Context, id uint64) ([]model.Folder, error)
    ListDescendants(ctx context.Context, id uint64) ([]model.Folder, error)
    Rename(ctx context.Context, id uint64, name string) (model.Folder, error)
    DeleteTx(ctx context.Context, tx repository.DBTX, id uint64) (uint64, error)
}

// FolderHandler serves the folder tree.  Every tenant owns exactly one
// root folder named "/" and an arbitrary forest of named subfolders
// beneath it; each folder carries an auto-generated tag so devices can
// be grouped by location.
type FolderHandler struct {
    DB      *sql.DB
    Folders folderStore
    Devices *repository.DeviceRepo
    Eval    *access.Evaluator
}

type folderCreateReq struct {
    Name     string  `json:"name"`
    TenantID uint64  `json:"tenant_id"`
    ParentID *uint64 `json:"parent_id,omitempty"` // nil means the tenant root
}

type folderRenameReq struct {
    Name string `json:"name"`
}

type folderResp struct {
    ID       uint64  `json:"id"`
    Name     string  `json:"name"`
    TenantID uint64  `json:"tenant_id"`
    ParentID *uint64 `json:"parent_id,omitempty"`
    EntityID uint64  `json:"entity_id"`
}

func toFolderResp(f model.Folder) folderResp {
    return folderResp{ID: f.ID, Name: f.Name, TenantID: f.TenantID, ParentID: f.ParentID, EntityID: f.EntityID}
}

func toFolderResps(folders []model.Folder) []folderResp {
    out := make([]folderResp, 0, len(folders))
    for _, f := range folders {
        out = append(out, toFolderResp(f))
    }
    return out
}

// Create adds a subfolder under the given parent (or under the tenant
// root when parent_id is omitted).  Requires owner or admin role plus
// access to the target tenant.
func (h *FolderHandler) Create(c echo.Context) error {
    u, err := principal(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    var req folderCreateReq
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

    var created model.Folder
    err = database.WithTx(ctx, h.DB, func(tx *sql.Tx) error {
        created, err = h.Folders.CreateTx(ctx, tx, strings.TrimSpace(req.Name), req.TenantID, req.ParentID)
        return err
    })
    if err != nil {
        return respondErr(c, err)
    }
    return c.JSON(http.StatusCreated, toFolderResp(created))
}

// Roots lists the root folders the caller can see, one per accessible
// tenant.
func (h *FolderHandler) Roots(c echo.Context) error {
    u, err := principal(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    folders, err := h.Folders.ListVisibleRoots(ctx, u)
    if err != nil {
        return respondErr(c, err)
    }
    return c.JSON(http.StatusOK, toFolderResps(folders))
}

// Get returns one folder, provided the caller can access its tenant.
func (h *FolderHandler) Get(c echo.Context) error {
    u, err := principal(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    id, ok := pathID(c, "id")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid folder id"})
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    f, err := h.Folders.GetByID(ctx, id)
    if err != nil {
        return respondErr(c, err)
    }
    if err := h.Eval.RequireTenantAccess(ctx, u, f.TenantID); err != nil {
        return respondErr(c, err)
    }
    return c.JSON(http.StatusOK, toFolderResp(f))
}

// Children lists a folder's direct subfolders.
func (h *FolderHandler) Children(c echo.Context) error {
    f, ok := h.authorizedFolder(c)
    if !ok {
        return nil
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    children, err := h.Folders.ListChildren(ctx, f.ID)
    if err != nil {
        return respondErr(c, err)
    }
    return c.JSON(http.StatusOK, toFolderResps(children))
}

// Descendants lists the whole subtree below a folder, the folder
// itself excluded.
func (h *FolderHandler) Descendants(c echo.Context) error {
    f, ok := h.authorizedFolder(c)
    if !ok {
        return nil
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    subtree, err := h.Folders.ListDescendants(ctx, f.ID)
    if err != nil {
        return respondErr(c, err)
    }
    return c.JSON(http.StatusOK, toFolderResps(subtree))
}

// ListDevices lists the devices sitting directly in a folder.
func (h *FolderHandler) ListDevices(c echo.Context) error {
    f, ok := h.authorizedFolder(c)
    if !ok {
        return nil
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    devices, err := h.Devices.ListByFolder(ctx, f.ID)
    if err != nil {
        return respondErr(c, err)
    }
    return c.JSON(http.StatusOK, toDeviceResps(devices))
}

// Rename updates a folder's name.  The root folder cannot be renamed
// and the new name must stay unique within the tenant.
func (h *FolderHandler) Rename(c echo.Context) error {
    u, err := principal(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    id, ok := pathID(c, "id")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid folder id"})
    }
    var req folderRenameReq
    if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Name) == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "name required"})
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    f, err := h.Folders.GetByID(ctx, id)
    if err != nil {
        return respondErr(c, err)
    }
    if err := h.Eval.RequireAdminOrOwner(u); err != nil {
        return respondErr(c, err)
    }
    if err := h.Eval.RequireTenantAccess(ctx, u, f.TenantID); err != nil {
        return respondErr(c, err)
    }
    renamed, err := h.Folders.Rename(ctx, f.ID, strings.TrimSpace(req.Name))
    if err != nil {
        return respondErr(c, err)
    }
    return c.JSON(http.StatusOK, toFolderResp(renamed))
}

// Delete removes an empty folder together with its tag and entity.  A
// folder holding subfolders or devices is refused, as is the root.
func (h *FolderHandler) Delete(c echo.Context) error {
    u, err := principal(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    id, ok := pathID(c, "id")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid folder id"})
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    f, err := h.Folders.GetByID(ctx, id)
    if err != nil {
        return respondErr(c, err)
    }
    if err := h.Eval.RequireAdminOrOwner(u); err != nil {
        return respondErr(c, err)
    }
    if err := h.Eval.RequireTenantAccess(ctx, u, f.TenantID); err != nil {
        return respondErr(c, err)
    }
    if f.IsRoot() {
        return respondErr(c, repository.ErrRootFolder)
    }
    err = database.WithTx(ctx, h.DB, func(tx *sql.Tx) error {
        _, err := h.Folders.DeleteTx(ctx, tx, f.ID)
        return err
    })
    if err != nil {
        return respondErr(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"id": id})
}

// authorizedFolder resolves the :id path parameter and checks tenant
// access.  On failure the response is already written and ok is
// false.
func (h *FolderHandler) authorizedFolder(c echo.Context) (model.Folder, bool) {
    u, err := principal(c)
    if err != nil {
        _ = c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
        return model.Folder{}, false
    }
    id, ok := pathID(c, "id")
    if !ok {
        _ = c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid folder id"})
        return model.Folder{}, false
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    f, err := h.Folders.GetByID(ctx, id)
    if err != nil {
        _ = respondErr(c, err)
        return model.Folder{}, false
    }
    if err := h.Eval.RequireTenantAccess(ctx, u, f.TenantID); err != nil {
        _ = respondErr(c, err)
        return model.Folder{}, false
    }
    return f, true
}
