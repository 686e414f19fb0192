package handler

import (
    "context"
    "database/sql"
    "net/http"
    "strings"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/device-fleet/internal/access"
    "github.com/iliyamo/device-fleet/internal/config"
    "github.com/iliyamo/device-fleet/internal/database"
    "github.com/iliyamo/device-fleet/internal/model"
    "github.com/iliyamo/device-fleet/internal/repository"
    "github.com/iliyamo/device-fleet/internal/utils"
)

// UserHandler serves user administration plus the per-user listing
// endpoints.  Creation, deletion, role changes and the full listing
// are admin-only; a user may always read and partially update their
// own account.
type UserHandler struct {
    Cfg      config.Config
    DB       *sql.DB
    Users    *repository.UserRepo
    Entities *repository.EntityRepo
    Tokens   *repository.TokenRepo
    Tenants  *repository.TenantRepo
    Folders  *repository.FolderRepo
    Devices  *repository.DeviceRepo
    Eval     *access.Evaluator
}

type userCreateReq struct {
    Username string `json:"username"`
    Password string `json:"password"`
    Role     string `json:"role"` // admin, owner or user; defaults to user
}

type userPatchReq struct {
    Username *string `json:"username,omitempty"`
    Password *string `json:"password,omitempty"`
    Disabled *bool   `json:"disabled,omitempty"`
}

type roleReq struct {
    Role string `json:"role"`
}

type userResp struct {
    ID       uint64 `json:"id"`
    Username string `json:"username"`
    Role     string `json:"role"`
    EntityID uint64 `json:"entity_id"`
    Disabled bool   `json:"disabled"`
}

func toUserResp(u model.User) userResp {
    return userResp{
        ID:       u.ID,
        Username: u.Username,
        Role:     model.RoleName(u.RoleID),
        EntityID: u.EntityID,
        Disabled: u.Disabled,
    }
}

// Create provisions a user account with an explicit role (admin
// only).  The username is stored lowercase and must be unique.
func (h *UserHandler) Create(c echo.Context) error {
    caller, err := principal(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    if err := h.Eval.RequireAdmin(caller); err != nil {
        return respondErr(c, err)
    }
    var req userCreateReq
    if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Username) == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "username required"})
    }
    if err := utils.ValidatePassword(req.Password); err != nil {
        return respondErr(c, err)
    }
    roleID := model.RoleUser
    if req.Role != "" {
        id, ok := model.RoleByName(req.Role)
        if !ok {
            return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown role"})
        }
        roleID = id
    }
    hash, err := utils.HashPassword(req.Password, h.Cfg.BcryptCost)
    if err != nil {
        return respondErr(c, err)
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    u := model.User{
        Username: strings.ToLower(strings.TrimSpace(req.Username)),
        RoleID:   roleID,
    }
    err = database.WithTx(ctx, h.DB, func(tx *sql.Tx) error {
        entityID, err := h.Entities.CreateTx(ctx, tx)
        if err != nil {
            return err
        }
        u.EntityID = entityID
        u.ID, err = h.Users.CreateTx(ctx, tx, u.Username, hash, roleID, entityID)
        return err
    })
    if err != nil {
        return respondErr(c, err)
    }
    return c.JSON(http.StatusCreated, toUserResp(u))
}

// List returns every user account (admin only).
func (h *UserHandler) List(c echo.Context) error {
    caller, err := principal(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    if err := h.Eval.RequireAdmin(caller); err != nil {
        return respondErr(c, err)
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    users, err := h.Users.List(ctx)
    if err != nil {
        return respondErr(c, err)
    }
    out := make([]userResp, 0, len(users))
    for _, u := range users {
        out = append(out, toUserResp(u))
    }
    return c.JSON(http.StatusOK, out)
}

// Get returns one user.  Admins can read anyone; everyone else only
// themselves.
func (h *UserHandler) Get(c echo.Context) error {
    _, id, ok := h.selfOrAdmin(c)
    if !ok {
        return nil
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    u, err := h.Users.GetByID(ctx, id)
    if err != nil {
        return respondErr(c, err)
    }
    return c.JSON(http.StatusOK, toUserResp(u))
}

// Update patches a user account.  Username and password may be
// changed by the account owner or an admin; the disabled flag only by
// an admin.
func (h *UserHandler) Update(c echo.Context) error {
    caller, id, ok := h.selfOrAdmin(c)
    if !ok {
        return nil
    }
    var req userPatchReq
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
    }
    if req.Disabled != nil && !h.Eval.IsAdmin(caller) {
        return respondErr(c, repository.ErrPermissionDenied)
    }
    patch := repository.UserPatch{Disabled: req.Disabled}
    if req.Username != nil {
        name := strings.ToLower(strings.TrimSpace(*req.Username))
        if name == "" {
            return c.JSON(http.StatusBadRequest, echo.Map{"error": "username must not be empty"})
        }
        patch.Username = &name
    }
    if req.Password != nil {
        if err := utils.ValidatePassword(*req.Password); err != nil {
            return respondErr(c, err)
        }
        hash, err := utils.HashPassword(*req.Password, h.Cfg.BcryptCost)
        if err != nil {
            return respondErr(c, err)
        }
        patch.HashedPassword = &hash
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    u, err := h.Users.Update(ctx, id, patch)
    if err != nil {
        return respondErr(c, err)
    }
    if req.Disabled != nil && *req.Disabled {
        // Disabling kills every active session, not just future logins.
        if err := h.Tokens.RevokeAllForUser(ctx, id); err != nil {
            return respondErr(c, err)
        }
    }
    return c.JSON(http.StatusOK, toUserResp(u))
}

// AssignRole changes a user's role (admin only).
func (h *UserHandler) AssignRole(c echo.Context) error {
    caller, err := principal(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    if err := h.Eval.RequireAdmin(caller); err != nil {
        return respondErr(c, err)
    }
    id, ok := pathID(c, "id")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id"})
    }
    var req roleReq
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
    }
    roleID, found := model.RoleByName(req.Role)
    if !found {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown role"})
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    if _, err := h.Users.GetByID(ctx, id); err != nil {
        return respondErr(c, err)
    }
    if err := h.Users.AssignRole(ctx, id, roleID); err != nil {
        return respondErr(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"id": id, "role": model.RoleName(roleID)})
}

// Delete removes a user account together with its memberships,
// refresh tokens and entity (admin only).
func (h *UserHandler) Delete(c echo.Context) error {
    caller, err := principal(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    if err := h.Eval.RequireAdmin(caller); err != nil {
        return respondErr(c, err)
    }
    id, ok := pathID(c, "id")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id"})
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    u, err := h.Users.GetByID(ctx, id)
    if err != nil {
        return respondErr(c, err)
    }
    err = database.WithTx(ctx, h.DB, func(tx *sql.Tx) error {
        return h.Users.DeleteTx(ctx, tx, u)
    })
    if err != nil {
        return respondErr(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"id": id})
}

// ListTenants returns the tenants a user belongs to.
func (h *UserHandler) ListTenants(c echo.Context) error {
    _, id, ok := h.selfOrAdmin(c)
    if !ok {
        return nil
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    tenants, err := h.Tenants.ListForUser(ctx, id)
    if err != nil {
        return respondErr(c, err)
    }
    out := make([]tenantResp, 0, len(tenants))
    for _, t := range tenants {
        out = append(out, toTenantResp(t))
    }
    return c.JSON(http.StatusOK, out)
}

// ListFolders returns the root folders visible to a user.
func (h *UserHandler) ListFolders(c echo.Context) error {
    _, id, ok := h.selfOrAdmin(c)
    if !ok {
        return nil
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    u, err := h.Users.GetByID(ctx, id)
    if err != nil {
        return respondErr(c, err)
    }
    folders, err := h.Folders.ListVisibleRoots(ctx, u)
    if err != nil {
        return respondErr(c, err)
    }
    return c.JSON(http.StatusOK, toFolderResps(folders))
}

// ListDevices returns the devices visible to a user.
func (h *UserHandler) ListDevices(c echo.Context) error {
    _, id, ok := h.selfOrAdmin(c)
    if !ok {
        return nil
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    u, err := h.Users.GetByID(ctx, id)
    if err != nil {
        return respondErr(c, err)
    }
    devices, err := h.Devices.ListVisibleForUser(ctx, u)
    if err != nil {
        return respondErr(c, err)
    }
    return c.JSON(http.StatusOK, toDeviceResps(devices))
}

// selfOrAdmin resolves the :id path parameter and verifies the caller
// is either that user or an admin.  On failure the response is
// already written and ok is false.
func (h *UserHandler) selfOrAdmin(c echo.Context) (model.User, uint64, bool) {
    caller, err := principal(c)
    if err != nil {
        _ = c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
        return model.User{}, 0, false
    }
    id, ok := pathID(c, "id")
    if !ok {
        _ = c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id"})
        return model.User{}, 0, false
    }
    if caller.ID != id && !h.Eval.IsAdmin(caller) {
        _ = respondErr(c, repository.ErrPermissionDenied)
        return model.User{}, 0, false
    }
    return caller, id, true
}
