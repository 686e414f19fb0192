package handler

import (
    "context"      // provides context with cancellation for DB calls
    "database/sql" // transaction scope for register
    "net/http"     // HTTP status codes and primitives
    "strings"      // string manipulation utilities
    "time"         // timeouts for DB calls and token expiries

    "github.com/labstack/echo/v4" // Echo framework for HTTP routing

    "github.com/iliyamo/device-fleet/internal/auth"       // token-session service and cookies
    "github.com/iliyamo/device-fleet/internal/config"     // app configuration
    "github.com/iliyamo/device-fleet/internal/database"   // transaction helper
    "github.com/iliyamo/device-fleet/internal/middleware" // context keys
    "github.com/iliyamo/device-fleet/internal/model"      // role constants
    "github.com/iliyamo/device-fleet/internal/repository" // DB repositories
    "github.com/iliyamo/device-fleet/internal/utils"      // hashing and validation helpers
)

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
    Cfg      config.Config
    DB       *sql.DB
    Users    *repository.UserRepo
    Entities *repository.EntityRepo
    Session  *auth.Service
}

func NewAuthHandler(cfg config.Config, db *sql.DB, u *repository.UserRepo, e *repository.EntityRepo, s *auth.Service) *AuthHandler {
    return &AuthHandler{Cfg: cfg, DB: db, Users: u, Entities: e, Session: s}
}

// ----- DTOs -----

type registerReq struct {
    Username string `json:"username"`
    Password string `json:"password"`
}
type loginReq struct {
    Username string `json:"username"`
    Password string `json:"password"`
}
type refreshReq struct {
    RefreshToken string `json:"refresh_token"`
}

type tokenPart struct {
    Token   string    `json:"token"`
    Expires time.Time `json:"expires"`
}
type userPart struct {
    ID       uint64 `json:"id"`
    Username string `json:"username"`
    Role     string `json:"role"`
    EntityID uint64 `json:"entity_id"`
}
type authResp struct {
    User   userPart  `json:"user"`
    Access tokenPart `json:"access"`
}

func (h *AuthHandler) cookieSettings() auth.CookieSettings {
    return auth.CookieSettings{Domain: h.Cfg.CookieDomain, Secure: h.Cfg.SecureCookies}
}

// Register: create a user with the default role.  The entity row and
// the user row are inserted in one transaction so a failed insert
// never leaves an orphaned entity behind.
func (h *AuthHandler) Register(c echo.Context) error {
    var req registerReq
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
    }
    req.Username = strings.ToLower(strings.TrimSpace(req.Username))
    if req.Username == "" || !strings.Contains(req.Username, "@") {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "username must be an email address"})
    }
    if err := utils.ValidatePassword(req.Password); err != nil {
        return respondErr(c, err)
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    hash, err := utils.HashPassword(req.Password, h.Cfg.BcryptCost)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create user failed"})
    }

    var uid uint64
    err = database.WithTx(ctx, h.DB, func(tx *sql.Tx) error {
        entityID, err := h.Entities.CreateTx(ctx, tx)
        if err != nil {
            return err
        }
        uid, err = h.Users.CreateTx(ctx, tx, req.Username, hash, model.RoleUser, entityID)
        return err
    })
    if err != nil {
        if err == repository.ErrUsernameTaken {
            return respondErr(c, err)
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create user failed"})
    }

    return c.JSON(http.StatusCreated, echo.Map{
        "id":       uid,
        "username": req.Username,
        "role":     model.RoleName(model.RoleUser),
    })
}

// Login: verify credentials, start a refresh chain and set the
// refresh cookie.  The raw refresh value travels only in the cookie;
// the body carries the access token and user profile.
func (h *AuthHandler) Login(c echo.Context) error {
    var req loginReq
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
    }
    if strings.TrimSpace(req.Username) == "" || req.Password == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "username/password required"})
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    pair, err := h.Session.Login(ctx, req.Username, req.Password)
    if err != nil {
        return respondErr(c, err)
    }

    c.SetCookie(auth.RefreshCookie(h.cookieSettings(), pair.Refresh.Raw, pair.Refresh.Exp))
    return c.JSON(http.StatusOK, authResp{
        User: userPart{
            ID:       pair.User.ID,
            Username: pair.User.Username,
            Role:     model.RoleName(pair.User.RoleID),
            EntityID: pair.User.EntityID,
        },
        Access: tokenPart{Token: pair.Access.Token, Expires: pair.Access.Exp},
    })
}

// presentedRefresh extracts the refresh token from the cookie or,
// failing that, from the request body.  Browser clients rely on the
// cookie; non-browser clients may post the value instead.
func presentedRefresh(c echo.Context) string {
    if ck, err := c.Cookie(auth.RefreshCookieName); err == nil && ck.Value != "" {
        return ck.Value
    }
    var req refreshReq
    _ = c.Bind(&req)
    return strings.TrimSpace(req.RefreshToken)
}

// Refresh: rotate the presented refresh token.  The old value becomes
// permanently unusable; the cookie is replaced with the successor.
func (h *AuthHandler) Refresh(c echo.Context) error {
    raw := presentedRefresh(c)
    if raw == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "refresh_token required"})
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    pair, err := h.Session.Rotate(ctx, raw)
    if err != nil {
        return respondErr(c, err)
    }

    c.SetCookie(auth.RefreshCookie(h.cookieSettings(), pair.Refresh.Raw, pair.Refresh.Exp))
    return c.JSON(http.StatusOK, authResp{
        User: userPart{
            ID:       pair.User.ID,
            Username: pair.User.Username,
            Role:     model.RoleName(pair.User.RoleID),
            EntityID: pair.User.EntityID,
        },
        Access: tokenPart{Token: pair.Access.Token, Expires: pair.Access.Exp},
    })
}

// Logout: revoke the presented token's session chain and clear the
// cookie.  Logging out an already-dead session still clears the
// cookie and reports success.
func (h *AuthHandler) Logout(c echo.Context) error {
    raw := presentedRefresh(c)
    if raw == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "refresh_token required"})
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    if err := h.Session.Logout(ctx, raw); err != nil {
        return respondErr(c, err)
    }
    c.SetCookie(auth.ClearRefreshCookie(h.cookieSettings()))
    return c.NoContent(http.StatusNoContent)
}

// Me: simple protected endpoint returning the caller's identity as
// embedded in the access token.
func (h *AuthHandler) Me(c echo.Context) error {
    snap, _ := c.Get(middleware.CtxSnapshot).(utils.UserSnapshot)
    return c.JSON(http.StatusOK, userPart{
        ID:       snap.ID,
        Username: snap.Username,
        Role:     model.RoleName(snap.RoleID),
        EntityID: snap.EntityID,
    })
}
