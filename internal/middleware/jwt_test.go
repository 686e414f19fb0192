package middleware

import (
    "net/http"
    "net/http/httptest"
    "testing"

    "github.com/labstack/echo/v4"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/iliyamo/device-fleet/internal/model"
    "github.com/iliyamo/device-fleet/internal/utils"
)

func issueToken(t *testing.T, secret string, roleID uint8) string {
    t.Helper()
    tok, err := utils.NewAccessToken(secret, "HS256", utils.UserSnapshot{
        ID:       7,
        Username: "kara",
        RoleID:   roleID,
        EntityID: 31,
    }, 5)
    require.NoError(t, err)
    return tok.Token
}

// invoke runs the middleware chain against a request carrying the
// given Authorization header and returns the recorder.
func invoke(t *testing.T, header string, mw ...echo.MiddlewareFunc) *httptest.ResponseRecorder {
    t.Helper()
    e := echo.New()
    req := httptest.NewRequest(http.MethodGet, "/", nil)
    if header != "" {
        req.Header.Set("Authorization", header)
    }
    rec := httptest.NewRecorder()
    c := e.NewContext(req, rec)

    h := func(c echo.Context) error { return c.NoContent(http.StatusOK) }
    for i := len(mw) - 1; i >= 0; i-- {
        h = mw[i](h)
    }
    require.NoError(t, h(c))
    return rec
}

func TestJWTAuthAcceptsValidToken(t *testing.T) {
    e := echo.New()
    req := httptest.NewRequest(http.MethodGet, "/", nil)
    req.Header.Set("Authorization", "Bearer "+issueToken(t, "secret", model.RoleOwner))
    rec := httptest.NewRecorder()
    c := e.NewContext(req, rec)

    var snap utils.UserSnapshot
    h := JWTAuth("secret")(func(c echo.Context) error {
        snap = c.Get(CtxSnapshot).(utils.UserSnapshot)
        assert.Equal(t, uint64(7), c.Get(CtxUserID))
        assert.Equal(t, model.RoleOwner, c.Get(CtxRoleID))
        return c.NoContent(http.StatusOK)
    })
    require.NoError(t, h(c))

    assert.Equal(t, http.StatusOK, rec.Code)
    assert.Equal(t, "kara", snap.Username)
    assert.Equal(t, uint64(31), snap.EntityID)
}

func TestJWTAuthRejections(t *testing.T) {
    cases := map[string]string{
        "missing header": "",
        "not bearer":     "Basic abc",
        "garbage token":  "Bearer not-a-jwt",
        "wrong secret":   "Bearer " + issueToken(t, "other", model.RoleUser),
    }
    for name, header := range cases {
        rec := invoke(t, header, JWTAuth("secret"))
        assert.Equal(t, http.StatusUnauthorized, rec.Code, name)
    }
}

func TestRequireRole(t *testing.T) {
    secret := "secret"

    rec := invoke(t, "Bearer "+issueToken(t, secret, model.RoleAdmin),
        JWTAuth(secret), RequireRole("admin"))
    assert.Equal(t, http.StatusOK, rec.Code)

    rec = invoke(t, "Bearer "+issueToken(t, secret, model.RoleUser),
        JWTAuth(secret), RequireRole("admin", "owner"))
    assert.Equal(t, http.StatusForbidden, rec.Code)

    rec = invoke(t, "Bearer "+issueToken(t, secret, model.RoleOwner),
        JWTAuth(secret), RequireRole("admin", "owner"))
    assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireRoleWithoutJWTAuth(t *testing.T) {
    // role check without a preceding JWTAuth sees no role in context
    rec := invoke(t, "", RequireAdmin())
    assert.Equal(t, http.StatusForbidden, rec.Code)
}
