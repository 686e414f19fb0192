package handler

import (
    "errors"
    "net/http"
    "net/http/httptest"
    "testing"

    "github.com/labstack/echo/v4"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/iliyamo/device-fleet/internal/middleware"
    "github.com/iliyamo/device-fleet/internal/model"
    "github.com/iliyamo/device-fleet/internal/repository"
    "github.com/iliyamo/device-fleet/internal/utils"
)

func newTestContext() (echo.Context, *httptest.ResponseRecorder) {
    e := echo.New()
    req := httptest.NewRequest(http.MethodGet, "/", nil)
    rec := httptest.NewRecorder()
    return e.NewContext(req, rec), rec
}

func TestPrincipal(t *testing.T) {
    c, _ := newTestContext()
    c.Set(middleware.CtxSnapshot, utils.UserSnapshot{ID: 7, Username: "kara", RoleID: model.RoleOwner, EntityID: 31})

    u, err := principal(c)
    require.NoError(t, err)
    assert.Equal(t, uint64(7), u.ID)
    assert.Equal(t, "kara", u.Username)
    assert.Equal(t, model.RoleOwner, u.RoleID)
    assert.Equal(t, uint64(31), u.EntityID)
}

func TestPrincipalMissing(t *testing.T) {
    c, _ := newTestContext()
    _, err := principal(c)
    assert.Error(t, err)
}

func TestRespondErrStatusMapping(t *testing.T) {
    cases := []struct {
        err  error
        code int
    }{
        {repository.ErrUserNotFound, http.StatusNotFound},
        {repository.ErrTenantNotFound, http.StatusNotFound},
        {repository.ErrFolderNotFound, http.StatusNotFound},
        {repository.ErrDeviceNotFound, http.StatusNotFound},
        {repository.ErrTagNotFound, http.StatusNotFound},
        {repository.ErrParentNotFound, http.StatusNotFound},
        {repository.ErrEntityNotFound, http.StatusNotFound},
        {repository.ErrUsernameTaken, http.StatusConflict},
        {repository.ErrTenantNameTaken, http.StatusConflict},
        {repository.ErrFolderNameTaken, http.StatusConflict},
        {repository.ErrTagNameTaken, http.StatusConflict},
        {repository.ErrDeviceNameTaken, http.StatusConflict},
        {repository.ErrFolderNotEmpty, http.StatusConflict},
        {repository.ErrRootFolder, http.StatusConflict},
        {repository.ErrTenantMismatch, http.StatusConflict},
        {repository.ErrPermissionDenied, http.StatusForbidden},
        {repository.ErrInvalidCredentials, http.StatusUnauthorized},
        {repository.ErrInvalidRefreshToken, http.StatusUnauthorized},
        {repository.ErrInvalidPassword, http.StatusUnprocessableEntity},
        {repository.ErrUserTenantNotAssigned, http.StatusBadRequest},
        {errors.New("driver exploded"), http.StatusInternalServerError},
    }
    for _, tc := range cases {
        c, rec := newTestContext()
        require.NoError(t, respondErr(c, tc.err))
        assert.Equal(t, tc.code, rec.Code, tc.err.Error())
    }
}

func TestRespondErrHidesInternals(t *testing.T) {
    c, rec := newTestContext()
    require.NoError(t, respondErr(c, errors.New("dsn user:pass@tcp refused")))
    assert.Equal(t, http.StatusInternalServerError, rec.Code)
    assert.NotContains(t, rec.Body.String(), "pass")
    assert.Contains(t, rec.Body.String(), "internal error")
}

func TestPathID(t *testing.T) {
    c, _ := newTestContext()
    c.SetParamNames("id")
    c.SetParamValues("42")
    id, ok := pathID(c, "id")
    assert.True(t, ok)
    assert.Equal(t, uint64(42), id)

    for _, bad := range []string{"", "0", "-3", "abc", "4.5"} {
        c, _ := newTestContext()
        c.SetParamNames("id")
        c.SetParamValues(bad)
        _, ok := pathID(c, "id")
        assert.False(t, ok, bad)
    }
}
