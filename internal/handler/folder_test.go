package handler

import (
    "context"
    "net/http"
    "net/http/httptest"
    "testing"

    "github.com/labstack/echo/v4"
    "github.com/stretchr/testify/assert"

    "github.com/iliyamo/device-fleet/internal/access"
    "github.com/iliyamo/device-fleet/internal/middleware"
    "github.com/iliyamo/device-fleet/internal/model"
    "github.com/iliyamo/device-fleet/internal/repository"
    "github.com/iliyamo/device-fleet/internal/utils"
)

// memFolders serves GetByID from a static map.  The write methods
// record whether they were reached; the delete tests must bounce
// before any of them run.
type memFolders struct {
    folders map[uint64]model.Folder
    deletes int
}

func (m *memFolders) GetByID(_ context.Context, id uint64) (model.Folder, error) {
    f, ok := m.folders[id]
    if !ok {
        return model.Folder{}, repository.ErrFolderNotFound
    }
    return f, nil
}

func (m *memFolders) DeleteTx(_ context.Context, _ repository.DBTX, id uint64) (uint64, error) {
    m.deletes++
    return id, nil
}

func (m *memFolders) CreateTx(_ context.Context, _ repository.DBTX, _ string, _ uint64, _ *uint64) (model.Folder, error) {
    return model.Folder{}, nil
}

func (m *memFolders) ListVisibleRoots(_ context.Context, _ model.User) ([]model.Folder, error) {
    return nil, nil
}

func (m *memFolders) ListChildren(_ context.Context, _ uint64) ([]model.Folder, error) {
    return nil, nil
}

func (m *memFolders) ListDescendants(_ context.Context, _ uint64) ([]model.Folder, error) {
    return nil, nil
}

func (m *memFolders) Rename(_ context.Context, _ uint64, _ string) (model.Folder, error) {
    return model.Folder{}, nil
}

func newFolderTestHandler() (*FolderHandler, *memFolders) {
    sub := uint64(1)
    store := &memFolders{folders: map[uint64]model.Folder{
        1: {ID: 1, Name: model.RootFolderName, TenantID: 10, EntityID: 40},
        2: {ID: 2, Name: "lab", TenantID: 10, ParentID: &sub, EntityID: 41},
    }}
    eval := access.NewEvaluator(
        &staticMemberships{members: map[uint64][]uint64{10: {100}}},
        staticDevices{},
        &staticEntities{},
    )
    return &FolderHandler{Folders: store, Eval: eval}, store
}

func invokeFolderDelete(h *FolderHandler, u model.User, folderID string) *httptest.ResponseRecorder {
    e := echo.New()
    req := httptest.NewRequest(http.MethodDelete, "/v1/folders/"+folderID, nil)
    rec := httptest.NewRecorder()
    c := e.NewContext(req, rec)
    c.SetPath("/v1/folders/:id")
    c.SetParamNames("id")
    c.SetParamValues(folderID)
    c.Set(middleware.CtxSnapshot, utils.UserSnapshot{ID: u.ID, Username: u.Username, RoleID: u.RoleID, EntityID: u.EntityID})
    _ = h.Delete(c)
    return rec
}

// The tenant root lives as long as the tenant: deleting it directly
// is refused for every caller, admins included.
func TestFolderDeleteRootRefused(t *testing.T) {
    h, store := newFolderTestHandler()
    admin := model.User{ID: 1, RoleID: model.RoleAdmin}

    rec := invokeFolderDelete(h, admin, "1")

    assert.Equal(t, http.StatusConflict, rec.Code)
    assert.Contains(t, rec.Body.String(), "root folder")
    assert.Zero(t, store.deletes)
}

func TestFolderDeleteUnknown(t *testing.T) {
    h, store := newFolderTestHandler()
    admin := model.User{ID: 1, RoleID: model.RoleAdmin}

    rec := invokeFolderDelete(h, admin, "999")

    assert.Equal(t, http.StatusNotFound, rec.Code)
    assert.Zero(t, store.deletes)
}

func TestFolderDeleteOutsiderForbidden(t *testing.T) {
    h, store := newFolderTestHandler()
    outsider := model.User{ID: 200, RoleID: model.RoleOwner}

    rec := invokeFolderDelete(h, outsider, "2")

    assert.Equal(t, http.StatusForbidden, rec.Code)
    assert.Zero(t, store.deletes)
}
