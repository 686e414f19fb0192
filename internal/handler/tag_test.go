package handler

import (
    "context"
    "net/http"
    "net/http/httptest"
    "strings"
    "testing"

    "github.com/labstack/echo/v4"
    "github.com/stretchr/testify/assert"

    "github.com/iliyamo/device-fleet/internal/access"
    "github.com/iliyamo/device-fleet/internal/middleware"
    "github.com/iliyamo/device-fleet/internal/model"
    "github.com/iliyamo/device-fleet/internal/repository"
    "github.com/iliyamo/device-fleet/internal/utils"
)

// staticMemberships answers membership checks from a static map of
// tenant id -> member user ids.
type staticMemberships struct {
    members map[uint64][]uint64
}

func (s *staticMemberships) HasMember(_ context.Context, tenantID, userID uint64) (bool, error) {
    for _, id := range s.members[tenantID] {
        if id == userID {
            return true, nil
        }
    }
    return false, nil
}

// staticEntities resolves entity owners from a static map; unknown
// ids fail like the SQL repo does.
type staticEntities struct {
    owners map[uint64][]uint64
}

func (s *staticEntities) OwnerTenants(_ context.Context, entityID uint64) ([]uint64, error) {
    tenants, ok := s.owners[entityID]
    if !ok {
        return nil, repository.ErrEntityNotFound
    }
    return tenants, nil
}

type staticDevices struct{}

func (staticDevices) ResolveTenant(_ context.Context, _ uint64) (uint64, error) {
    return 0, repository.ErrDeviceNotFound
}

// newTagTestHandler builds a TagHandler whose evaluator runs on
// static fixtures.  DB and Tags stay nil on purpose: any request that
// reaches storage panics, so a clean status proves the access gates
// fired first.
func newTagTestHandler() *TagHandler {
    eval := access.NewEvaluator(
        &staticMemberships{members: map[uint64][]uint64{10: {100}}},
        staticDevices{},
        &staticEntities{owners: map[uint64][]uint64{5: {10}}},
    )
    return &TagHandler{Eval: eval}
}

func invokeEntityTags(h func(echo.Context) error, method, body string, u model.User, entityID string) *httptest.ResponseRecorder {
    e := echo.New()
    req := httptest.NewRequest(method, "/v1/entities/"+entityID+"/tags", strings.NewReader(body))
    if body != "" {
        req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
    }
    rec := httptest.NewRecorder()
    c := e.NewContext(req, rec)
    c.SetPath("/v1/entities/:eid/tags")
    c.SetParamNames("eid")
    c.SetParamValues(entityID)
    c.Set(middleware.CtxSnapshot, utils.UserSnapshot{ID: u.ID, Username: u.Username, RoleID: u.RoleID, EntityID: u.EntityID})
    _ = h(c)
    return rec
}

// Owner rank alone must not open another tenant's entity: the replace
// endpoint has to deny the caller before any storage is touched.
func TestTagReplaceForeignTenantForbidden(t *testing.T) {
    h := newTagTestHandler()
    foreignOwner := model.User{ID: 200, Username: "mara", RoleID: model.RoleOwner}

    rec := invokeEntityTags(h.Replace, http.MethodPut, `{"tag_ids":[1,2]}`, foreignOwner, "5")

    assert.Equal(t, http.StatusForbidden, rec.Code)
    assert.Contains(t, rec.Body.String(), "forbidden")
}

func TestTagReplaceUnknownEntity(t *testing.T) {
    h := newTagTestHandler()
    admin := model.User{ID: 1, RoleID: model.RoleAdmin}

    rec := invokeEntityTags(h.Replace, http.MethodPut, `{"tag_ids":[]}`, admin, "999")

    assert.Equal(t, http.StatusNotFound, rec.Code)
}

// Reads are scoped the same way as writes: a member of one tenant
// cannot enumerate the tags of an entity owned elsewhere.
func TestTagListForEntityForeignTenantForbidden(t *testing.T) {
    h := newTagTestHandler()
    foreignUser := model.User{ID: 300, Username: "nils", RoleID: model.RoleUser}

    rec := invokeEntityTags(h.ListForEntity, http.MethodGet, "", foreignUser, "5")

    assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestTagListForEntityUnknownEntity(t *testing.T) {
    h := newTagTestHandler()
    member := model.User{ID: 100, RoleID: model.RoleUser}

    rec := invokeEntityTags(h.ListForEntity, http.MethodGet, "", member, "999")

    assert.Equal(t, http.StatusNotFound, rec.Code)
}
