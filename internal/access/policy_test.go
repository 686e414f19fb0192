package access

import (
    "context"
    "testing"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/iliyamo/device-fleet/internal/model"
    "github.com/iliyamo/device-fleet/internal/repository"
)

// fakeMemberships answers membership checks from a static map of
// tenant id -> member user ids.
type fakeMemberships struct {
    members map[uint64][]uint64
}

func (f *fakeMemberships) HasMember(_ context.Context, tenantID, userID uint64) (bool, error) {
    for _, id := range f.members[tenantID] {
        if id == userID {
            return true, nil
        }
    }
    return false, nil
}

// fakeDevices resolves devices from a static map of device id ->
// tenant id; unknown ids fail like the SQL repo does.
type fakeDevices struct {
    tenants map[uint64]uint64
}

func (f *fakeDevices) ResolveTenant(_ context.Context, deviceID uint64) (uint64, error) {
    tenantID, ok := f.tenants[deviceID]
    if !ok {
        return 0, repository.ErrDeviceNotFound
    }
    return tenantID, nil
}

// fakeEntities resolves entity owners from a static map of entity id
// -> owner tenant ids; unknown ids fail like the SQL repo does.
type fakeEntities struct {
    owners map[uint64][]uint64
}

func (f *fakeEntities) OwnerTenants(_ context.Context, entityID uint64) ([]uint64, error) {
    tenants, ok := f.owners[entityID]
    if !ok {
        return nil, repository.ErrEntityNotFound
    }
    return tenants, nil
}

func newTestEvaluator() *Evaluator {
    return NewEvaluator(
        &fakeMemberships{members: map[uint64][]uint64{
            10: {100, 101}, // tenant 10: owner 100, user 101
            20: {102},
        }},
        &fakeDevices{tenants: map[uint64]uint64{
            1: 10,
            2: 20,
        }},
        &fakeEntities{owners: map[uint64][]uint64{
            5: {10},     // folder-owned entity in tenant 10
            6: {20},     // device-owned entity in tenant 20
            7: {10, 20}, // user-owned entity with two memberships
            8: {},       // user-owned entity with no memberships
        }},
    )
}

var (
    adminUser = model.User{ID: 1, RoleID: model.RoleAdmin}
    ownerUser = model.User{ID: 100, RoleID: model.RoleOwner}
    plainUser = model.User{ID: 101, RoleID: model.RoleUser}
    outsider  = model.User{ID: 102, RoleID: model.RoleOwner} // member of tenant 20 only
)

func TestRoleChecks(t *testing.T) {
    e := newTestEvaluator()

    assert.True(t, e.IsAdmin(adminUser))
    assert.False(t, e.IsAdmin(ownerUser))

    assert.True(t, e.HasAdminOrOwnerRole(adminUser))
    assert.True(t, e.HasAdminOrOwnerRole(ownerUser))
    assert.False(t, e.HasAdminOrOwnerRole(plainUser))

    assert.NoError(t, e.RequireAdmin(adminUser))
    assert.ErrorIs(t, e.RequireAdmin(ownerUser), repository.ErrPermissionDenied)
    assert.NoError(t, e.RequireAdminOrOwner(ownerUser))
    assert.ErrorIs(t, e.RequireAdminOrOwner(plainUser), repository.ErrPermissionDenied)
}

func TestTenantAccess(t *testing.T) {
    e := newTestEvaluator()
    ctx := context.Background()

    // admin reaches every tenant, member or not
    ok, err := e.HasAccessToTenant(ctx, adminUser, 10)
    require.NoError(t, err)
    assert.True(t, ok)
    ok, err = e.HasAccessToTenant(ctx, adminUser, 999)
    require.NoError(t, err)
    assert.True(t, ok)

    // members reach their own tenant only
    ok, err = e.HasAccessToTenant(ctx, plainUser, 10)
    require.NoError(t, err)
    assert.True(t, ok)
    ok, err = e.HasAccessToTenant(ctx, plainUser, 20)
    require.NoError(t, err)
    assert.False(t, ok)

    assert.NoError(t, e.RequireTenantAccess(ctx, ownerUser, 10))
    assert.ErrorIs(t, e.RequireTenantAccess(ctx, outsider, 10), repository.ErrPermissionDenied)
}

func TestDeviceAccess(t *testing.T) {
    e := newTestEvaluator()
    ctx := context.Background()

    ok, err := e.HasAccessToDevice(ctx, plainUser, 1)
    require.NoError(t, err)
    assert.True(t, ok)

    ok, err = e.HasAccessToDevice(ctx, plainUser, 2)
    require.NoError(t, err)
    assert.False(t, ok)

    // a missing device surfaces as not-found, never as a permission
    // decision, for every caller including admins
    _, err = e.HasAccessToDevice(ctx, plainUser, 999)
    assert.ErrorIs(t, err, repository.ErrDeviceNotFound)
    assert.ErrorIs(t, e.RequireDeviceAccess(ctx, adminUser, 999), repository.ErrDeviceNotFound)
}

func TestEntityAccess(t *testing.T) {
    e := newTestEvaluator()
    ctx := context.Background()

    // admin reaches every entity
    ok, err := e.HasAccessToEntity(ctx, adminUser, 6)
    require.NoError(t, err)
    assert.True(t, ok)

    // members reach entities owned inside their tenant only
    ok, err = e.HasAccessToEntity(ctx, plainUser, 5)
    require.NoError(t, err)
    assert.True(t, ok)
    ok, err = e.HasAccessToEntity(ctx, plainUser, 6)
    require.NoError(t, err)
    assert.False(t, ok)

    // owner rank elsewhere does not reach a foreign tenant's entity
    assert.ErrorIs(t, e.RequireEntityAccess(ctx, outsider, 5), repository.ErrPermissionDenied)

    // a user-owned entity is reachable through any shared membership
    ok, err = e.HasAccessToEntity(ctx, outsider, 7)
    require.NoError(t, err)
    assert.True(t, ok)

    // an owner entity with no tenants is admin-only
    assert.ErrorIs(t, e.RequireEntityAccess(ctx, ownerUser, 8), repository.ErrPermissionDenied)
    assert.NoError(t, e.RequireEntityAccess(ctx, adminUser, 8))

    // a missing entity surfaces as not-found, never as a permission
    // decision, for every caller including admins
    _, err = e.HasAccessToEntity(ctx, plainUser, 999)
    assert.ErrorIs(t, err, repository.ErrEntityNotFound)
    assert.ErrorIs(t, e.RequireEntityAccess(ctx, adminUser, 999), repository.ErrEntityNotFound)
}

func TestCanEditDevice(t *testing.T) {
    e := newTestEvaluator()
    ctx := context.Background()

    ok, err := e.CanEditDevice(ctx, adminUser, 1)
    require.NoError(t, err)
    assert.True(t, ok)

    // owner of the tenant may edit
    ok, err = e.CanEditDevice(ctx, ownerUser, 1)
    require.NoError(t, err)
    assert.True(t, ok)

    // plain member may see but not edit
    ok, err = e.CanEditDevice(ctx, plainUser, 1)
    require.NoError(t, err)
    assert.False(t, ok)

    // owner rank in another tenant does not help
    ok, err = e.CanEditDevice(ctx, outsider, 1)
    require.NoError(t, err)
    assert.False(t, ok)

    _, err = e.CanEditDevice(ctx, adminUser, 999)
    assert.ErrorIs(t, err, repository.ErrDeviceNotFound)

    assert.NoError(t, e.RequireDeviceEdit(ctx, ownerUser, 1))
    assert.ErrorIs(t, e.RequireDeviceEdit(ctx, plainUser, 1), repository.ErrPermissionDenied)
}
