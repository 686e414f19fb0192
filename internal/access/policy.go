// Package access implements the authorization policy of the system.
// Every decision is a pure predicate over the principal's role, the
// tenant membership table and the device-to-tenant resolution; no
// predicate mutates state.  Each check is exposed in two forms: a
// boolean for composing into larger decisions and a Require variant
// that returns repository.ErrPermissionDenied for direct use as a
// request gate.
package access

import (
    "context"

    "github.com/iliyamo/device-fleet/internal/model"
    "github.com/iliyamo/device-fleet/internal/repository"
)

// MembershipStore answers tenant membership questions.  Implemented
// by repository.TenantRepo.
type MembershipStore interface {
    HasMember(ctx context.Context, tenantID, userID uint64) (bool, error)
}

// DeviceResolver maps a device to its tenant.  Implemented by
// repository.DeviceRepo.  A dangling id must yield
// repository.ErrDeviceNotFound so that resolution failures surface
// before any permission evaluation.
type DeviceResolver interface {
    ResolveTenant(ctx context.Context, deviceID uint64) (uint64, error)
}

// EntityResolver maps an entity to the tenants its owner belongs to.
// Implemented by repository.EntityRepo.  Tenant, folder and device
// owners yield exactly one tenant; user owners yield one per
// membership.  A dangling id must yield repository.ErrEntityNotFound
// so that resolution failures surface before any permission
// evaluation.
type EntityResolver interface {
    OwnerTenants(ctx context.Context, entityID uint64) ([]uint64, error)
}

// Evaluator bundles the lookups the policy predicates need.  It holds
// no mutable state of its own; given a consistent snapshot of the
// underlying tables every predicate is deterministic.
type Evaluator struct {
    Memberships MembershipStore
    Devices     DeviceResolver
    Entities    EntityResolver
}

func NewEvaluator(memberships MembershipStore, devices DeviceResolver, entities EntityResolver) *Evaluator {
    return &Evaluator{Memberships: memberships, Devices: devices, Entities: entities}
}

// IsAdmin reports whether the principal holds the global admin role,
// which short-circuits every other check to permit.
func (e *Evaluator) IsAdmin(user model.User) bool {
    return user.RoleID == model.RoleAdmin
}

// HasAdminOrOwnerRole is a role-only check independent of any
// resource.  It gates operations performed before a tenant or
// resource id is known, such as creation endpoints.
func (e *Evaluator) HasAdminOrOwnerRole(user model.User) bool {
    return user.RoleID == model.RoleAdmin || user.RoleID == model.RoleOwner
}

// RequireAdminOrOwner is the gate form of HasAdminOrOwnerRole.
func (e *Evaluator) RequireAdminOrOwner(user model.User) error {
    if !e.HasAdminOrOwnerRole(user) {
        return repository.ErrPermissionDenied
    }
    return nil
}

// RequireAdmin permits only the global admin role.
func (e *Evaluator) RequireAdmin(user model.User) error {
    if !e.IsAdmin(user) {
        return repository.ErrPermissionDenied
    }
    return nil
}

// HasAccessToTenant permits admins unconditionally and members of the
// tenant otherwise.
func (e *Evaluator) HasAccessToTenant(ctx context.Context, user model.User, tenantID uint64) (bool, error) {
    if e.IsAdmin(user) {
        return true, nil
    }
    return e.Memberships.HasMember(ctx, tenantID, user.ID)
}

// RequireTenantAccess is the gate form of HasAccessToTenant.
func (e *Evaluator) RequireTenantAccess(ctx context.Context, user model.User, tenantID uint64) error {
    ok, err := e.HasAccessToTenant(ctx, user, tenantID)
    if err != nil {
        return err
    }
    if !ok {
        return repository.ErrPermissionDenied
    }
    return nil
}

// HasAccessToDevice resolves the device to its tenant and delegates
// to HasAccessToTenant.  Resolution failures (ErrDeviceNotFound)
// surface as errors before any permission decision is made, so a
// missing device is reported the same way to every caller.
func (e *Evaluator) HasAccessToDevice(ctx context.Context, user model.User, deviceID uint64) (bool, error) {
    tenantID, err := e.Devices.ResolveTenant(ctx, deviceID)
    if err != nil {
        return false, err
    }
    return e.HasAccessToTenant(ctx, user, tenantID)
}

// RequireDeviceAccess is the gate form of HasAccessToDevice.
func (e *Evaluator) RequireDeviceAccess(ctx context.Context, user model.User, deviceID uint64) error {
    ok, err := e.HasAccessToDevice(ctx, user, deviceID)
    if err != nil {
        return err
    }
    if !ok {
        return repository.ErrPermissionDenied
    }
    return nil
}

// HasAccessToEntity resolves the entity's owner to its tenants and
// permits admins unconditionally, otherwise members of any of those
// tenants.  Resolution failures (ErrEntityNotFound) surface as errors
// before any permission decision is made.
func (e *Evaluator) HasAccessToEntity(ctx context.Context, user model.User, entityID uint64) (bool, error) {
    tenants, err := e.Entities.OwnerTenants(ctx, entityID)
    if err != nil {
        return false, err
    }
    if e.IsAdmin(user) {
        return true, nil
    }
    for _, tenantID := range tenants {
        ok, err := e.Memberships.HasMember(ctx, tenantID, user.ID)
        if err != nil {
            return false, err
        }
        if ok {
            return true, nil
        }
    }
    return false, nil
}

// RequireEntityAccess is the gate form of HasAccessToEntity.
func (e *Evaluator) RequireEntityAccess(ctx context.Context, user model.User, entityID uint64) error {
    ok, err := e.HasAccessToEntity(ctx, user, entityID)
    if err != nil {
        return err
    }
    if !ok {
        return repository.ErrPermissionDenied
    }
    return nil
}

// CanEditDevice permits admins, and otherwise members of the device's
// tenant whose role tier is at least owner.  The user tier is
// read-only for the devices it can see.
func (e *Evaluator) CanEditDevice(ctx context.Context, user model.User, deviceID uint64) (bool, error) {
    if e.IsAdmin(user) {
        // still resolve so a missing device errors consistently
        if _, err := e.Devices.ResolveTenant(ctx, deviceID); err != nil {
            return false, err
        }
        return true, nil
    }
    ok, err := e.HasAccessToDevice(ctx, user, deviceID)
    if err != nil || !ok {
        return false, err
    }
    return user.RoleID <= model.RoleOwner, nil
}

// RequireDeviceEdit is the gate form of CanEditDevice.
func (e *Evaluator) RequireDeviceEdit(ctx context.Context, user model.User, deviceID uint64) error {
    ok, err := e.CanEditDevice(ctx, user, deviceID)
    if err != nil {
        return err
    }
    if !ok {
        return repository.ErrPermissionDenied
    }
    return nil
}
