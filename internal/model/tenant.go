package model

import "time"

// Tenant represents a row in the `tenant` table.  A tenant is the
// isolation boundary of the system: it owns a folder tree, scopes
// tags, and is linked to users through the tenant_user table.
//
// Fields:
//  ID        – primary key identifier.
//  Name      – globally unique tenant name.
//  EntityID  – id of the entity owned by this tenant (for tagging).
//  CreatedAt – timestamp of creation.
//  UpdatedAt – timestamp of last update.
type Tenant struct {
    ID        uint64    // tenant.id
    Name      string    // tenant.name
    EntityID  uint64    // tenant.entity_id
    CreatedAt time.Time // tenant.created_at
    UpdatedAt time.Time // tenant.updated_at
}

// TenantUser models a row of the `tenant_user` membership table.  The
// pair is unique; it is the source of truth for which tenants a
// non-admin user can see.
//
// Fields:
//  TenantID – the tenant side of the membership.
//  UserID   – the user side of the membership.
type TenantUser struct {
    TenantID uint64 // tenant_user.tenant_id
    UserID   uint64 // tenant_user.user_id
}
