package model

import "time"

// RootFolderName is the reserved name of the synthetic root folder
// created once per tenant.  The root is identified by this name
// together with a NULL parent_id; no other folder may use it.
const RootFolderName = "/"

// Folder represents a node of a per-tenant folder tree as stored in
// the `folder` table.  Every non-root folder has exactly one parent
// within the same tenant, so the rows form a forest rooted at the
// tenant roots.  Devices attach to folders.
//
// Fields:
//  ID        – primary key identifier.
//  Name      – folder name, unique within its tenant.
//  TenantID  – owning tenant; must equal the parent's tenant.
//  ParentID  – id of the parent folder (nil only for tenant roots).
//  EntityID  – id of the entity owned by this folder (for tagging).
//  CreatedAt – timestamp of creation.
//  UpdatedAt – timestamp of last update.
type Folder struct {
    ID        uint64    // folder.id
    Name      string    // folder.name
    TenantID  uint64    // folder.tenant_id
    ParentID  *uint64   // folder.parent_id (nullable)
    EntityID  uint64    // folder.entity_id
    CreatedAt time.Time // folder.created_at
    UpdatedAt time.Time // folder.updated_at
}

// IsRoot reports whether the folder is a tenant root.
func (f Folder) IsRoot() bool { return f.ParentID == nil && f.Name == RootFolderName }
