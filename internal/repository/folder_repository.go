package repository

import (
    "context"
    "database/sql"

    "github.com/iliyamo/device-fleet/internal/model"
    "github.com/iliyamo/device-fleet/internal/utils"
)

// FolderRepo maintains the per-tenant folder trees.  Every tenant has
// exactly one synthetic root folder named "/" with a NULL parent; all
// other folders hang off it, and a folder's tenant always equals its
// parent's tenant.  Cycles are impossible by construction: creation
// only attaches below an existing folder and the parent link is
// immutable afterwards, so no runtime cycle detection is needed.
type FolderRepo struct {
    DB       *sql.DB
    Entities *EntityRepo
    Tags     *TagRepo
}

func NewFolderRepo(db *sql.DB, entities *EntityRepo, tags *TagRepo) *FolderRepo {
    return &FolderRepo{DB: db, Entities: entities, Tags: tags}
}

const folderCols = "id, name, tenant_id, parent_id, entity_id, created_at, updated_at"

func scanFolderRow(scan func(dest ...any) error) (model.Folder, error) {
    var f model.Folder
    var parent sql.NullInt64
    err := scan(&f.ID, &f.Name, &f.TenantID, &parent, &f.EntityID, &f.CreatedAt, &f.UpdatedAt)
    if err != nil {
        return model.Folder{}, err
    }
    if parent.Valid {
        p := uint64(parent.Int64)
        f.ParentID = &p
    }
    return f, nil
}

// GetByID fetches a folder by id.
func (r *FolderRepo) GetByID(ctx context.Context, id uint64) (model.Folder, error) {
    row := r.DB.QueryRowContext(ctx,
        "SELECT "+folderCols+" FROM folder WHERE id=? LIMIT 1", id)
    f, err := scanFolderRow(row.Scan)
    if err == sql.ErrNoRows {
        return model.Folder{}, ErrFolderNotFound
    }
    return f, err
}

// tenantName looks up a tenant's name inside the given transaction,
// returning ErrTenantNotFound when the id does not resolve.
func (r *FolderRepo) tenantName(ctx context.Context, q DBTX, tenantID uint64) (string, error) {
    var name string
    err := q.QueryRowContext(ctx,
        "SELECT name FROM tenant WHERE id=? LIMIT 1", tenantID).Scan(&name)
    if err == sql.ErrNoRows {
        return "", ErrTenantNotFound
    }
    return name, err
}

// GetOrCreateRootTx returns the tenant's root folder, creating it on
// first use.  The root carries the reserved name "/", a NULL parent
// and an auto-generated identifying tag.  Calling it twice for the
// same tenant returns the same folder.
func (r *FolderRepo) GetOrCreateRootTx(ctx context.Context, tx DBTX, tenantID uint64) (model.Folder, error) {
    row := tx.QueryRowContext(ctx,
        "SELECT "+folderCols+" FROM folder WHERE tenant_id=? AND name=? AND parent_id IS NULL LIMIT 1",
        tenantID, model.RootFolderName)
    f, err := scanFolderRow(row.Scan)
    if err == nil {
        return f, nil
    }
    if err != sql.ErrNoRows {
        return model.Folder{}, err
    }

    if _, err := r.tenantName(ctx, tx, tenantID); err != nil {
        return model.Folder{}, err
    }
    entityID, err := r.Entities.CreateTx(ctx, tx)
    if err != nil {
        return model.Folder{}, err
    }
    res, err := tx.ExecContext(ctx,
        "INSERT INTO folder (name, tenant_id, parent_id, entity_id) VALUES (?,?,NULL,?)",
        model.RootFolderName, tenantID, entityID)
    if err != nil {
        return model.Folder{}, err
    }
    id, err := res.LastInsertId()
    if err != nil {
        return model.Folder{}, err
    }
    if err := r.autoTagTx(ctx, tx, entityID, tenantID, utils.RootFolderTagName(tenantID)); err != nil {
        return model.Folder{}, err
    }
    return model.Folder{ID: uint64(id), Name: model.RootFolderName, TenantID: tenantID, EntityID: entityID}, nil
}

// autoTagTx creates the descriptive tag for a new folder and attaches
// it.  When a tag of that name already exists in the tenant the
// existing one is reused instead of failing the whole creation.
func (r *FolderRepo) autoTagTx(ctx context.Context, tx DBTX, entityID, tenantID uint64, name string) error {
    tag, err := r.Tags.CreateTx(ctx, tx, name, tenantID)
    if err == ErrTagNameTaken {
        row := tx.QueryRowContext(ctx,
            "SELECT id, name, tenant_id FROM tag WHERE tenant_id=? AND name=? LIMIT 1",
            tenantID, name)
        err = row.Scan(&tag.ID, &tag.Name, &tag.TenantID)
    }
    if err != nil {
        return err
    }
    return r.Tags.AttachTx(ctx, tx, entityID, tag)
}

// CreateTx inserts a folder inside the given transaction.  The name
// must be unique within the tenant; a missing tenant yields
// ErrTenantNotFound and a dangling parent id ErrParentNotFound.  When
// parentID is nil the folder attaches to the tenant root, which is
// created on demand.  A parent from a different tenant is rejected
// with ErrTenantMismatch.  The new folder gets a fresh entity and a
// descriptive auto tag.
func (r *FolderRepo) CreateTx(ctx context.Context, tx DBTX, name string, tenantID uint64, parentID *uint64) (model.Folder, error) {
    tenantName, err := r.tenantName(ctx, tx, tenantID)
    if err != nil {
        return model.Folder{}, err
    }
    if name == model.RootFolderName {
        // "/" is reserved for the synthetic root.
        return model.Folder{}, ErrFolderNameTaken
    }
    var one int
    err = tx.QueryRowContext(ctx,
        "SELECT 1 FROM folder WHERE tenant_id=? AND name=? LIMIT 1",
        tenantID, name).Scan(&one)
    if err == nil {
        return model.Folder{}, ErrFolderNameTaken
    }
    if err != sql.ErrNoRows {
        return model.Folder{}, err
    }

    root, err := r.GetOrCreateRootTx(ctx, tx, tenantID)
    if err != nil {
        return model.Folder{}, err
    }
    parent := root.ID
    if parentID != nil {
        var parentTenant uint64
        err := tx.QueryRowContext(ctx,
            "SELECT tenant_id FROM folder WHERE id=? LIMIT 1", *parentID).Scan(&parentTenant)
        if err == sql.ErrNoRows {
            return model.Folder{}, ErrParentNotFound
        }
        if err != nil {
            return model.Folder{}, err
        }
        if parentTenant != tenantID {
            return model.Folder{}, ErrTenantMismatch
        }
        parent = *parentID
    }

    entityID, err := r.Entities.CreateTx(ctx, tx)
    if err != nil {
        return model.Folder{}, err
    }
    res, err := tx.ExecContext(ctx,
        "INSERT INTO folder (name, tenant_id, parent_id, entity_id) VALUES (?,?,?,?)",
        name, tenantID, parent, entityID)
    if err != nil {
        if isDuplicate(err) {
            return model.Folder{}, ErrFolderNameTaken
        }
        return model.Folder{}, err
    }
    id, err := res.LastInsertId()
    if err != nil {
        return model.Folder{}, err
    }
    if err := r.autoTagTx(ctx, tx, entityID, tenantID, utils.FolderTagName(tenantName, name)); err != nil {
        return model.Folder{}, err
    }
    return model.Folder{ID: uint64(id), Name: name, TenantID: tenantID, ParentID: &parent, EntityID: entityID}, nil
}

// Rename changes a folder's name, re-validating uniqueness within its
// tenant.  Structural fields (parent, children) are immutable through
// this path; the root's reserved name cannot be taken or given away.
func (r *FolderRepo) Rename(ctx context.Context, id uint64, name string) (model.Folder, error) {
    f, err := r.GetByID(ctx, id)
    if err != nil {
        return model.Folder{}, err
    }
    if f.IsRoot() || name == model.RootFolderName {
        return model.Folder{}, ErrFolderNameTaken
    }
    var one int
    err = r.DB.QueryRowContext(ctx,
        "SELECT 1 FROM folder WHERE tenant_id=? AND name=? AND id<>? LIMIT 1",
        f.TenantID, name, id).Scan(&one)
    if err == nil {
        return model.Folder{}, ErrFolderNameTaken
    }
    if err != sql.ErrNoRows {
        return model.Folder{}, err
    }
    if _, err := r.DB.ExecContext(ctx,
        "UPDATE folder SET name=? WHERE id=?", name, id); err != nil {
        return model.Folder{}, err
    }
    f.Name = name
    return f, nil
}

// DeleteTx removes a folder together with its entity and tag
// associations.  Deletion is forbidden for the tenant root and while
// the folder still has subfolders or devices; the caller must empty
// the subtree first.
func (r *FolderRepo) DeleteTx(ctx context.Context, tx DBTX, id uint64) (uint64, error) {
    row := tx.QueryRowContext(ctx,
        "SELECT "+folderCols+" FROM folder WHERE id=? LIMIT 1", id)
    f, err := scanFolderRow(row.Scan)
    if err == sql.ErrNoRows {
        return 0, ErrFolderNotFound
    }
    if err != nil {
        return 0, err
    }
    if f.IsRoot() {
        return 0, ErrRootFolder
    }
    var one int
    err = tx.QueryRowContext(ctx,
        `SELECT 1 FROM folder WHERE parent_id=?
         UNION SELECT 1 FROM device WHERE folder_id=? LIMIT 1`, id, id).Scan(&one)
    if err == nil {
        return 0, ErrFolderNotEmpty
    }
    if err != sql.ErrNoRows {
        return 0, err
    }
    if _, err := tx.ExecContext(ctx, "DELETE FROM folder WHERE id=?", id); err != nil {
        return 0, err
    }
    if err := r.Entities.DeleteTx(ctx, tx, f.EntityID); err != nil {
        return 0, err
    }
    return id, nil
}

// ListChildren returns the direct children of a folder.
func (r *FolderRepo) ListChildren(ctx context.Context, id uint64) ([]model.Folder, error) {
    if _, err := r.GetByID(ctx, id); err != nil {
        return nil, err
    }
    return r.listQuery(ctx,
        "SELECT "+folderCols+" FROM folder WHERE parent_id=? ORDER BY id", id)
}

// ListDescendants returns every folder below the given one, any
// depth, using a recursive walk down the parent links.
func (r *FolderRepo) ListDescendants(ctx context.Context, id uint64) ([]model.Folder, error) {
    if _, err := r.GetByID(ctx, id); err != nil {
        return nil, err
    }
    const query = `
        WITH RECURSIVE subtree AS (
            SELECT id, name, tenant_id, parent_id, entity_id, created_at, updated_at
            FROM folder WHERE parent_id = ?
            UNION ALL
            SELECT f.id, f.name, f.tenant_id, f.parent_id, f.entity_id, f.created_at, f.updated_at
            FROM folder f JOIN subtree s ON f.parent_id = s.id
        )
        SELECT id, name, tenant_id, parent_id, entity_id, created_at, updated_at
        FROM subtree ORDER BY id`
    return r.listQuery(ctx, query, id)
}

// ListVisibleRoots returns the root folders the user may see: every
// root for admins, the roots of member tenants otherwise.  A
// non-admin with no tenant memberships gets ErrUserTenantNotAssigned.
func (r *FolderRepo) ListVisibleRoots(ctx context.Context, user model.User) ([]model.Folder, error) {
    if user.IsAdmin() {
        return r.listQuery(ctx,
            "SELECT "+folderCols+" FROM folder WHERE parent_id IS NULL ORDER BY id")
    }
    var n int
    if err := r.DB.QueryRowContext(ctx,
        "SELECT COUNT(*) FROM tenant_user WHERE user_id=?", user.ID).Scan(&n); err != nil {
        return nil, err
    }
    if n == 0 {
        return nil, ErrUserTenantNotAssigned
    }
    return r.listQuery(ctx,
        `SELECT f.id, f.name, f.tenant_id, f.parent_id, f.entity_id, f.created_at, f.updated_at
         FROM folder f JOIN tenant_user tu ON tu.tenant_id = f.tenant_id
         WHERE f.parent_id IS NULL AND tu.user_id = ? ORDER BY f.id`, user.ID)
}

// ListByTenant returns every folder of a tenant, roots included.
func (r *FolderRepo) ListByTenant(ctx context.Context, tenantID uint64) ([]model.Folder, error) {
    return r.listQuery(ctx,
        "SELECT "+folderCols+" FROM folder WHERE tenant_id=? ORDER BY id", tenantID)
}

func (r *FolderRepo) listQuery(ctx context.Context, query string, args ...any) ([]model.Folder, error) {
    rows, err := r.DB.QueryContext(ctx, query, args...)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var folders []model.Folder
    for rows.Next() {
        f, err := scanFolderRow(rows.Scan)
        if err != nil {
            return nil, err
        }
        folders = append(folders, f)
    }
    return folders, rows.Err()
}
