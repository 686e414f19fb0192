package repository

import (
    "context"
    "database/sql"

    "github.com/iliyamo/device-fleet/internal/model"
)

// TenantRepo persists tenants and the tenant_user membership table.
// Membership is the source of truth for which tenants a non-admin
// user can see; the access evaluator consults it on every scoped
// check.
type TenantRepo struct{ DB *sql.DB }

func NewTenantRepo(db *sql.DB) *TenantRepo { return &TenantRepo{DB: db} }

const tenantCols = "id, name, entity_id, created_at, updated_at"

func scanTenant(row *sql.Row) (model.Tenant, error) {
    var t model.Tenant
    err := row.Scan(&t.ID, &t.Name, &t.EntityID, &t.CreatedAt, &t.UpdatedAt)
    return t, err
}

// CreateTx inserts a tenant row inside the given transaction.  The
// entity id must have been allocated in the same transaction.  A
// duplicate name yields ErrTenantNameTaken; tenant names are globally
// unique.
func (r *TenantRepo) CreateTx(ctx context.Context, tx DBTX, name string, entityID uint64) (model.Tenant, error) {
    res, err := tx.ExecContext(ctx,
        "INSERT INTO tenant (name, entity_id) VALUES (?,?)", name, entityID)
    if err != nil {
        if isDuplicate(err) {
            return model.Tenant{}, ErrTenantNameTaken
        }
        return model.Tenant{}, err
    }
    id, err := res.LastInsertId()
    if err != nil {
        return model.Tenant{}, err
    }
    return model.Tenant{ID: uint64(id), Name: name, EntityID: entityID}, nil
}

// GetByID fetches a tenant by id.
func (r *TenantRepo) GetByID(ctx context.Context, id uint64) (model.Tenant, error) {
    t, err := scanTenant(r.DB.QueryRowContext(ctx,
        "SELECT "+tenantCols+" FROM tenant WHERE id=? LIMIT 1", id))
    if err == sql.ErrNoRows {
        return model.Tenant{}, ErrTenantNotFound
    }
    return t, err
}

// GetByName fetches a tenant by its unique name.
func (r *TenantRepo) GetByName(ctx context.Context, name string) (model.Tenant, error) {
    t, err := scanTenant(r.DB.QueryRowContext(ctx,
        "SELECT "+tenantCols+" FROM tenant WHERE name=? LIMIT 1", name))
    if err == sql.ErrNoRows {
        return model.Tenant{}, ErrTenantNotFound
    }
    return t, err
}

// Exists reports whether a tenant id resolves.
func (r *TenantRepo) Exists(ctx context.Context, id uint64) (bool, error) {
    var one int
    err := r.DB.QueryRowContext(ctx,
        "SELECT 1 FROM tenant WHERE id=? LIMIT 1", id).Scan(&one)
    if err == sql.ErrNoRows {
        return false, nil
    }
    return err == nil, err
}

// List returns every tenant ordered by id.
func (r *TenantRepo) List(ctx context.Context) ([]model.Tenant, error) {
    return r.listQuery(ctx, "SELECT "+tenantCols+" FROM tenant ORDER BY id")
}

// ListForUser returns the tenants the user is a member of.  Admin
// callers should use List instead; this method intentionally does not
// special-case roles.
func (r *TenantRepo) ListForUser(ctx context.Context, userID uint64) ([]model.Tenant, error) {
    return r.listQuery(ctx,
        `SELECT t.id, t.name, t.entity_id, t.created_at, t.updated_at
         FROM tenant t JOIN tenant_user tu ON tu.tenant_id = t.id
         WHERE tu.user_id = ? ORDER BY t.id`, userID)
}

func (r *TenantRepo) listQuery(ctx context.Context, query string, args ...any) ([]model.Tenant, error) {
    rows, err := r.DB.QueryContext(ctx, query, args...)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var tenants []model.Tenant
    for rows.Next() {
        var t model.Tenant
        if err := rows.Scan(&t.ID, &t.Name, &t.EntityID, &t.CreatedAt, &t.UpdatedAt); err != nil {
            return nil, err
        }
        tenants = append(tenants, t)
    }
    return tenants, rows.Err()
}

// Update renames a tenant.  The new name must remain globally unique.
func (r *TenantRepo) Update(ctx context.Context, id uint64, name string) (model.Tenant, error) {
    if _, err := r.GetByID(ctx, id); err != nil {
        return model.Tenant{}, err
    }
    if _, err := r.DB.ExecContext(ctx,
        "UPDATE tenant SET name=? WHERE id=?", name, id); err != nil {
        if isDuplicate(err) {
            return model.Tenant{}, ErrTenantNameTaken
        }
        return model.Tenant{}, err
    }
    return r.GetByID(ctx, id)
}

// DeleteTx removes a tenant and everything scoped to it inside the
// given transaction: tag associations, tags, devices, folders, the
// memberships, the tenant row and every entity owned along the way.
// Nothing is left to foreign-key cascades, which cannot reach the
// entity side of the graph.
func (r *TenantRepo) DeleteTx(ctx context.Context, tx DBTX, t model.Tenant) error {
    // Tags never attach across tenants, so dropping the associations
    // of the tenant's tags clears every tagged entity in scope,
    // user-owned entities included.
    if _, err := tx.ExecContext(ctx,
        `DELETE et FROM entity_tag et JOIN tag tg ON et.tag_id = tg.id
         WHERE tg.tenant_id=?`, t.ID); err != nil {
        return err
    }
    if _, err := tx.ExecContext(ctx, "DELETE FROM tag WHERE tenant_id=?", t.ID); err != nil {
        return err
    }
    // Device entity ids are collected up front because the join path
    // disappears with the device rows.
    deviceEntities, err := collectIDs(ctx, tx,
        `SELECT d.entity_id FROM device d JOIN folder f ON d.folder_id=f.id
         WHERE f.tenant_id=?`, t.ID)
    if err != nil {
        return err
    }
    if _, err := tx.ExecContext(ctx,
        `DELETE d FROM device d JOIN folder f ON d.folder_id=f.id
         WHERE f.tenant_id=?`, t.ID); err != nil {
        return err
    }
    folderEntities, err := collectIDs(ctx, tx,
        "SELECT entity_id FROM folder WHERE tenant_id=?", t.ID)
    if err != nil {
        return err
    }
    // The parent self-reference forces a leaf-first prune; each pass
    // removes the folders nothing points at anymore.
    for {
        res, err := tx.ExecContext(ctx,
            `DELETE f FROM folder f LEFT JOIN folder c ON c.parent_id = f.id
             WHERE f.tenant_id=? AND c.id IS NULL`, t.ID)
        if err != nil {
            return err
        }
        n, err := res.RowsAffected()
        if err != nil {
            return err
        }
        if n == 0 {
            break
        }
    }
    for _, id := range append(deviceEntities, folderEntities...) {
        if _, err := tx.ExecContext(ctx, "DELETE FROM entity WHERE id=?", id); err != nil {
            return err
        }
    }
    if _, err := tx.ExecContext(ctx, "DELETE FROM tenant_user WHERE tenant_id=?", t.ID); err != nil {
        return err
    }
    if _, err := tx.ExecContext(ctx, "DELETE FROM tenant WHERE id=?", t.ID); err != nil {
        return err
    }
    _, err = tx.ExecContext(ctx, "DELETE FROM entity WHERE id=?", t.EntityID)
    return err
}

// collectIDs runs a single-column id query and returns the values.
func collectIDs(ctx context.Context, q DBTX, query string, args ...any) ([]uint64, error) {
    rows, err := q.QueryContext(ctx, query, args...)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var ids []uint64
    for rows.Next() {
        var id uint64
        if err := rows.Scan(&id); err != nil {
            return nil, err
        }
        ids = append(ids, id)
    }
    return ids, rows.Err()
}

// AddUser records a tenant membership.  The pair is unique; adding an
// existing membership is a no-op.
func (r *TenantRepo) AddUser(ctx context.Context, tenantID, userID uint64) error {
    _, err := r.DB.ExecContext(ctx,
        "INSERT IGNORE INTO tenant_user (tenant_id, user_id) VALUES (?,?)",
        tenantID, userID)
    return err
}

// RemoveUser drops a tenant membership; removing a missing one is a
// no-op.
func (r *TenantRepo) RemoveUser(ctx context.Context, tenantID, userID uint64) error {
    _, err := r.DB.ExecContext(ctx,
        "DELETE FROM tenant_user WHERE tenant_id=? AND user_id=?", tenantID, userID)
    return err
}

// HasMember reports whether the user belongs to the tenant.
func (r *TenantRepo) HasMember(ctx context.Context, tenantID, userID uint64) (bool, error) {
    var one int
    err := r.DB.QueryRowContext(ctx,
        "SELECT 1 FROM tenant_user WHERE tenant_id=? AND user_id=? LIMIT 1",
        tenantID, userID).Scan(&one)
    if err == sql.ErrNoRows {
        return false, nil
    }
    return err == nil, err
}

// TenantIDsForUser returns the ids of every tenant the user belongs
// to, ordered ascending.
func (r *TenantRepo) TenantIDsForUser(ctx context.Context, userID uint64) ([]uint64, error) {
    rows, err := r.DB.QueryContext(ctx,
        "SELECT tenant_id FROM tenant_user WHERE user_id=? ORDER BY tenant_id", userID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var ids []uint64
    for rows.Next() {
        var id uint64
        if err := rows.Scan(&id); err != nil {
            return nil, err
        }
        ids = append(ids, id)
    }
    return ids, rows.Err()
}
