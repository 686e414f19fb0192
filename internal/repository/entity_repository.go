package repository

import (
    "context"
    "database/sql"
)

// DBTX is the subset of database/sql operations shared by *sql.DB and
// *sql.Tx.  Repository methods that may run either standalone or as
// part of a larger transaction accept a DBTX so the caller decides
// the transaction boundary.
type DBTX interface {
    ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
    QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
    QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// EntityRepo manages the `entity` identity table.  Every domain
// object (tenant, user, folder, device) owns exactly one entity row,
// created in the same transaction as the owner, and tags attach to
// entities rather than to owners.  The repo also resolves the tenant
// of an entity's owner, which is what keeps tag attachments inside a
// single tenant.
type EntityRepo struct{ DB *sql.DB }

func NewEntityRepo(db *sql.DB) *EntityRepo { return &EntityRepo{DB: db} }

// CreateTx allocates a fresh entity id inside the given transaction.
// It always succeeds barring infrastructure failure.  Domain-object
// constructors call this before inserting the owner row and store the
// returned id as the owner's entity_id.
func (r *EntityRepo) CreateTx(ctx context.Context, tx DBTX) (uint64, error) {
    res, err := tx.ExecContext(ctx, "INSERT INTO entity () VALUES ()")
    if err != nil {
        return 0, err
    }
    id, err := res.LastInsertId()
    if err != nil {
        return 0, err
    }
    return uint64(id), nil
}

// DeleteTx removes an entity and its tag associations.  Owners call
// this inside their own delete transaction; the tags themselves are
// never cascaded, only the association rows.
func (r *EntityRepo) DeleteTx(ctx context.Context, tx DBTX, entityID uint64) error {
    if _, err := tx.ExecContext(ctx, "DELETE FROM entity_tag WHERE entity_id=?", entityID); err != nil {
        return err
    }
    _, err := tx.ExecContext(ctx, "DELETE FROM entity WHERE id=?", entityID)
    return err
}

// OwnerTenants resolves the tenants the entity's owner belongs to.
// Tenant, folder and device owners map to exactly one tenant; user
// owners map to one per membership, so the result may be empty for a
// user without assignments.  A dangling entity id yields
// ErrEntityNotFound so that resolution failures surface before any
// permission evaluation.
func (r *EntityRepo) OwnerTenants(ctx context.Context, entityID uint64) ([]uint64, error) {
    var one int
    err := r.DB.QueryRowContext(ctx, "SELECT 1 FROM entity WHERE id=?", entityID).Scan(&one)
    if err == sql.ErrNoRows {
        return nil, ErrEntityNotFound
    }
    if err != nil {
        return nil, err
    }
    const query = `
        SELECT id FROM tenant WHERE entity_id=?
        UNION SELECT tenant_id FROM folder WHERE entity_id=?
        UNION SELECT f.tenant_id FROM device d JOIN folder f ON d.folder_id=f.id
              WHERE d.entity_id=?
        UNION SELECT tu.tenant_id FROM user u JOIN tenant_user tu ON tu.user_id=u.id
              WHERE u.entity_id=?`
    rows, err := r.DB.QueryContext(ctx, query, entityID, entityID, entityID, entityID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var tenants []uint64
    for rows.Next() {
        var id uint64
        if err := rows.Scan(&id); err != nil {
            return nil, err
        }
        tenants = append(tenants, id)
    }
    return tenants, rows.Err()
}

// OwnerInTenant reports whether the owner of the given entity belongs
// to the given tenant.  The owner type determines the traversal: a
// tenant entity matches its own id, folder entities match by
// tenant_id, device entities resolve through their folder, and user
// entities match through tenant membership.  The four branches are
// unioned so one round trip answers the question for any owner type.
func (r *EntityRepo) OwnerInTenant(ctx context.Context, q DBTX, entityID, tenantID uint64) (bool, error) {
    const query = `
        SELECT 1 FROM tenant WHERE entity_id=? AND id=?
        UNION SELECT 1 FROM folder WHERE entity_id=? AND tenant_id=?
        UNION SELECT 1 FROM device d JOIN folder f ON d.folder_id=f.id
              WHERE d.entity_id=? AND f.tenant_id=?
        UNION SELECT 1 FROM user u JOIN tenant_user tu ON tu.user_id=u.id
              WHERE u.entity_id=? AND tu.tenant_id=?
        LIMIT 1`
    var one int
    err := q.QueryRowContext(ctx, query,
        entityID, tenantID,
        entityID, tenantID,
        entityID, tenantID,
        entityID, tenantID,
    ).Scan(&one)
    if err == sql.ErrNoRows {
        return false, nil
    }
    if err != nil {
        return false, err
    }
    return true, nil
}
