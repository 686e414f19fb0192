package repository

import (
    "context"
    "database/sql"
    "strings"

    "github.com/iliyamo/device-fleet/internal/model"
)

// TagRepo owns the `tag` table and the `entity_tag` association.
// Tags are tenant scoped: the name is unique within a tenant and a
// tag can only be attached to entities whose owner belongs to the
// tag's tenant.
type TagRepo struct {
    DB       *sql.DB
    Entities *EntityRepo
}

func NewTagRepo(db *sql.DB, entities *EntityRepo) *TagRepo {
    return &TagRepo{DB: db, Entities: entities}
}

// TagFilter restricts List results.  Name matches case-insensitively
// as a substring.  EntityIDs are OR'd together: a tag matches when it
// is attached to any of the supplied entity ids.  TenantID limits
// results to one tenant's tags when non-zero.
type TagFilter struct {
    Name      string
    EntityIDs []uint64
    TenantID  uint64
}

// CreateTx inserts a tag inside the given transaction.  A duplicate
// name within the tenant yields ErrTagNameTaken.
func (r *TagRepo) CreateTx(ctx context.Context, tx DBTX, name string, tenantID uint64) (model.Tag, error) {
    res, err := tx.ExecContext(ctx,
        "INSERT INTO tag (name, tenant_id) VALUES (?,?)", name, tenantID)
    if err != nil {
        if isDuplicate(err) {
            return model.Tag{}, ErrTagNameTaken
        }
        return model.Tag{}, err
    }
    id, err := res.LastInsertId()
    if err != nil {
        return model.Tag{}, err
    }
    return model.Tag{ID: uint64(id), Name: name, TenantID: tenantID}, nil
}

// Create inserts a tag outside of any enclosing transaction.
func (r *TagRepo) Create(ctx context.Context, name string, tenantID uint64) (model.Tag, error) {
    return r.CreateTx(ctx, r.DB, name, tenantID)
}

// GetByID fetches a tag by id.
func (r *TagRepo) GetByID(ctx context.Context, id uint64) (model.Tag, error) {
    var t model.Tag
    err := r.DB.QueryRowContext(ctx,
        "SELECT id, name, tenant_id FROM tag WHERE id=? LIMIT 1",
        id).Scan(&t.ID, &t.Name, &t.TenantID)
    if err == sql.ErrNoRows {
        return model.Tag{}, ErrTagNotFound
    }
    return t, err
}

// GetByName fetches a tag by exact name within a tenant.
func (r *TagRepo) GetByName(ctx context.Context, tenantID uint64, name string) (model.Tag, error) {
    var t model.Tag
    err := r.DB.QueryRowContext(ctx,
        "SELECT id, name, tenant_id FROM tag WHERE tenant_id=? AND name=? LIMIT 1",
        tenantID, name).Scan(&t.ID, &t.Name, &t.TenantID)
    if err == sql.ErrNoRows {
        return model.Tag{}, ErrTagNotFound
    }
    return t, err
}

// List returns the tags matching the filter.  The WHERE clause is
// assembled dynamically from the populated filter fields; an empty
// filter returns every tag.
func (r *TagRepo) List(ctx context.Context, f TagFilter) ([]model.Tag, error) {
    query := "SELECT DISTINCT t.id, t.name, t.tenant_id FROM tag t"
    where := []string{}
    args := []any{}

    if len(f.EntityIDs) > 0 {
        query += " JOIN entity_tag et ON et.tag_id = t.id"
        placeholders := strings.TrimSuffix(strings.Repeat("?,", len(f.EntityIDs)), ",")
        where = append(where, "et.entity_id IN ("+placeholders+")")
        for _, id := range f.EntityIDs {
            args = append(args, id)
        }
    }
    if f.Name != "" {
        where = append(where, "LOWER(t.name) LIKE ?")
        args = append(args, "%"+strings.ToLower(f.Name)+"%")
    }
    if f.TenantID != 0 {
        where = append(where, "t.tenant_id = ?")
        args = append(args, f.TenantID)
    }
    if len(where) > 0 {
        query += " WHERE " + strings.Join(where, " AND ")
    }
    query += " ORDER BY t.id"

    rows, err := r.DB.QueryContext(ctx, query, args...)
    if err != nil {
        return nil, err
    }
    defer rows.Close()

    var tags []model.Tag
    for rows.Next() {
        var t model.Tag
        if err := rows.Scan(&t.ID, &t.Name, &t.TenantID); err != nil {
            return nil, err
        }
        tags = append(tags, t)
    }
    return tags, rows.Err()
}

// ListForEntity returns the tags attached to a single entity.
func (r *TagRepo) ListForEntity(ctx context.Context, entityID uint64) ([]model.Tag, error) {
    return r.List(ctx, TagFilter{EntityIDs: []uint64{entityID}})
}

// AttachTx associates a tag with an entity inside the given
// transaction.  Attaching an already-attached tag is a no-op.  The
// entity's owner must belong to the tag's tenant; otherwise
// ErrTenantMismatch is returned and nothing is written.
func (r *TagRepo) AttachTx(ctx context.Context, tx DBTX, entityID uint64, tag model.Tag) error {
    ok, err := r.Entities.OwnerInTenant(ctx, tx, entityID, tag.TenantID)
    if err != nil {
        return err
    }
    if !ok {
        return ErrTenantMismatch
    }
    // INSERT IGNORE keeps the operation idempotent under the
    // (entity_id, tag_id) primary key.
    _, err = tx.ExecContext(ctx,
        "INSERT IGNORE INTO entity_tag (entity_id, tag_id) VALUES (?,?)",
        entityID, tag.ID)
    return err
}

// DetachTx removes a single association; removing a missing one is a
// no-op.
func (r *TagRepo) DetachTx(ctx context.Context, tx DBTX, entityID, tagID uint64) error {
    _, err := tx.ExecContext(ctx,
        "DELETE FROM entity_tag WHERE entity_id=? AND tag_id=?", entityID, tagID)
    return err
}

// ReplaceForEntityTx swaps the full tag set of an entity for the
// given tag ids.  Every tag must belong to the entity owner's tenant;
// the first mismatch aborts the transaction.
func (r *TagRepo) ReplaceForEntityTx(ctx context.Context, tx DBTX, entityID uint64, tagIDs []uint64) error {
    if _, err := tx.ExecContext(ctx, "DELETE FROM entity_tag WHERE entity_id=?", entityID); err != nil {
        return err
    }
    for _, tagID := range tagIDs {
        var t model.Tag
        err := tx.QueryRowContext(ctx,
            "SELECT id, name, tenant_id FROM tag WHERE id=? LIMIT 1",
            tagID).Scan(&t.ID, &t.Name, &t.TenantID)
        if err == sql.ErrNoRows {
            return ErrTagNotFound
        }
        if err != nil {
            return err
        }
        if err := r.AttachTx(ctx, tx, entityID, t); err != nil {
            return err
        }
    }
    return nil
}

// Update renames a tag.  The tenant of a tag is fixed at creation and
// cannot be changed through this path.
func (r *TagRepo) Update(ctx context.Context, id uint64, name string) (model.Tag, error) {
    t, err := r.GetByID(ctx, id)
    if err != nil {
        return model.Tag{}, err
    }
    if _, err := r.DB.ExecContext(ctx,
        "UPDATE tag SET name=? WHERE id=?", name, id); err != nil {
        if isDuplicate(err) {
            return model.Tag{}, ErrTagNameTaken
        }
        return model.Tag{}, err
    }
    t.Name = name
    return t, nil
}

// Delete removes a tag and its associations.  The tagged entities
// themselves are untouched.
func (r *TagRepo) Delete(ctx context.Context, id uint64) error {
    if _, err := r.GetByID(ctx, id); err != nil {
        return err
    }
    if _, err := r.DB.ExecContext(ctx, "DELETE FROM entity_tag WHERE tag_id=?", id); err != nil {
        return err
    }
    _, err := r.DB.ExecContext(ctx, "DELETE FROM tag WHERE id=?", id)
    return err
}

// isDuplicate reports whether err is a MySQL duplicate-key error
// (error number 1062).
func isDuplicate(err error) bool {
    return err != nil && strings.Contains(strings.ToLower(err.Error()), "1062")
}
