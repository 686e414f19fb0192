package repository

import (
    "context"
    "database/sql"
    "strings"
    "time"

    "github.com/iliyamo/device-fleet/internal/model"
)

// UserRepo persists application users.  Password hashing happens at
// the service layer; this repo only ever sees the bcrypt hash.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

const userCols = "id, username, hashed_password, role_id, entity_id, last_login, disabled, created_at, updated_at"

func scanUser(row *sql.Row) (model.User, error) {
    var u model.User
    err := row.Scan(&u.ID, &u.Username, &u.HashedPassword, &u.RoleID,
        &u.EntityID, &u.LastLogin, &u.Disabled, &u.CreatedAt, &u.UpdatedAt)
    return u, err
}

// CreateTx inserts a user row inside the given transaction.  The
// entity id must come from EntityRepo.CreateTx in the same
// transaction.  Usernames are normalized to lower case; a duplicate
// yields ErrUsernameTaken.
func (r *UserRepo) CreateTx(ctx context.Context, tx DBTX, username, hashedPassword string, roleID uint8, entityID uint64) (uint64, error) {
    username = strings.ToLower(strings.TrimSpace(username))
    res, err := tx.ExecContext(ctx,
        "INSERT INTO user (username, hashed_password, role_id, entity_id, last_login) VALUES (?,?,?,?,?)",
        username, hashedPassword, roleID, entityID, time.Now().UTC())
    if err != nil {
        if isDuplicate(err) {
            return 0, ErrUsernameTaken
        }
        return 0, err
    }
    id, err := res.LastInsertId()
    if err != nil {
        return 0, err
    }
    return uint64(id), nil
}

// GetByUsername fetches a user by normalized username.
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (model.User, error) {
    username = strings.ToLower(strings.TrimSpace(username))
    u, err := scanUser(r.DB.QueryRowContext(ctx,
        "SELECT "+userCols+" FROM user WHERE username=? LIMIT 1", username))
    if err == sql.ErrNoRows {
        return model.User{}, ErrUserNotFound
    }
    return u, err
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
    u, err := scanUser(r.DB.QueryRowContext(ctx,
        "SELECT "+userCols+" FROM user WHERE id=? LIMIT 1", id))
    if err == sql.ErrNoRows {
        return model.User{}, ErrUserNotFound
    }
    return u, err
}

// List returns every user ordered by id.
func (r *UserRepo) List(ctx context.Context) ([]model.User, error) {
    rows, err := r.DB.QueryContext(ctx, "SELECT "+userCols+" FROM user ORDER BY id")
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var users []model.User
    for rows.Next() {
        var u model.User
        if err := rows.Scan(&u.ID, &u.Username, &u.HashedPassword, &u.RoleID,
            &u.EntityID, &u.LastLogin, &u.Disabled, &u.CreatedAt, &u.UpdatedAt); err != nil {
            return nil, err
        }
        users = append(users, u)
    }
    return users, rows.Err()
}

// UserPatch carries the optional fields of an update.  Nil pointers
// leave the column untouched.  Passwords arrive already hashed.
type UserPatch struct {
    Username       *string
    HashedPassword *string
    RoleID         *uint8
    Disabled       *bool
}

// Update applies a patch to a user.  A username change re-validates
// global uniqueness.
func (r *UserRepo) Update(ctx context.Context, id uint64, p UserPatch) (model.User, error) {
    if _, err := r.GetByID(ctx, id); err != nil {
        return model.User{}, err
    }
    set := []string{}
    args := []any{}
    if p.Username != nil {
        set = append(set, "username=?")
        args = append(args, strings.ToLower(strings.TrimSpace(*p.Username)))
    }
    if p.HashedPassword != nil {
        set = append(set, "hashed_password=?")
        args = append(args, *p.HashedPassword)
    }
    if p.RoleID != nil {
        set = append(set, "role_id=?")
        args = append(args, *p.RoleID)
    }
    if p.Disabled != nil {
        set = append(set, "disabled=?")
        args = append(args, *p.Disabled)
    }
    if len(set) > 0 {
        args = append(args, id)
        _, err := r.DB.ExecContext(ctx,
            "UPDATE user SET "+strings.Join(set, ", ")+" WHERE id=?", args...)
        if err != nil {
            if isDuplicate(err) {
                return model.User{}, ErrUsernameTaken
            }
            return model.User{}, err
        }
    }
    return r.GetByID(ctx, id)
}

// AssignRole sets a user's role.  The role must be one of the fixed
// set; callers validate the id with model.RoleName.
func (r *UserRepo) AssignRole(ctx context.Context, id uint64, roleID uint8) error {
    res, err := r.DB.ExecContext(ctx,
        "UPDATE user SET role_id=? WHERE id=?", roleID, id)
    if err != nil {
        return err
    }
    n, err := res.RowsAffected()
    if err == nil && n == 0 {
        if _, getErr := r.GetByID(ctx, id); getErr != nil {
            return getErr
        }
    }
    return err
}

// SetLastLogin stamps the most recent successful login.
func (r *UserRepo) SetLastLogin(ctx context.Context, id uint64, t time.Time) error {
    _, err := r.DB.ExecContext(ctx,
        "UPDATE user SET last_login=? WHERE id=?", t.UTC(), id)
    return err
}

// DeleteTx removes a user, their memberships, refresh tokens and
// entity inside the given transaction.
func (r *UserRepo) DeleteTx(ctx context.Context, tx DBTX, u model.User) error {
    if _, err := tx.ExecContext(ctx, "DELETE FROM tenant_user WHERE user_id=?", u.ID); err != nil {
        return err
    }
    if _, err := tx.ExecContext(ctx, "DELETE FROM refresh_token WHERE user_id=?", u.ID); err != nil {
        return err
    }
    if _, err := tx.ExecContext(ctx, "DELETE FROM user WHERE id=?", u.ID); err != nil {
        return err
    }
    if _, err := tx.ExecContext(ctx, "DELETE FROM entity_tag WHERE entity_id=?", u.EntityID); err != nil {
        return err
    }
    _, err := tx.ExecContext(ctx, "DELETE FROM entity WHERE id=?", u.EntityID)
    return err
}
