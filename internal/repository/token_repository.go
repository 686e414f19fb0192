package repository

import (
    "context"
    "database/sql"
    "time"

    "github.com/iliyamo/device-fleet/internal/database"
    "github.com/iliyamo/device-fleet/internal/model"
)

// TokenRepo persists refresh tokens.  Only SHA-256 hashes of token
// values are stored.  Tokens form rotation chains: every row carries
// the chain id of its login session and, once rotated away, a
// replaced_by link to its successor.  A token is terminal as soon as
// it is revoked or superseded.
type TokenRepo struct{ DB *sql.DB }

func NewTokenRepo(db *sql.DB) *TokenRepo { return &TokenRepo{DB: db} }

const tokenCols = "id, user_id, chain_id, token_hash, issued_at, expires_at, revoked_at, replaced_by"

func scanToken(row *sql.Row) (model.RefreshToken, error) {
    var t model.RefreshToken
    var revoked sql.NullTime
    var replaced sql.NullInt64
    err := row.Scan(&t.ID, &t.UserID, &t.ChainID, &t.TokenHash,
        &t.IssuedAt, &t.ExpiresAt, &revoked, &replaced)
    if err != nil {
        return model.RefreshToken{}, err
    }
    if revoked.Valid {
        v := revoked.Time
        t.RevokedAt = &v
    }
    if replaced.Valid {
        v := uint64(replaced.Int64)
        t.ReplacedBy = &v
    }
    return t, nil
}

// Create inserts a refresh token row starting (or continuing) the
// given chain and returns its id.
func (r *TokenRepo) Create(ctx context.Context, userID uint64, chainID, tokenHash string, exp time.Time) (uint64, error) {
    res, err := r.DB.ExecContext(ctx,
        "INSERT INTO refresh_token (user_id, chain_id, token_hash, issued_at, expires_at) VALUES (?,?,?,?,?)",
        userID, chainID, tokenHash, time.Now().UTC(), exp)
    if err != nil {
        return 0, err
    }
    id, err := res.LastInsertId()
    if err != nil {
        return 0, err
    }
    return uint64(id), nil
}

// GetByHash returns the token row for a presented value's hash,
// whatever its state.  The caller distinguishes active, revoked,
// expired and superseded tokens; a miss yields
// ErrInvalidRefreshToken.
func (r *TokenRepo) GetByHash(ctx context.Context, tokenHash string) (model.RefreshToken, error) {
    t, err := scanToken(r.DB.QueryRowContext(ctx,
        "SELECT "+tokenCols+" FROM refresh_token WHERE token_hash=? LIMIT 1", tokenHash))
    if err == sql.ErrNoRows {
        return model.RefreshToken{}, ErrInvalidRefreshToken
    }
    return t, err
}

// Rotate atomically supersedes the old token with a freshly inserted
// one carrying newHash.  The supersede is a compare-and-swap: the
// UPDATE only matches while the old row is neither revoked nor
// already replaced, so of two concurrent rotations exactly one wins
// and the loser observes ErrInvalidRefreshToken with no new token
// left behind.
func (r *TokenRepo) Rotate(ctx context.Context, old model.RefreshToken, newHash string, exp time.Time) (uint64, error) {
    var newID uint64
    err := database.WithTx(ctx, r.DB, func(tx *sql.Tx) error {
        res, err := tx.ExecContext(ctx,
            "INSERT INTO refresh_token (user_id, chain_id, token_hash, issued_at, expires_at) VALUES (?,?,?,?,?)",
            old.UserID, old.ChainID, newHash, time.Now().UTC(), exp)
        if err != nil {
            return err
        }
        id, err := res.LastInsertId()
        if err != nil {
            return err
        }
        newID = uint64(id)
        cas, err := tx.ExecContext(ctx,
            "UPDATE refresh_token SET replaced_by=? WHERE id=? AND revoked_at IS NULL AND replaced_by IS NULL",
            newID, old.ID)
        if err != nil {
            return err
        }
        n, err := cas.RowsAffected()
        if err != nil {
            return err
        }
        if n != 1 {
            return ErrInvalidRefreshToken
        }
        return nil
    })
    if err != nil {
        return 0, err
    }
    return newID, nil
}

// RevokeChain revokes every still-active token of a chain.  It is
// idempotent: revoking an already-dead chain affects no rows and
// returns nil.
func (r *TokenRepo) RevokeChain(ctx context.Context, chainID string) error {
    _, err := r.DB.ExecContext(ctx,
        "UPDATE refresh_token SET revoked_at=? WHERE chain_id=? AND revoked_at IS NULL",
        time.Now().UTC(), chainID)
    return err
}

// RevokeAllForUser revokes every active token of a user across all
// chains, logging them out of every session.
func (r *TokenRepo) RevokeAllForUser(ctx context.Context, userID uint64) error {
    _, err := r.DB.ExecContext(ctx,
        "UPDATE refresh_token SET revoked_at=? WHERE user_id=? AND revoked_at IS NULL",
        time.Now().UTC(), userID)
    return err
}
