package auth

import (
    "context"
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/iliyamo/device-fleet/internal/model"
    "github.com/iliyamo/device-fleet/internal/repository"
    "github.com/iliyamo/device-fleet/internal/utils"
)

// memUsers is an in-memory UserStore.
type memUsers struct {
    byID map[uint64]model.User
}

func (m *memUsers) GetByUsername(_ context.Context, username string) (model.User, error) {
    for _, u := range m.byID {
        if u.Username == username {
            return u, nil
        }
    }
    return model.User{}, repository.ErrUserNotFound
}

func (m *memUsers) GetByID(_ context.Context, id uint64) (model.User, error) {
    u, ok := m.byID[id]
    if !ok {
        return model.User{}, repository.ErrUserNotFound
    }
    return u, nil
}

func (m *memUsers) SetLastLogin(_ context.Context, id uint64, ts time.Time) error {
    u := m.byID[id]
    u.LastLogin = ts
    m.byID[id] = u
    return nil
}

// memTokens is an in-memory TokenStore with the same forward-only
// rotation semantics as the SQL implementation: of two rotations of
// the same token exactly one succeeds.
type memTokens struct {
    nextID uint64
    rows   map[uint64]*model.RefreshToken
}

func newMemTokens() *memTokens {
    return &memTokens{rows: map[uint64]*model.RefreshToken{}}
}

func (m *memTokens) Create(_ context.Context, userID uint64, chainID, tokenHash string, exp time.Time) (uint64, error) {
    m.nextID++
    m.rows[m.nextID] = &model.RefreshToken{
        ID:        m.nextID,
        UserID:    userID,
        ChainID:   chainID,
        TokenHash: tokenHash,
        IssuedAt:  time.Now().UTC(),
        ExpiresAt: exp,
    }
    return m.nextID, nil
}

func (m *memTokens) GetByHash(_ context.Context, tokenHash string) (model.RefreshToken, error) {
    for _, r := range m.rows {
        if r.TokenHash == tokenHash {
            return *r, nil
        }
    }
    return model.RefreshToken{}, repository.ErrInvalidRefreshToken
}

func (m *memTokens) Rotate(ctx context.Context, old model.RefreshToken, newHash string, exp time.Time) (uint64, error) {
    cur, ok := m.rows[old.ID]
    if !ok || cur.RevokedAt != nil || cur.ReplacedBy != nil {
        return 0, repository.ErrInvalidRefreshToken
    }
    id, _ := m.Create(ctx, old.UserID, old.ChainID, newHash, exp)
    cur.ReplacedBy = &id
    return id, nil
}

func (m *memTokens) RevokeChain(_ context.Context, chainID string) error {
    now := time.Now().UTC()
    for _, r := range m.rows {
        if r.ChainID == chainID && r.RevokedAt == nil {
            t := now
            r.RevokedAt = &t
        }
    }
    return nil
}

func testService(t *testing.T) (*Service, *memUsers, *memTokens) {
    t.Helper()
    hash, err := utils.HashPassword("hunter2hunter2", 4)
    require.NoError(t, err)
    users := &memUsers{byID: map[uint64]model.User{
        1: {ID: 1, Username: "kara", HashedPassword: hash, RoleID: model.RoleOwner, EntityID: 11},
        2: {ID: 2, Username: "gone", HashedPassword: hash, RoleID: model.RoleUser, EntityID: 12, Disabled: true},
    }}
    tokens := newMemTokens()
    svc := NewService(users, tokens, Config{
        JWTSecret:      "secret",
        JWTAlg:         "HS256",
        AccessTTLMin:   5,
        RefreshTTLDays: 7,
    })
    return svc, users, tokens
}

func TestLogin(t *testing.T) {
    svc, users, tokens := testService(t)
    ctx := context.Background()

    pair, err := svc.Login(ctx, "kara", "hunter2hunter2")
    require.NoError(t, err)
    assert.Equal(t, uint64(1), pair.User.ID)
    assert.NotEmpty(t, pair.Refresh.Raw)
    assert.Len(t, tokens.rows, 1)
    assert.False(t, users.byID[1].LastLogin.IsZero())

    snap, err := utils.ParseAccessToken("secret", pair.Access.Token)
    require.NoError(t, err)
    assert.Equal(t, uint64(1), snap.ID)
    assert.Equal(t, "kara", snap.Username)
    assert.Equal(t, model.RoleOwner, snap.RoleID)
}

func TestLoginRejections(t *testing.T) {
    svc, _, tokens := testService(t)
    ctx := context.Background()

    // unknown user, wrong password and disabled account all map to
    // the same error so the endpoint cannot enumerate accounts
    _, err := svc.Login(ctx, "nobody", "hunter2hunter2")
    assert.ErrorIs(t, err, repository.ErrInvalidCredentials)

    _, err = svc.Login(ctx, "kara", "wrong password")
    assert.ErrorIs(t, err, repository.ErrInvalidCredentials)

    _, err = svc.Login(ctx, "gone", "hunter2hunter2")
    assert.ErrorIs(t, err, repository.ErrInvalidCredentials)

    assert.Empty(t, tokens.rows)
}

func TestRotate(t *testing.T) {
    svc, _, tokens := testService(t)
    ctx := context.Background()

    pair, err := svc.Login(ctx, "kara", "hunter2hunter2")
    require.NoError(t, err)

    next, err := svc.Rotate(ctx, pair.Refresh.Raw)
    require.NoError(t, err)
    assert.NotEqual(t, pair.Refresh.Raw, next.Refresh.Raw)
    assert.Len(t, tokens.rows, 2)

    // the old row now points at its successor
    old, err := tokens.GetByHash(ctx, utils.HashRefreshRaw(pair.Refresh.Raw))
    require.NoError(t, err)
    require.NotNil(t, old.ReplacedBy)

    // the new token rotates fine in turn
    _, err = svc.Rotate(ctx, next.Refresh.Raw)
    require.NoError(t, err)
}

func TestRotateReuseRevokesChain(t *testing.T) {
    svc, _, tokens := testService(t)
    ctx := context.Background()

    pair, err := svc.Login(ctx, "kara", "hunter2hunter2")
    require.NoError(t, err)
    next, err := svc.Rotate(ctx, pair.Refresh.Raw)
    require.NoError(t, err)

    // presenting the rotated-away token is a reuse signal
    _, err = svc.Rotate(ctx, pair.Refresh.Raw)
    assert.ErrorIs(t, err, repository.ErrInvalidRefreshToken)

    // the whole chain is dead, the newest token included
    for _, r := range tokens.rows {
        assert.NotNil(t, r.RevokedAt)
    }
    _, err = svc.Rotate(ctx, next.Refresh.Raw)
    assert.ErrorIs(t, err, repository.ErrInvalidRefreshToken)
}

func TestRotateExpired(t *testing.T) {
    svc, _, _ := testService(t)
    svc.Cfg.RefreshTTLDays = -1 // issue already-expired refresh tokens
    ctx := context.Background()

    pair, err := svc.Login(ctx, "kara", "hunter2hunter2")
    require.NoError(t, err)

    _, err = svc.Rotate(ctx, pair.Refresh.Raw)
    assert.ErrorIs(t, err, repository.ErrInvalidRefreshToken)
}

func TestRotateDisabledUser(t *testing.T) {
    svc, users, _ := testService(t)
    ctx := context.Background()

    pair, err := svc.Login(ctx, "kara", "hunter2hunter2")
    require.NoError(t, err)

    u := users.byID[1]
    u.Disabled = true
    users.byID[1] = u

    _, err = svc.Rotate(ctx, pair.Refresh.Raw)
    assert.ErrorIs(t, err, repository.ErrInvalidRefreshToken)
}

func TestRotateUnknownToken(t *testing.T) {
    svc, _, _ := testService(t)

    _, err := svc.Rotate(context.Background(), "never issued")
    assert.ErrorIs(t, err, repository.ErrInvalidRefreshToken)
}

func TestLogout(t *testing.T) {
    svc, _, tokens := testService(t)
    ctx := context.Background()

    pair, err := svc.Login(ctx, "kara", "hunter2hunter2")
    require.NoError(t, err)

    require.NoError(t, svc.Logout(ctx, pair.Refresh.Raw))
    for _, r := range tokens.rows {
        assert.NotNil(t, r.RevokedAt)
    }

    // logging out twice is a no-op, unknown tokens are rejected
    assert.NoError(t, svc.Logout(ctx, pair.Refresh.Raw))
    assert.ErrorIs(t, svc.Logout(ctx, "never issued"), repository.ErrInvalidRefreshToken)

    _, err = svc.Rotate(ctx, pair.Refresh.Raw)
    assert.ErrorIs(t, err, repository.ErrInvalidRefreshToken)
}
