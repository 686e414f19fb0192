// Package auth implements the token-session protocol: password login,
// refresh-token rotation and logout.  Access tokens are short-lived
// signed JWTs verified statelessly; refresh tokens are opaque random
// values stored hashed server-side, which is what keeps them
// revocable.  The split exists so that ordinary requests avoid a
// store lookup while sessions can still be killed.
package auth

import (
    "context"
    "time"

    "github.com/google/uuid"

    "github.com/iliyamo/device-fleet/internal/model"
    "github.com/iliyamo/device-fleet/internal/repository"
    "github.com/iliyamo/device-fleet/internal/utils"
)

// UserStore is the slice of the user repository the session service
// needs.  Implemented by repository.UserRepo.
type UserStore interface {
    GetByUsername(ctx context.Context, username string) (model.User, error)
    GetByID(ctx context.Context, id uint64) (model.User, error)
    SetLastLogin(ctx context.Context, id uint64, t time.Time) error
}

// TokenStore persists refresh tokens.  Implemented by
// repository.TokenRepo.  Rotate must be atomic: of two concurrent
// rotations of the same token exactly one may succeed.
type TokenStore interface {
    Create(ctx context.Context, userID uint64, chainID, tokenHash string, exp time.Time) (uint64, error)
    GetByHash(ctx context.Context, tokenHash string) (model.RefreshToken, error)
    Rotate(ctx context.Context, old model.RefreshToken, newHash string, exp time.Time) (uint64, error)
    RevokeChain(ctx context.Context, chainID string) error
}

// Config carries the token parameters the service needs; it is a
// subset of the application config so tests can construct it
// directly.
type Config struct {
    JWTSecret      string
    JWTAlg         string
    AccessTTLMin   int
    RefreshTTLDays int
}

// TokenPair is what login and rotation hand back to the transport
// layer: a signed access token plus the raw refresh value for the
// cookie.
type TokenPair struct {
    User    model.User
    Access  utils.AccessToken
    Refresh utils.RefreshToken
}

// Service implements login, rotation and logout over the stores.
type Service struct {
    Users  UserStore
    Tokens TokenStore
    Cfg    Config
}

func NewService(users UserStore, tokens TokenStore, cfg Config) *Service {
    return &Service{Users: users, Tokens: tokens, Cfg: cfg}
}

// snapshot builds the public profile embedded in access tokens.
func snapshot(u model.User) utils.UserSnapshot {
    return utils.UserSnapshot{
        ID:       u.ID,
        Username: u.Username,
        RoleID:   u.RoleID,
        EntityID: u.EntityID,
    }
}

// mint issues a fresh access/refresh pair for the user and persists
// the refresh hash under the given chain id.
func (s *Service) mint(ctx context.Context, u model.User, chainID string) (TokenPair, error) {
    access, err := utils.NewAccessToken(s.Cfg.JWTSecret, s.Cfg.JWTAlg, snapshot(u), s.Cfg.AccessTTLMin)
    if err != nil {
        return TokenPair{}, err
    }
    refresh, err := utils.NewRefreshToken(s.Cfg.RefreshTTLDays)
    if err != nil {
        return TokenPair{}, err
    }
    if _, err := s.Tokens.Create(ctx, u.ID, chainID, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
        return TokenPair{}, err
    }
    return TokenPair{User: u, Access: access, Refresh: refresh}, nil
}

// Login verifies the credentials and starts a new refresh-token
// chain.  An unknown username, a wrong password and a disabled
// account all produce the same ErrInvalidCredentials so the endpoint
// cannot be used to enumerate accounts.
func (s *Service) Login(ctx context.Context, username, password string) (TokenPair, error) {
    u, err := s.Users.GetByUsername(ctx, username)
    if err != nil {
        if err == repository.ErrUserNotFound {
            return TokenPair{}, repository.ErrInvalidCredentials
        }
        return TokenPair{}, err
    }
    if u.Disabled || !utils.VerifyPassword(u.HashedPassword, password) {
        return TokenPair{}, repository.ErrInvalidCredentials
    }
    now := time.Now().UTC()
    if err := s.Users.SetLastLogin(ctx, u.ID, now); err != nil {
        return TokenPair{}, err
    }
    u.LastLogin = now
    return s.mint(ctx, u, uuid.NewString())
}

// Rotate exchanges a presented refresh token for a new pair.  The
// rotation is strictly forward-only: once a token has been rotated
// away it can never succeed again.  Presenting a superseded token is
// treated as a reuse signal (the raw value must have leaked, or a
// client lost a race long ago) and revokes the entire chain before
// failing.  Revoked and expired tokens simply fail.  Concurrent
// rotations of the same active token are resolved by the store's
// compare-and-swap: the loser observes ErrInvalidRefreshToken.
func (s *Service) Rotate(ctx context.Context, raw string) (TokenPair, error) {
    t, err := s.Tokens.GetByHash(ctx, utils.HashRefreshRaw(raw))
    if err != nil {
        return TokenPair{}, err
    }
    if t.RevokedAt != nil {
        return TokenPair{}, repository.ErrInvalidRefreshToken
    }
    if t.ReplacedBy != nil {
        // Reuse of a rotated-away token: kill the whole chain.
        if err := s.Tokens.RevokeChain(ctx, t.ChainID); err != nil {
            return TokenPair{}, err
        }
        return TokenPair{}, repository.ErrInvalidRefreshToken
    }
    if time.Now().UTC().After(t.ExpiresAt) {
        return TokenPair{}, repository.ErrInvalidRefreshToken
    }
    u, err := s.Users.GetByID(ctx, t.UserID)
    if err != nil {
        return TokenPair{}, repository.ErrInvalidRefreshToken
    }
    if u.Disabled {
        return TokenPair{}, repository.ErrInvalidRefreshToken
    }
    access, err := utils.NewAccessToken(s.Cfg.JWTSecret, s.Cfg.JWTAlg, snapshot(u), s.Cfg.AccessTTLMin)
    if err != nil {
        return TokenPair{}, err
    }
    refresh, err := utils.NewRefreshToken(s.Cfg.RefreshTTLDays)
    if err != nil {
        return TokenPair{}, err
    }
    if _, err := s.Tokens.Rotate(ctx, t, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
        return TokenPair{}, err
    }
    return TokenPair{User: u, Access: access, Refresh: refresh}, nil
}

// Logout revokes the presented token's whole chain.  Revoking an
// already-revoked session is a no-op; an unknown value is rejected.
func (s *Service) Logout(ctx context.Context, raw string) error {
    t, err := s.Tokens.GetByHash(ctx, utils.HashRefreshRaw(raw))
    if err != nil {
        return err
    }
    if t.RevokedAt != nil {
        return nil
    }
    return s.Tokens.RevokeChain(ctx, t.ChainID)
}
