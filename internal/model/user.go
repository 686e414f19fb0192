package model

import "time"

// Role identifiers for the fixed set of roles in the `roles` table.
// The numeric ordering doubles as a permission tier: admin outranks
// owner, owner outranks user.  Admin additionally bypasses tenant
// scoping everywhere.
const (
    RoleAdmin uint8 = 1 // roles.id of the global admin role
    RoleOwner uint8 = 2 // roles.id of the tenant owner role
    RoleUser  uint8 = 3 // roles.id of the read-only user role
)

// RoleName maps a role id to its canonical name.  Unknown ids map to
// the empty string.
func RoleName(id uint8) string {
    switch id {
    case RoleAdmin:
        return "admin"
    case RoleOwner:
        return "owner"
    case RoleUser:
        return "user"
    }
    return ""
}

// RoleByName maps a role name back to its id.  The boolean reports
// whether the name is one of the known roles.
func RoleByName(name string) (uint8, bool) {
    switch name {
    case "admin":
        return RoleAdmin, true
    case "owner":
        return RoleOwner, true
    case "user":
        return RoleUser, true
    }
    return 0, false
}

// User represents an application user record as stored in the `user`
// table.  Each field corresponds to a column in the database.  The
// json tags are omitted because these structs are used internally by
// the repository layer; handlers define separate response types with
// appropriate JSON tags.
//
// Fields:
//  ID             – primary key identifier of the user.
//  Username       – globally unique, email-shaped login name.
//  HashedPassword – bcrypt hashed password.
//  RoleID         – foreign key into the roles table.
//  EntityID       – id of the entity owned by this user (for tagging).
//  LastLogin      – timestamp of the most recent successful login.
//  Disabled       – whether the account is blocked from logging in.
//  CreatedAt      – timestamp of creation.
//  UpdatedAt      – timestamp of last update.
type User struct {
    ID             uint64    // user.id
    Username       string    // user.username
    HashedPassword string    // user.hashed_password
    RoleID         uint8     // user.role_id (references roles.id)
    EntityID       uint64    // user.entity_id
    LastLogin      time.Time // user.last_login
    Disabled       bool      // user.disabled
    CreatedAt      time.Time // user.created_at
    UpdatedAt      time.Time // user.updated_at
}

// IsAdmin reports whether the user holds the global admin role.
func (u User) IsAdmin() bool { return u.RoleID == RoleAdmin }

// Role represents a row in the `roles` table.  It maps a small
// integer id to a role name.
//
// Fields:
//  ID   – numeric identifier of the role.
//  Name – unique role name (admin, owner or user).
type Role struct {
    ID   uint8  // roles.id
    Name string // roles.name
}

// RefreshToken models an entry in the `refresh_token` table.  Each
// token belongs to a user and to a rotation chain: every successful
// rotation supersedes exactly one predecessor, recorded through the
// ReplacedBy self-reference, and all tokens minted for one login
// session share the same ChainID.  The plain token value is never
// stored; only its SHA-256 hash.
//
// Fields:
//  ID         – primary key identifier.
//  UserID     – owner of the token.
//  ChainID    – uuid shared by every token of one login session.
//  TokenHash  – SHA-256 hex digest of the raw token value.
//  IssuedAt   – when the token was created.
//  ExpiresAt  – expiration timestamp of the token.
//  RevokedAt  – when the token was revoked (nil if still active).
//  ReplacedBy – id of the successor token (nil until rotated away).
type RefreshToken struct {
    ID         uint64     // refresh_token.id
    UserID     uint64     // refresh_token.user_id
    ChainID    string     // refresh_token.chain_id
    TokenHash  string     // refresh_token.token_hash
    IssuedAt   time.Time  // refresh_token.issued_at
    ExpiresAt  time.Time  // refresh_token.expires_at
    RevokedAt  *time.Time // refresh_token.revoked_at (nullable)
    ReplacedBy *uint64    // refresh_token.replaced_by (nullable)
}
