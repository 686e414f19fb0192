package utils // package utils provides helper functions for token creation and hashing

import (
    "crypto/rand"    // secure random number generation
    "crypto/sha256"  // SHA-256 hashing for refresh tokens
    "encoding/hex"   // hex encoding and decoding functions
    "encoding/json"  // serializing the user snapshot claim
    "errors"         // sentinel errors for token parsing
    "time"           // time utilities for generating expirations

    "github.com/golang-jwt/jwt/v5" // JWT library for creating signed tokens
)

// UserSnapshot is the public view of a user embedded in access-token
// claims.  Carrying the snapshot inside the token lets protected
// endpoints identify the caller without a database lookup; anything
// security sensitive (password hash) is deliberately absent.
type UserSnapshot struct {
    ID       uint64 `json:"id"`
    Username string `json:"username"`
    RoleID   uint8  `json:"role_id"`
    EntityID uint64 `json:"entity_id"`
}

// AccessToken represents a signed JWT access token along with its
// expiry.  Access tokens are short-lived and verified statelessly by
// signature and expiry alone, which keeps a store lookup off the hot
// path of every authenticated request.
type AccessToken struct {
    Token string    // the serialized JWT string
    Exp   time.Time // the UTC expiration time
}

// RefreshToken represents a long-lived opaque token used to obtain
// new access tokens.  The Raw field contains the random value handed
// to the client.  In the database only a SHA-256 hash of the raw
// string is stored, so a leaked table cannot be replayed.
type RefreshToken struct {
    Raw string    // raw token string returned to the client
    Exp time.Time // UTC expiration time
}

// ErrUnexpectedAlg is returned when a presented token was signed with
// a different algorithm than the server is configured to accept.
var ErrUnexpectedAlg = errors.New("unexpected signing algorithm")

// ErrInvalidToken is returned when an access token fails signature or
// claim validation.
var ErrInvalidToken = errors.New("invalid access token")

// signingMethod resolves a configured algorithm name to a jwt signing
// method.  Only the HMAC family is supported; anything unrecognized
// falls back to HS256 so a typo in configuration cannot silently
// disable signing.
func signingMethod(alg string) jwt.SigningMethod {
    switch alg {
    case "HS384":
        return jwt.SigningMethodHS384
    case "HS512":
        return jwt.SigningMethodHS512
    default:
        return jwt.SigningMethodHS256
    }
}

// NewAccessToken builds and signs a JWT for a user.  It takes the
// signing secret and algorithm name from configuration, a snapshot of
// the user's public profile, and a TTL in minutes.  The claims carry
// the subject (sub), a serialized user snapshot (user), the role id
// for quick middleware checks, the expiration (exp) and issued-at
// (iat) timestamps.
func NewAccessToken(secret, alg string, snap UserSnapshot, ttlMin int) (AccessToken, error) {
    exp := time.Now().UTC().Add(time.Duration(ttlMin) * time.Minute)
    // The snapshot is embedded as a JSON string rather than a nested
    // object so that its shape is stable across jwt library versions.
    blob, err := json.Marshal(snap)
    if err != nil {
        return AccessToken{}, err
    }
    claims := jwt.MapClaims{
        "sub":  snap.ID,
        "user": string(blob),
        "role": snap.RoleID,
        "exp":  exp.Unix(),
        "iat":  time.Now().UTC().Unix(),
    }
    t := jwt.NewWithClaims(signingMethod(alg), claims)
    signed, err := t.SignedString([]byte(secret))
    if err != nil {
        return AccessToken{}, err
    }
    return AccessToken{Token: signed, Exp: exp}, nil
}

// ParseAccessToken validates a serialized access token and returns
// the embedded user snapshot.  Validation is stateless: signature and
// expiry only.  Tokens signed with an algorithm outside the HMAC
// family are rejected before the signature is checked.
func ParseAccessToken(secret, raw string) (UserSnapshot, error) {
    tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
        if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
            return nil, ErrUnexpectedAlg
        }
        return []byte(secret), nil
    })
    if err != nil || !tok.Valid {
        return UserSnapshot{}, ErrInvalidToken
    }
    claims, ok := tok.Claims.(jwt.MapClaims)
    if !ok {
        return UserSnapshot{}, ErrInvalidToken
    }
    blob, ok := claims["user"].(string)
    if !ok || blob == "" {
        return UserSnapshot{}, ErrInvalidToken
    }
    var snap UserSnapshot
    if err := json.Unmarshal([]byte(blob), &snap); err != nil {
        return UserSnapshot{}, ErrInvalidToken
    }
    return snap, nil
}

// NewRefreshToken returns a cryptographically secure random token
// (raw) and its expiration time.  Refresh tokens live longer than
// access tokens and are exchanged for new token pairs via rotation.
// The ttlDays parameter controls how many days the token is valid.
func NewRefreshToken(ttlDays int) (RefreshToken, error) {
    raw, err := randomHex(48) // 48 bytes -> 96 hex chars
    if err != nil {
        return RefreshToken{}, err
    }
    return RefreshToken{
        Raw: raw,
        Exp: time.Now().UTC().Add(time.Duration(ttlDays) * 24 * time.Hour),
    }, nil
}

// HashRefreshRaw returns the SHA-256 hash of the raw refresh token as
// a hex string.  Storing only the hash in the database prevents
// attackers from using stolen database entries to refresh sessions.
func HashRefreshRaw(raw string) string {
    sum := sha256.Sum256([]byte(raw))
    return hex.EncodeToString(sum[:])
}

// randomHex returns a hex-encoded string generated from n bytes of
// cryptographically secure random data.
func randomHex(n int) (string, error) {
    buf := make([]byte, n)
    if _, err := rand.Read(buf); err != nil {
        return "", err
    }
    return hex.EncodeToString(buf), nil
}
