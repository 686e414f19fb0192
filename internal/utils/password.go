package utils

import (
    "errors"
    "strings"

    "golang.org/x/crypto/bcrypt"
)

// minPasswordLen is the minimum accepted password length after
// trimming surrounding whitespace.
const minPasswordLen = 8

// ErrInvalidPassword is returned when a supplied password does not
// meet the minimum length requirement. The repository package
// re-exports it so handlers can map it alongside the other
// sentinels.
var ErrInvalidPassword = errors.New("password must be at least 8 characters")

// HashPassword returns bcrypt hash using the given cost.
func HashPassword(plain string, cost int) (string, error) {
    b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
    if err != nil {
        return "", err
    }
    return string(b), nil
}

// VerifyPassword safely compares bcrypt hash and plain password.
// bcrypt's comparison is constant time with respect to the hash.
func VerifyPassword(hash, plain string) bool {
    return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// ValidatePassword checks the minimum length policy and returns
// ErrInvalidPassword when the password is too short.
func ValidatePassword(plain string) error {
    if len(strings.TrimSpace(plain)) < minPasswordLen {
        return ErrInvalidPassword
    }
    return nil
}
