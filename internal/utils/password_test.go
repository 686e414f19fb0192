package utils

import (
    "testing"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
)

func TestPasswordHashAndVerify(t *testing.T) {
    hash, err := HashPassword("correct horse", 4)
    require.NoError(t, err)
    require.NotEqual(t, "correct horse", hash)

    assert.True(t, VerifyPassword(hash, "correct horse"))
    assert.False(t, VerifyPassword(hash, "wrong horse"))
    assert.False(t, VerifyPassword("not-a-hash", "correct horse"))
}

func TestValidatePassword(t *testing.T) {
    assert.NoError(t, ValidatePassword("longenough"))
    assert.ErrorIs(t, ValidatePassword("short"), ErrInvalidPassword)
    // surrounding whitespace does not count toward the minimum
    assert.ErrorIs(t, ValidatePassword("  a b c  "), ErrInvalidPassword)
}
