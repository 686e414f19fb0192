package repository

import (
    "errors"
    "testing"

    "github.com/stretchr/testify/assert"

    "github.com/iliyamo/device-fleet/internal/utils"
)

// The password-policy sentinel lives in utils next to the validation;
// the re-export here must stay the same value so errors.Is matches
// regardless of which package a caller imported it from.
func TestInvalidPasswordReExport(t *testing.T) {
    assert.True(t, errors.Is(utils.ValidatePassword("short"), ErrInvalidPassword))
    assert.True(t, errors.Is(ErrInvalidPassword, utils.ErrInvalidPassword))
}
