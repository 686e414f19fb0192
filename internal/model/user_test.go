package model

import (
    "testing"

    "github.com/stretchr/testify/assert"
)

func TestRoleNames(t *testing.T) {
    assert.Equal(t, "admin", RoleName(RoleAdmin))
    assert.Equal(t, "owner", RoleName(RoleOwner))
    assert.Equal(t, "user", RoleName(RoleUser))
    assert.Equal(t, "", RoleName(99))

    for _, name := range []string{"admin", "owner", "user"} {
        id, ok := RoleByName(name)
        assert.True(t, ok, name)
        assert.Equal(t, name, RoleName(id))
    }
    _, ok := RoleByName("superuser")
    assert.False(t, ok)
}

func TestUserIsAdmin(t *testing.T) {
    assert.True(t, User{RoleID: RoleAdmin}.IsAdmin())
    assert.False(t, User{RoleID: RoleOwner}.IsAdmin())
}

func TestFolderIsRoot(t *testing.T) {
    assert.True(t, Folder{Name: RootFolderName}.IsRoot())
    assert.False(t, Folder{Name: "lab"}.IsRoot())
}
