package utils

import (
    "testing"

    "github.com/stretchr/testify/assert"
)

func TestSlugify(t *testing.T) {
    assert.Equal(t, "west-wing", Slugify("  West Wing "))
    assert.Equal(t, "lab", Slugify("lab"))
    assert.Equal(t, "a-b-c", Slugify("A B C"))
}

func TestFolderTagName(t *testing.T) {
    assert.Equal(t, "folder-acme-corp-west-wing-tag", FolderTagName("Acme Corp", "West Wing"))
}

func TestRootFolderTagName(t *testing.T) {
    assert.Equal(t, "folder-root-tenant-42-tag", RootFolderTagName(42))
}
