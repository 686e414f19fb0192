package utils

import (
    "fmt"
    "strings"
)

// Slugify lowercases a name and replaces spaces with dashes.  It is
// used to derive the auto-generated tag names attached to folders.
func Slugify(name string) string {
    return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "-")
}

// FolderTagName derives the descriptive tag name attached to a newly
// created folder: folder-<tenant-slug>-<folder-slug>-tag.  Embedding
// the tenant slug keeps the generated names practically unique even
// though tag names are only enforced unique per tenant.
func FolderTagName(tenantName, folderName string) string {
    return fmt.Sprintf("folder-%s-%s-tag", Slugify(tenantName), Slugify(folderName))
}

// RootFolderTagName derives the tag name attached to a tenant's
// synthetic root folder.
func RootFolderTagName(tenantID uint64) string {
    return fmt.Sprintf("folder-root-tenant-%d-tag", tenantID)
}
