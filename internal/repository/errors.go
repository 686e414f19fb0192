// Package repository defines error types that are reused across the
// repositories and the service layer. These sentinel values allow
// higher layers such as handlers to distinguish between failure
// scenarios without inspecting SQL driver errors. For example,
// ErrPermissionDenied indicates that the current user lacks the
// role or tenant relationship an operation requires, while
// ErrFolderNotEmpty signals that a folder cannot be deleted while
// subfolders or devices still reference it.
package repository

import (
    "errors"

    "github.com/iliyamo/device-fleet/internal/utils"
)

// Lookup failures. Handlers should translate these into HTTP 404
// responses. Each resource gets its own sentinel so that composite
// operations (e.g. creating a folder under a parent in a tenant) can
// report precisely which reference failed to resolve.
var (
    ErrUserNotFound   = errors.New("user not found")
    ErrTenantNotFound = errors.New("tenant not found")
    ErrFolderNotFound = errors.New("folder not found")
    ErrDeviceNotFound = errors.New("device not found")
    ErrTagNotFound    = errors.New("tag not found")
    ErrEntityNotFound = errors.New("entity not found")
    // ErrParentNotFound is raised when a supplied parent folder id
    // does not resolve. It is distinct from ErrFolderNotFound so the
    // caller can tell "the folder you are editing is gone" from "the
    // parent you pointed at is gone".
    ErrParentNotFound = errors.New("parent folder not found")
)

// Unique-name violations. Handlers should translate these into HTTP
// 409 responses. Uniqueness scopes differ per resource: usernames and
// tenant names are global, folder and tag names are unique per
// tenant, device names are unique per folder.
var (
    ErrUsernameTaken   = errors.New("username already exists")
    ErrTenantNameTaken = errors.New("tenant name already exists")
    ErrFolderNameTaken = errors.New("folder name already taken in tenant")
    ErrTagNameTaken    = errors.New("tag name already taken in tenant")
    ErrDeviceNameTaken = errors.New("device name already taken in folder")
)

// Structural invariant violations in the folder/tag graph. Handlers
// should translate these into HTTP 409 responses.
var (
    // ErrFolderNotEmpty is returned when deleting a folder that still
    // has subfolders or devices. Deletion is forbidden until the
    // subtree is emptied; there is no implicit cascade or reparent.
    ErrFolderNotEmpty = errors.New("folder still has subfolders or devices")
    // ErrRootFolder is returned when deleting a tenant's root folder.
    // The root exists for the tenant's lifetime; it only goes away
    // with the tenant itself.
    ErrRootFolder = errors.New("root folder cannot be deleted")
    // ErrTenantMismatch is returned when attaching a tag to an entity
    // whose owner belongs to a different tenant than the tag.
    ErrTenantMismatch = errors.New("tag and entity belong to different tenants")
)

// Authorization and authentication failures. ErrInvalidCredentials
// and ErrInvalidRefreshToken are deliberately uninformative: the same
// error is produced for an unknown username and a wrong password, and
// for a missing, expired, revoked or superseded refresh token, so
// that callers cannot enumerate accounts or probe token state.
var (
    ErrPermissionDenied      = errors.New("permission denied")
    ErrInvalidCredentials    = errors.New("invalid credentials")
    ErrInvalidRefreshToken   = errors.New("invalid refresh token")
    ErrUserTenantNotAssigned = errors.New("user is not assigned to any tenant")
)

// ErrInvalidPassword is the password-policy sentinel defined next to
// the validation in utils. It is re-exported here so handlers can
// translate it into an HTTP 422 response alongside the other
// sentinels.
var ErrInvalidPassword = utils.ErrInvalidPassword
