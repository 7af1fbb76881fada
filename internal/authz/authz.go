// Package authz holds the role/ownership predicate consulted before any
// mutation of catalog or document data.
package authz

import "errors"

// Roles understood by the policy. Elevated users act on any resource
// regardless of ownership.
const (
	RoleAdmin  = "admin"
	RoleMember = "member"
)

// ErrPermissionDenied indicates a role/ownership check failure.
var ErrPermissionDenied = errors.New("permission denied")

// User identifies a requester. Authentication happens upstream; the core only
// sees the resolved identity and role.
type User struct {
	ID   string
	Role string
}

// IsElevated reports whether the user may act on resources they do not own.
func IsElevated(u User) bool {
	return u.Role == RoleAdmin
}

// OwnerID returns the opaque owner identifier for resources the user creates.
func OwnerID(u User) string {
	return u.ID
}

// CanAccess is the single authorization predicate shared by every operation
// that branches on ownership: elevated users see everything, everyone else
// only their own resources.
func CanAccess(u User, resourceOwner string) bool {
	if IsElevated(u) {
		return true
	}
	return u.ID != "" && u.ID == resourceOwner
}
