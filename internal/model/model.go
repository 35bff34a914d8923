// Package model defines domain entities shared by the vault services.
package model

import (
	"strings"
	"time"
)

// Role identifies a fixed set of grantable permissions. Roles are plain
// identifiers, not hierarchical objects.
type Role string

const (
	RoleSuperAdmin Role = "super_admin"
	RoleEditor     Role = "editor"
	RoleSMM        Role = "smm"
	RoleViewer     Role = "viewer"
)

// Permission tokens. PermAll is the wildcard: a role holding it passes
// every permission check.
const (
	PermAll           = "all"
	PermEditContent   = "edit_content"
	PermManageCourses = "manage_courses"
	PermManageMedia   = "manage_media"
	PermManageNews    = "manage_news"
	PermViewMessages  = "view_messages"
)

// rolePermissions is the static role → permission-token table. Checks are
// set-membership lookups, nothing is computed.
var rolePermissions = map[Role][]string{
	RoleSuperAdmin: {PermAll},
	RoleEditor:     {PermEditContent, PermManageCourses, PermManageMedia, PermViewMessages},
	RoleSMM:        {PermManageNews, PermManageMedia, PermViewMessages},
	RoleViewer:     {PermViewMessages},
}

// ParseRole maps a stored role string to a Role. Unrecognized values
// coerce to RoleViewer so a corrupted record can never gain privileges.
func ParseRole(s string) Role {
	switch Role(strings.TrimSpace(s)) {
	case RoleSuperAdmin:
		return RoleSuperAdmin
	case RoleEditor:
		return RoleEditor
	case RoleSMM:
		return RoleSMM
	case RoleViewer:
		return RoleViewer
	default:
		return RoleViewer
	}
}

// Can reports whether the role is authorized for the permission token.
func (r Role) Can(perm string) bool {
	for _, p := range rolePermissions[r] {
		if p == PermAll || p == perm {
			return true
		}
	}
	return false
}

// User is a stored account record. PasswordHash is the opaque encoded
// string produced by the hash engine; it never leaves the credential store.
type User struct {
	ID           string
	Username     string
	Email        string
	Role         Role
	PasswordHash string
	CreatedAt    time.Time
	LastActive   time.Time // zero if the user never logged in
}

// Public returns the hash-stripped projection handed to callers.
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:         u.ID,
		Username:   u.Username,
		Email:      u.Email,
		Role:       u.Role,
		CreatedAt:  u.CreatedAt,
		LastActive: u.LastActive,
	}
}

// PublicUser is a user record without the password hash.
type PublicUser struct {
	ID         string
	Username   string
	Email      string
	Role       Role
	CreatedAt  time.Time
	LastActive time.Time
}

// SessionUser is the snapshot of the authenticated user persisted with the
// session. It never contains the password hash.
type SessionUser struct {
	ID        string
	Username  string
	Email     string
	Role      Role
	CreatedAt time.Time
}

// AuditEntry is a single line of the capped audit log.
type AuditEntry struct {
	UserID    string    `json:"userId"`
	Username  string    `json:"username"`
	Action    string    `json:"action"`
	Target    string    `json:"target,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
