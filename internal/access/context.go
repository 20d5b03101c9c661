package access

import (
	"time"

	"github.com/voltgrid/voltgrid/internal/models"
)

// AccessContext is the strongly-typed authorization view of one request:
// the caller, their effective permission set and their access scope, resolved
// once by the middleware and passed explicitly through the call chain.
// Handlers never re-derive any of this ad hoc.
type AccessContext struct {
	User        *models.User
	Permissions PermissionSet
	Scope       Scope
	ResolvedAt  time.Time
}

// Has reports whether the caller holds the permission. System admins
// short-circuit every per-resource check.
func (a *AccessContext) Has(code string) bool {
	if a == nil {
		return false
	}
	if a.Permissions.Has(PermSystemAdmin) {
		return true
	}
	return a.Permissions.Has(code)
}

// UserID returns the caller's id, or empty for a nil context.
func (a *AccessContext) UserID() string {
	if a == nil || a.User == nil {
		return ""
	}
	return a.User.ID
}

// OrganizationID returns the organization the caller is confined to, or empty
// when unrestricted.
func (a *AccessContext) OrganizationID() string {
	if a == nil || a.Scope.OrganizationID == nil {
		return ""
	}
	return *a.Scope.OrganizationID
}

// DepartmentID returns the department the caller is confined to, or empty
// when unrestricted within their organization.
func (a *AccessContext) DepartmentID() string {
	if a == nil || a.Scope.DepartmentID == nil {
		return ""
	}
	return *a.Scope.DepartmentID
}
