package access

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/voltgrid/voltgrid/pkg/errors"

	"github.com/voltgrid/voltgrid/internal/models"
)

// Scope is the organization/department visibility window derived for a
// request. A nil OrganizationID means unrestricted and is only ever produced
// for system admins.
type Scope struct {
	OrganizationID *string `json:"organization_id"`
	DepartmentID   *string `json:"department_id"`

	IsSystemAdmin         bool `json:"is_system_admin"`
	IsOrgAdmin            bool `json:"is_org_admin"`
	IsDeptAdmin           bool `json:"is_dept_admin"`
	CanViewAllDepartments bool `json:"can_view_all_departments"`
}

// PermissionSource abstracts where resolved permission sets come from, so the
// scope resolver works identically through the cache or straight off the
// resolver.
type PermissionSource interface {
	Get(ctx context.Context, userID string) (PermissionSet, error)
}

type resolverSource struct {
	resolver *Resolver
}

func (s resolverSource) Get(ctx context.Context, userID string) (PermissionSet, error) {
	return s.resolver.Resolve(ctx, userID, time.Time{})
}

// ResolverSource adapts a Resolver to the PermissionSource interface.
func ResolverSource(r *Resolver) PermissionSource {
	return resolverSource{resolver: r}
}

// ScopeResolver derives access scopes from resolved permission sets. It is
// the single source of truth for admin status: holding system.admin is the
// only super-admin signal, there is no structural "no organization" shortcut.
type ScopeResolver struct {
	source PermissionSource
}

// NewScopeResolver constructs a ScopeResolver.
func NewScopeResolver(source PermissionSource) (*ScopeResolver, error) {
	if source == nil {
		return nil, errors.New("access: scope resolver requires a permission source")
	}
	return &ScopeResolver{source: source}, nil
}

// ComputeScope derives the caller's visibility window from their resolved
// permission set and their own organization/department membership. A request
// can never widen the scope by passing different ids; mismatches are rejected
// by AuthorizeTarget, not silently narrowed.
func (s *ScopeResolver) ComputeScope(ctx context.Context, user *models.User) (Scope, error) {
	if user == nil {
		return Scope{}, errors.New("access: user is required")
	}

	set, err := s.source.Get(ensureContext(ctx), user.ID)
	if err != nil {
		return Scope{}, fmt.Errorf("access: compute scope: %w", err)
	}

	return ScopeFromSet(user, set), nil
}

// ScopeFromSet derives a scope from an already-resolved permission set.
func ScopeFromSet(user *models.User, set PermissionSet) Scope {
	scope := Scope{
		IsSystemAdmin:         set.Has(PermSystemAdmin),
		IsOrgAdmin:            set.Has(PermOrganizationManage),
		IsDeptAdmin:           set.Has(PermDepartmentManage),
		CanViewAllDepartments: set.Has(PermDepartmentViewAll),
	}

	if scope.IsSystemAdmin {
		return scope // unrestricted
	}

	scope.OrganizationID = user.OrganizationID

	// Org admins see every department of their organization; everyone else
	// with a department is pinned to it.
	if user.DepartmentID != nil && !scope.IsOrgAdmin {
		scope.DepartmentID = user.DepartmentID
	}

	return scope
}

// AuthorizeTarget verifies that a request targeting a specific organization
// and/or department stays inside the caller's scope. Empty target ids mean
// "caller's own scope" and always pass. Violations surface as Forbidden and
// are never downgraded to a narrower query.
func (s *ScopeResolver) AuthorizeTarget(scope Scope, targetOrgID, targetDeptID string) error {
	targetOrgID = strings.TrimSpace(targetOrgID)
	targetDeptID = strings.TrimSpace(targetDeptID)

	if scope.IsSystemAdmin {
		return nil
	}

	if targetOrgID != "" {
		if scope.OrganizationID == nil || *scope.OrganizationID != targetOrgID {
			return apperrors.ErrScopeViolation.WithMessage("requested organization is outside your access scope")
		}
	}

	if targetDeptID != "" && scope.DepartmentID != nil && *scope.DepartmentID != targetDeptID {
		if scope.IsOrgAdmin || scope.CanViewAllDepartments {
			return nil
		}
		return apperrors.ErrScopeViolation.WithMessage("requested department is outside your access scope")
	}

	return nil
}
