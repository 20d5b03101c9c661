package access

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	apperrors "github.com/voltgrid/voltgrid/pkg/errors"
)

func TestComputeScopeSystemAdminIsUnrestricted(t *testing.T) {
	db := setupAccessTestDB(t)
	ctx := context.Background()

	admin := createRoleWithPermissions(t, db, "platform-admin", PermSystemAdmin)
	user := createTestUser(t, db, "sysadmin", strPtr("org-1"), strPtr("dept-1"))
	assignRole(t, db, user, admin)

	resolver := newTestResolver(t, db, time.Now)
	scopes, err := NewScopeResolver(ResolverSource(resolver))
	require.NoError(t, err)

	scope, err := scopes.ComputeScope(ctx, user)
	require.NoError(t, err)
	require.True(t, scope.IsSystemAdmin)
	require.Nil(t, scope.OrganizationID)
	require.Nil(t, scope.DepartmentID)

	require.NoError(t, scopes.AuthorizeTarget(scope, "another-org", "another-dept"))
}

func TestComputeScopePinsNonAdminToOwnOrgAndDept(t *testing.T) {
	db := setupAccessTestDB(t)
	ctx := context.Background()

	viewer := createRoleWithPermissions(t, db, "viewer", "device.view")
	user := createTestUser(t, db, "member", strPtr("org-1"), strPtr("dept-1"))
	assignRole(t, db, user, viewer)

	resolver := newTestResolver(t, db, time.Now)
	scopes, err := NewScopeResolver(ResolverSource(resolver))
	require.NoError(t, err)

	scope, err := scopes.ComputeScope(ctx, user)
	require.NoError(t, err)
	require.False(t, scope.IsSystemAdmin)
	require.NotNil(t, scope.OrganizationID)
	require.Equal(t, "org-1", *scope.OrganizationID)
	require.NotNil(t, scope.DepartmentID)
	require.Equal(t, "dept-1", *scope.DepartmentID)

	// Own scope always passes, including empty targets.
	require.NoError(t, scopes.AuthorizeTarget(scope, "org-1", "dept-1"))
	require.NoError(t, scopes.AuthorizeTarget(scope, "", ""))

	// Cross-org and cross-dept requests are rejected, never narrowed.
	err = scopes.AuthorizeTarget(scope, "org-2", "")
	require.Error(t, err)
	require.Equal(t, apperrors.ErrScopeViolation.Code, apperrors.FromError(err).Code)

	err = scopes.AuthorizeTarget(scope, "org-1", "dept-2")
	require.Error(t, err)
	require.Equal(t, apperrors.ErrScopeViolation.Code, apperrors.FromError(err).Code)
}

func TestComputeScopeOrgAdminSpansDepartments(t *testing.T) {
	db := setupAccessTestDB(t)
	ctx := context.Background()

	orgAdmin := createRoleWithPermissions(t, db, "org-admin", PermOrganizationManage, "device.view")
	user := createTestUser(t, db, "org-admin-user", strPtr("org-1"), strPtr("dept-1"))
	assignRole(t, db, user, orgAdmin)

	resolver := newTestResolver(t, db, time.Now)
	scopes, err := NewScopeResolver(ResolverSource(resolver))
	require.NoError(t, err)

	scope, err := scopes.ComputeScope(ctx, user)
	require.NoError(t, err)
	require.True(t, scope.IsOrgAdmin)
	require.NotNil(t, scope.OrganizationID)
	require.Nil(t, scope.DepartmentID) // org admins are not pinned to their department

	require.NoError(t, scopes.AuthorizeTarget(scope, "org-1", "dept-2"))
	require.Error(t, scopes.AuthorizeTarget(scope, "org-2", ""))
}

func TestComputeScopeViewAllDepartmentsCrossesDeptOnly(t *testing.T) {
	db := setupAccessTestDB(t)
	ctx := context.Background()

	role := createRoleWithPermissions(t, db, "dept-crosser", "device.view", PermDepartmentViewAll)
	user := createTestUser(t, db, "crosser", strPtr("org-1"), strPtr("dept-1"))
	assignRole(t, db, user, role)

	resolver := newTestResolver(t, db, time.Now)
	scopes, err := NewScopeResolver(ResolverSource(resolver))
	require.NoError(t, err)

	scope, err := scopes.ComputeScope(ctx, user)
	require.NoError(t, err)
	require.True(t, scope.CanViewAllDepartments)

	require.NoError(t, scopes.AuthorizeTarget(scope, "org-1", "dept-2"))
	require.Error(t, scopes.AuthorizeTarget(scope, "org-2", "dept-2"))
}

func TestScopeRevokedAdminLosesElevation(t *testing.T) {
	db := setupAccessTestDB(t)
	ctx := context.Background()

	admin := createRoleWithPermissions(t, db, "platform-admin", PermSystemAdmin)
	user := createTestUser(t, db, "demoted", strPtr("org-1"), nil)
	assignRole(t, db, user, admin)

	overrides, err := NewOverrideStore(db)
	require.NoError(t, err)
	_, err = overrides.Revoke(ctx, OverrideInput{
		UserID:         user.ID,
		PermissionCode: PermSystemAdmin,
		Actor:          "security",
	})
	require.NoError(t, err)

	resolver := newTestResolver(t, db, time.Now)
	scopes, err := NewScopeResolver(ResolverSource(resolver))
	require.NoError(t, err)

	scope, err := scopes.ComputeScope(ctx, user)
	require.NoError(t, err)
	require.False(t, scope.IsSystemAdmin)
	require.NotNil(t, scope.OrganizationID)
	require.Error(t, scopes.AuthorizeTarget(scope, "org-2", ""))
}
