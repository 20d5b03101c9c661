package services

import (
	"testing"

	"github.com/stretchr/testify/require"

	apperrors "github.com/voltgrid/voltgrid/pkg/errors"
)

func TestRoleServiceCreateWithPermissions(t *testing.T) {
	db := setupServiceTestDB(t)
	engine := newTestEngine(t, db)
	svc, err := NewRoleService(db, engine, nil)
	require.NoError(t, err)

	role, err := svc.Create(t.Context(), "admin", CreateRoleInput{
		Name:            "Meter Reader",
		Description:     "Reads meters",
		PermissionCodes: []string{"device.view", "telemetry.view"},
	})
	require.NoError(t, err)
	require.Len(t, role.Permissions, 2)
	require.False(t, role.IsSystem)
}

func TestRoleServiceCreateRejectsUnknownPermission(t *testing.T) {
	db := setupServiceTestDB(t)
	engine := newTestEngine(t, db)
	svc, err := NewRoleService(db, engine, nil)
	require.NoError(t, err)

	_, err = svc.Create(t.Context(), "admin", CreateRoleInput{
		Name:            "Broken",
		PermissionCodes: []string{"no.such.permission"},
	})
	require.Error(t, err)
	require.Equal(t, apperrors.ErrBadRequest.Code, apperrors.FromError(err).Code)
}

func TestRoleServiceSystemRolesImmutable(t *testing.T) {
	db := setupServiceTestDB(t)
	engine := newTestEngine(t, db)
	svc, err := NewRoleService(db, engine, nil)
	require.NoError(t, err)

	_, err = svc.SetPermissions(t.Context(), "admin", "viewer", []string{"device.view"})
	require.ErrorIs(t, err, ErrSystemRoleImmutable)

	err = svc.Delete(t.Context(), "admin", "platform-admin")
	require.ErrorIs(t, err, ErrSystemRoleImmutable)
}

func TestRoleServiceSetPermissionsInvalidatesHolders(t *testing.T) {
	db := setupServiceTestDB(t)
	engine := newTestEngine(t, db)
	svc, err := NewRoleService(db, engine, nil)
	require.NoError(t, err)

	role, err := svc.Create(t.Context(), "admin", CreateRoleInput{
		Name:            "Operators",
		PermissionCodes: []string{"device.view"},
	})
	require.NoError(t, err)

	user := createUser(t, db, "operator", nil, nil)
	grantRole(t, db, user, role.ID)

	set, err := engine.Cache.Get(t.Context(), user.ID)
	require.NoError(t, err)
	require.True(t, set.Has("device.view"))
	require.False(t, set.Has("device.edit"))

	_, err = svc.SetPermissions(t.Context(), "admin", role.ID, []string{"device.view", "device.edit"})
	require.NoError(t, err)

	// Holder's cached set was dropped, so the change is visible immediately.
	set, err = engine.Cache.Get(t.Context(), user.ID)
	require.NoError(t, err)
	require.True(t, set.Has("device.edit"))
}

func TestRoleServiceAssignAndRevoke(t *testing.T) {
	db := setupServiceTestDB(t)
	engine := newTestEngine(t, db)
	svc, err := NewRoleService(db, engine, nil)
	require.NoError(t, err)

	user := createUser(t, db, "subject", nil, nil)

	_, err = svc.AssignRole(t.Context(), AssignRoleInput{
		UserID: user.ID,
		RoleID: "viewer",
		Actor:  "admin",
	})
	require.NoError(t, err)

	set, err := engine.Cache.Get(t.Context(), user.ID)
	require.NoError(t, err)
	require.True(t, set.Has("device.view"))

	require.NoError(t, svc.RevokeRole(t.Context(), "admin", user.ID, "viewer"))

	set, err = engine.Cache.Get(t.Context(), user.ID)
	require.NoError(t, err)
	require.False(t, set.Has("device.view"))

	// Revoking again finds no active assignment.
	err = svc.RevokeRole(t.Context(), "admin", user.ID, "viewer")
	require.Error(t, err)
	require.Equal(t, apperrors.ErrNotFound.Code, apperrors.FromError(err).Code)

	// Re-assign reactivates the existing row instead of inserting a duplicate.
	_, err = svc.AssignRole(t.Context(), AssignRoleInput{
		UserID: user.ID,
		RoleID: "viewer",
		Actor:  "admin",
	})
	require.NoError(t, err)

	set, err = engine.Cache.Get(t.Context(), user.ID)
	require.NoError(t, err)
	require.True(t, set.Has("device.view"))
}

func TestRoleServiceDeleteRemovesAssignments(t *testing.T) {
	db := setupServiceTestDB(t)
	engine := newTestEngine(t, db)
	svc, err := NewRoleService(db, engine, nil)
	require.NoError(t, err)

	role, err := svc.Create(t.Context(), "admin", CreateRoleInput{
		Name:            "Temporary",
		PermissionCodes: []string{"device.view"},
	})
	require.NoError(t, err)

	user := createUser(t, db, "subject", nil, nil)
	grantRole(t, db, user, role.ID)

	set, err := engine.Cache.Get(t.Context(), user.ID)
	require.NoError(t, err)
	require.True(t, set.Has("device.view"))

	require.NoError(t, svc.Delete(t.Context(), "admin", role.ID))

	set, err = engine.Cache.Get(t.Context(), user.ID)
	require.NoError(t, err)
	require.False(t, set.Has("device.view"))

	_, err = svc.Get(t.Context(), role.ID)
	require.ErrorIs(t, err, ErrRoleNotFound)
}
