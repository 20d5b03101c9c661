package access

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEngineBuildContext(t *testing.T) {
	db := setupAccessTestDB(t)
	ctx := context.Background()

	engine, err := NewEngine(db, EngineConfig{})
	require.NoError(t, err)

	viewer := createRoleWithPermissions(t, db, "viewer", "device.view")
	user := createTestUser(t, db, "ctx-user", strPtr("org-1"), strPtr("dept-1"))
	assignRole(t, db, user, viewer)

	accessCtx, err := engine.BuildContext(ctx, user)
	require.NoError(t, err)
	require.True(t, accessCtx.Has("device.view"))
	require.False(t, accessCtx.Has("device.delete"))
	require.Equal(t, "org-1", accessCtx.OrganizationID())
	require.Equal(t, "dept-1", accessCtx.DepartmentID())
}

func TestAccessContextSystemAdminShortCircuits(t *testing.T) {
	db := setupAccessTestDB(t)
	ctx := context.Background()

	engine, err := NewEngine(db, EngineConfig{})
	require.NoError(t, err)

	admin := createRoleWithPermissions(t, db, "platform-admin", PermSystemAdmin)
	user := createTestUser(t, db, "ctx-admin", nil, nil)
	assignRole(t, db, user, admin)

	accessCtx, err := engine.BuildContext(ctx, user)
	require.NoError(t, err)

	// Any per-resource check passes once system.admin is held.
	require.True(t, accessCtx.Has("device.delete"))
	require.True(t, accessCtx.Has("role.manage"))
	require.Equal(t, "", accessCtx.OrganizationID())
}

func TestEngineLoadUserFailsClosed(t *testing.T) {
	db := setupAccessTestDB(t)
	ctx := context.Background()

	engine, err := NewEngine(db, EngineConfig{})
	require.NoError(t, err)

	_, err = engine.LoadUser(ctx, "missing")
	require.ErrorIs(t, err, ErrUnknownUser)

	inactive := createTestUser(t, db, "inactive-user", nil, nil)
	require.NoError(t, db.Model(inactive).Update("is_active", false).Error)

	_, err = engine.LoadUser(ctx, inactive.ID)
	require.ErrorIs(t, err, ErrUnknownUser)
}
