package access

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegisterPreventsDuplicates(t *testing.T) {
	code := "test.unique_code"
	require.NoError(t, Register(&Definition{Code: code, Group: "test"}))
	t.Cleanup(func() {
		removeDefinition(code)
	})

	require.Error(t, Register(&Definition{Code: code, Group: "test"}))
}

func TestRegisterDerivesResourceAndAction(t *testing.T) {
	code := "gateway.reboot"
	require.NoError(t, Register(&Definition{Code: code, Group: "test"}))
	t.Cleanup(func() {
		removeDefinition(code)
	})

	def, ok := Lookup(code)
	require.True(t, ok)
	require.Equal(t, "gateway", def.Resource)
	require.Equal(t, "reboot", def.Action)
}

func TestCatalogListPermissionsFiltersByResource(t *testing.T) {
	db := setupAccessTestDB(t)

	catalog, err := NewCatalog(db)
	require.NoError(t, err)

	perms, err := catalog.ListPermissions(context.Background(), CatalogFilter{Resource: "device"})
	require.NoError(t, err)
	require.NotEmpty(t, perms)
	for _, perm := range perms {
		require.Equal(t, "device", perm.Resource)
	}
}

func TestCatalogRolePermissions(t *testing.T) {
	db := setupAccessTestDB(t)

	role := createRoleWithPermissions(t, db, "viewer", "device.view", "telemetry.view")
	catalog, err := NewCatalog(db)
	require.NoError(t, err)

	codes, err := catalog.RolePermissions(context.Background(), role.ID)
	require.NoError(t, err)
	require.Equal(t, []string{"device.view", "telemetry.view"}, codes)

	_, err = catalog.RolePermissions(context.Background(), "missing-role")
	require.ErrorIs(t, err, ErrUnknownRole)
}
