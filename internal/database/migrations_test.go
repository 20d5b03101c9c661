package database

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/voltgrid/voltgrid/internal/access"
	"github.com/voltgrid/voltgrid/internal/models"
)

func TestAutoMigrateAndSeed(t *testing.T) {
	db, err := Open(Config{Driver: "sqlite", Path: ":memory:", DSN: "file:migrations_test?mode=memory&cache=shared"})
	require.NoError(t, err)

	require.NoError(t, AutoMigrateAndSeed(db))

	var permCount int64
	require.NoError(t, db.Model(&models.Permission{}).Count(&permCount).Error)
	require.EqualValues(t, len(access.AllDefinitions()), permCount)

	var adminRole models.Role
	require.NoError(t, db.Preload("Permissions").First(&adminRole, "id = ?", "platform-admin").Error)
	require.True(t, adminRole.IsSystem)
	require.Len(t, adminRole.Permissions, 1)
	require.Equal(t, access.PermSystemAdmin, adminRole.Permissions[0].ID)

	// Seeding twice must not duplicate anything.
	require.NoError(t, SeedData(db))
	require.NoError(t, db.Model(&models.Permission{}).Count(&permCount).Error)
	require.EqualValues(t, len(access.AllDefinitions()), permCount)
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(Config{Driver: "oracle"})
	require.Error(t, err)
}

func TestBuildPostgresDSNDefaults(t *testing.T) {
	dsn, err := buildPostgresDSN(Config{User: "voltgrid", Name: "voltgrid"})
	require.NoError(t, err)
	require.Contains(t, dsn, "host=localhost")
	require.Contains(t, dsn, "port=5432")
	require.Contains(t, dsn, "sslmode=disable")
}

func TestBuildMySQLDSNDefaults(t *testing.T) {
	dsn, err := buildMySQLDSN(Config{User: "voltgrid", Password: "secret", Name: "voltgrid"})
	require.NoError(t, err)
	require.Contains(t, dsn, "voltgrid:secret@tcp(127.0.0.1:3306)/voltgrid")
	require.Contains(t, dsn, "parseTime=True")
}
