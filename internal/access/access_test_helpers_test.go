package access

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/voltgrid/voltgrid/internal/models"
)

func setupAccessTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&models.Organization{},
		&models.Department{},
		&models.User{},
		&models.Role{},
		&models.Permission{},
		&models.PermissionGroup{},
		&models.RoleAssignment{},
		&models.PermissionOverride{},
	))

	seedRegisteredPermissions(t, db)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	return db
}

func seedRegisteredPermissions(t *testing.T, db *gorm.DB) {
	t.Helper()

	for code, def := range AllDefinitions() {
		perm := models.Permission{
			BaseModel:   models.BaseModel{ID: code},
			Resource:    def.Resource,
			Action:      def.Action,
			Description: def.Description,
		}
		require.NoError(t, db.Create(&perm).Error)
	}
}

func createTestUser(t *testing.T, db *gorm.DB, username string, orgID, deptID *string) *models.User {
	t.Helper()

	user := &models.User{
		Username:       username,
		Email:          username + "@example.com",
		Password:       "hashed",
		IsActive:       true,
		OrganizationID: orgID,
		DepartmentID:   deptID,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func createRoleWithPermissions(t *testing.T, db *gorm.DB, name string, codes ...string) *models.Role {
	t.Helper()

	role := &models.Role{Name: name}
	require.NoError(t, db.Create(role).Error)

	for _, code := range codes {
		var perm models.Permission
		require.NoError(t, db.First(&perm, "id = ?", code).Error)
		require.NoError(t, db.Model(role).Association("Permissions").Append(&perm))
	}
	return role
}

func assignRole(t *testing.T, db *gorm.DB, user *models.User, role *models.Role) *models.RoleAssignment {
	t.Helper()

	assignment := &models.RoleAssignment{
		UserID:     user.ID,
		RoleID:     role.ID,
		AssignedAt: time.Now(),
		IsActive:   true,
	}
	require.NoError(t, db.Create(assignment).Error)
	return assignment
}

func newTestResolver(t *testing.T, db *gorm.DB, now func() time.Time) *Resolver {
	t.Helper()

	assignments, err := NewAssignmentStore(db)
	require.NoError(t, err)
	overrides, err := NewOverrideStore(db, WithOverrideClock(now))
	require.NoError(t, err)
	resolver, err := NewResolver(assignments, overrides, WithResolverClock(now))
	require.NoError(t, err)
	return resolver
}

func strPtr(s string) *string { return &s }

func timePtr(ts time.Time) *time.Time { return &ts }
