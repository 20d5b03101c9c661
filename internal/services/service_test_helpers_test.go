package services

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/voltgrid/voltgrid/internal/access"
	"github.com/voltgrid/voltgrid/internal/database"
	"github.com/voltgrid/voltgrid/internal/models"
)

func setupServiceTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, database.AutoMigrate(db))
	require.NoError(t, database.SeedData(db))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	return db
}

func newTestEngine(t *testing.T, db *gorm.DB) *access.Engine {
	t.Helper()

	engine, err := access.NewEngine(db, access.EngineConfig{})
	require.NoError(t, err)
	return engine
}

func createOrg(t *testing.T, db *gorm.DB, name string) *models.Organization {
	t.Helper()

	org := &models.Organization{Name: name}
	require.NoError(t, db.Create(org).Error)
	return org
}

func createDept(t *testing.T, db *gorm.DB, orgID, name string) *models.Department {
	t.Helper()

	dept := &models.Department{OrganizationID: orgID, Name: name}
	require.NoError(t, db.Create(dept).Error)
	return dept
}

func createUser(t *testing.T, db *gorm.DB, username string, orgID, deptID *string) *models.User {
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

func grantRole(t *testing.T, db *gorm.DB, user *models.User, roleID string) {
	t.Helper()

	assignment := &models.RoleAssignment{
		UserID:     user.ID,
		RoleID:     roleID,
		AssignedAt: time.Now(),
		IsActive:   true,
	}
	require.NoError(t, db.Create(assignment).Error)
}

func actorContext(t *testing.T, engine *access.Engine, user *models.User) *access.AccessContext {
	t.Helper()

	actor, err := engine.BuildContext(t.Context(), user)
	require.NoError(t, err)
	return actor
}

func createDeviceModel(t *testing.T, db *gorm.DB, name, category string) *models.DeviceModel {
	t.Helper()

	model := &models.DeviceModel{Name: name, Category: category}
	require.NoError(t, db.Create(model).Error)
	return model
}

func strPtr(s string) *string { return &s }
