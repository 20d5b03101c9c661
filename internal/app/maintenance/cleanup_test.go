package maintenance

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
	"github.com/voltgrid/voltgrid/internal/services"
)

func setupMaintenanceTest(t *testing.T) (*gorm.DB, *access.Engine) {
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

	engine, err := access.NewEngine(db, access.EngineConfig{})
	require.NoError(t, err)
	return db, engine
}

func TestRunOncePrunesExpiredOverrides(t *testing.T) {
	db, engine := setupMaintenanceTest(t)
	now := time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC)

	user := models.User{Username: "pruned", Email: "pruned@example.com", Password: "hashed", IsActive: true}
	require.NoError(t, db.Create(&user).Error)

	expiredUntil := now.Add(-time.Hour)
	activeUntil := now.Add(time.Hour)
	overrides := []models.PermissionOverride{
		{UserID: user.ID, PermissionID: "device.view", GrantedAt: now.Add(-48 * time.Hour), ValidUntil: &expiredUntil, IsActive: true},
		{UserID: user.ID, PermissionID: "device.edit", GrantedAt: now.Add(-time.Hour), ValidUntil: &activeUntil, IsActive: true},
		{UserID: user.ID, PermissionID: "device.delete", GrantedAt: now.Add(-time.Hour), IsActive: true},
	}
	require.NoError(t, db.Create(&overrides).Error)

	cleaner := NewCleaner(engine, nil, nil, nil, WithNow(func() time.Time { return now }))
	require.NoError(t, cleaner.RunOnce(t.Context()))

	var remaining int64
	require.NoError(t, db.Model(&models.PermissionOverride{}).Where("user_id = ?", user.ID).Count(&remaining).Error)
	require.EqualValues(t, 2, remaining)
}

func TestRunOnceEnforcesAuditRetention(t *testing.T) {
	db, engine := setupMaintenanceTest(t)

	audit, err := services.NewAuditService(db)
	require.NoError(t, err)

	old := models.AuditLog{Action: "auth.login", Result: "success", CreatedAt: time.Now().AddDate(0, 0, -120)}
	recent := models.AuditLog{Action: "auth.login", Result: "success", CreatedAt: time.Now().Add(-time.Hour)}
	require.NoError(t, db.Create(&old).Error)
	require.NoError(t, db.Create(&recent).Error)

	cleaner := NewCleaner(engine, audit, nil, nil, WithAuditRetentionDays(90))
	require.NoError(t, cleaner.RunOnce(t.Context()))

	var remaining int64
	require.NoError(t, db.Model(&models.AuditLog{}).Count(&remaining).Error)
	require.EqualValues(t, 1, remaining)
}

func TestRunOnceMarksStaleDevicesOffline(t *testing.T) {
	db, engine := setupMaintenanceTest(t)
	now := time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC)

	audit, err := services.NewAuditService(db)
	require.NoError(t, err)
	devices, err := services.NewDeviceService(db, engine, audit, services.WithDeviceClock(func() time.Time { return now }))
	require.NoError(t, err)

	org := models.Organization{Name: "Grid North"}
	require.NoError(t, db.Create(&org).Error)
	model := models.DeviceModel{Name: "PM-100", Category: "power"}
	require.NoError(t, db.Create(&model).Error)

	staleSeen := now.Add(-time.Hour)
	freshSeen := now.Add(-time.Minute)
	stale := models.Device{SerialNumber: "SN-STALE", Name: "stale", OrganizationID: org.ID, ModelID: model.ID, IsOnline: true, LastSeenAt: &staleSeen}
	fresh := models.Device{SerialNumber: "SN-FRESH", Name: "fresh", OrganizationID: org.ID, ModelID: model.ID, IsOnline: true, LastSeenAt: &freshSeen}
	require.NoError(t, db.Create(&stale).Error)
	require.NoError(t, db.Create(&fresh).Error)

	cleaner := NewCleaner(engine, nil, devices, nil,
		WithNow(func() time.Time { return now }),
		WithStaleDeviceThreshold(5*time.Minute))
	require.NoError(t, cleaner.RunOnce(t.Context()))

	var got models.Device
	require.NoError(t, db.First(&got, "id = ?", stale.ID).Error)
	require.False(t, got.IsOnline)

	got = models.Device{}
	require.NoError(t, db.First(&got, "id = ?", fresh.ID).Error)
	require.True(t, got.IsOnline)
}

func TestRunOncePrunesOldTelemetry(t *testing.T) {
	db, engine := setupMaintenanceTest(t)
	now := time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC)

	audit, err := services.NewAuditService(db)
	require.NoError(t, err)
	devices, err := services.NewDeviceService(db, engine, audit)
	require.NoError(t, err)
	telemetry, err := services.NewTelemetryService(db, devices, services.WithTelemetryClock(func() time.Time { return now }))
	require.NoError(t, err)

	org := models.Organization{Name: "Grid South"}
	require.NoError(t, db.Create(&org).Error)
	model := models.DeviceModel{Name: "PM-200", Category: "power"}
	require.NoError(t, db.Create(&model).Error)
	device := models.Device{SerialNumber: "SN-TEL", Name: "meter", OrganizationID: org.ID, ModelID: model.ID}
	require.NoError(t, db.Create(&device).Error)

	readings := []models.TelemetryReading{
		{DeviceID: device.ID, Kind: "power", Value: 120, RecordedAt: now.AddDate(0, -2, 0)},
		{DeviceID: device.ID, Kind: "power", Value: 130, RecordedAt: now.Add(-time.Hour)},
	}
	require.NoError(t, db.Create(&readings).Error)

	cleaner := NewCleaner(engine, nil, nil, telemetry,
		WithNow(func() time.Time { return now }),
		WithTelemetryRetention(30*24*time.Hour))
	require.NoError(t, cleaner.RunOnce(t.Context()))

	var remaining int64
	require.NoError(t, db.Model(&models.TelemetryReading{}).Where("device_id = ?", device.ID).Count(&remaining).Error)
	require.EqualValues(t, 1, remaining)
}

func TestStartRegistersJobs(t *testing.T) {
	_, engine := setupMaintenanceTest(t)

	cleaner := NewCleaner(engine, nil, nil, nil)
	require.NoError(t, cleaner.Start())
	<-cleaner.Stop().Done()
}
