package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	apperrors "github.com/voltgrid/voltgrid/pkg/errors"
)

func TestDeviceServiceRegisterAndDuplicateSerial(t *testing.T) {
	db := setupServiceTestDB(t)
	engine := newTestEngine(t, db)
	svc, err := NewDeviceService(db, engine, nil)
	require.NoError(t, err)

	org := createOrg(t, db, "Acme Power")
	model := createDeviceModel(t, db, "PM-100", "power")

	admin := createUser(t, db, "root", nil, nil)
	grantRole(t, db, admin, "platform-admin")
	actor := actorContext(t, engine, admin)

	device, err := svc.Register(t.Context(), actor, RegisterDeviceInput{
		SerialNumber:   "SN-001",
		Name:           "Main meter",
		OrganizationID: org.ID,
		ModelID:        model.ID,
	})
	require.NoError(t, err)
	require.Equal(t, org.ID, device.OrganizationID)

	_, err = svc.Register(t.Context(), actor, RegisterDeviceInput{
		SerialNumber:   "SN-001",
		Name:           "Duplicate",
		OrganizationID: org.ID,
		ModelID:        model.ID,
	})
	require.Error(t, err)
	require.Equal(t, apperrors.ErrConflict.Code, apperrors.FromError(err).Code)
}

func TestDeviceServiceCrossOrgAccessDenied(t *testing.T) {
	db := setupServiceTestDB(t)
	engine := newTestEngine(t, db)
	svc, err := NewDeviceService(db, engine, nil)
	require.NoError(t, err)

	orgA := createOrg(t, db, "Org A")
	orgB := createOrg(t, db, "Org B")
	model := createDeviceModel(t, db, "PM-100", "power")

	admin := createUser(t, db, "root", nil, nil)
	grantRole(t, db, admin, "platform-admin")
	sysActor := actorContext(t, engine, admin)

	device, err := svc.Register(t.Context(), sysActor, RegisterDeviceInput{
		SerialNumber:   "SN-B1",
		Name:           "B meter",
		OrganizationID: orgB.ID,
		ModelID:        model.ID,
	})
	require.NoError(t, err)

	outsider := createUser(t, db, "outsider", strPtr(orgA.ID), nil)
	grantRole(t, db, outsider, "org-admin")
	actor := actorContext(t, engine, outsider)

	_, err = svc.Get(t.Context(), actor, device.ID)
	require.Error(t, err)
	require.Equal(t, apperrors.ErrScopeViolation.Code, apperrors.FromError(err).Code)

	// Listing never silently widens: only own-org devices come back.
	devices, total, err := svc.List(t.Context(), actor, DeviceListOptions{})
	require.NoError(t, err)
	require.Zero(t, total)
	require.Empty(t, devices)
}

func TestDeviceServiceDepartmentPinning(t *testing.T) {
	db := setupServiceTestDB(t)
	engine := newTestEngine(t, db)
	svc, err := NewDeviceService(db, engine, nil)
	require.NoError(t, err)

	org := createOrg(t, db, "Acme")
	deptA := createDept(t, db, org.ID, "Floor A")
	deptB := createDept(t, db, org.ID, "Floor B")
	model := createDeviceModel(t, db, "SK-20", "socket")

	admin := createUser(t, db, "root", nil, nil)
	grantRole(t, db, admin, "platform-admin")
	sysActor := actorContext(t, engine, admin)

	devA, err := svc.Register(t.Context(), sysActor, RegisterDeviceInput{
		SerialNumber: "SN-A", Name: "Socket A", OrganizationID: org.ID, DepartmentID: strPtr(deptA.ID), ModelID: model.ID,
	})
	require.NoError(t, err)
	devB, err := svc.Register(t.Context(), sysActor, RegisterDeviceInput{
		SerialNumber: "SN-B", Name: "Socket B", OrganizationID: org.ID, DepartmentID: strPtr(deptB.ID), ModelID: model.ID,
	})
	require.NoError(t, err)

	manager := createUser(t, db, "manager", strPtr(org.ID), strPtr(deptA.ID))
	grantRole(t, db, manager, "dept-manager")
	actor := actorContext(t, engine, manager)

	_, err = svc.Get(t.Context(), actor, devA.ID)
	require.NoError(t, err)

	_, err = svc.Get(t.Context(), actor, devB.ID)
	require.Error(t, err)
	require.Equal(t, apperrors.ErrScopeViolation.Code, apperrors.FromError(err).Code)

	devices, total, err := svc.List(t.Context(), actor, DeviceListOptions{})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	require.Equal(t, devA.ID, devices[0].ID)
}

func TestDeviceServiceHeartbeatAndStaleOffline(t *testing.T) {
	db := setupServiceTestDB(t)
	engine := newTestEngine(t, db)

	current := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	svc, err := NewDeviceService(db, engine, nil, WithDeviceClock(func() time.Time { return current }))
	require.NoError(t, err)

	org := createOrg(t, db, "Acme")
	model := createDeviceModel(t, db, "PM-100", "power")

	admin := createUser(t, db, "root", nil, nil)
	grantRole(t, db, admin, "platform-admin")
	actor := actorContext(t, engine, admin)

	device, err := svc.Register(t.Context(), actor, RegisterDeviceInput{
		SerialNumber: "SN-1", Name: "Meter", OrganizationID: org.ID, ModelID: model.ID,
	})
	require.NoError(t, err)
	require.False(t, device.IsOnline)

	require.NoError(t, svc.MarkSeen(t.Context(), device.ID, current))

	got, err := svc.Get(t.Context(), actor, device.ID)
	require.NoError(t, err)
	require.True(t, got.IsOnline)
	require.NotNil(t, got.LastSeenAt)

	// Heartbeat ages out; the sweep flips it offline.
	current = current.Add(time.Hour)
	flipped, err := svc.MarkStaleOffline(t.Context(), 10*time.Minute)
	require.NoError(t, err)
	require.EqualValues(t, 1, flipped)

	got, err = svc.Get(t.Context(), actor, device.ID)
	require.NoError(t, err)
	require.False(t, got.IsOnline)
}

func TestDeviceServiceExpiringWarranties(t *testing.T) {
	db := setupServiceTestDB(t)
	engine := newTestEngine(t, db)

	current := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	svc, err := NewDeviceService(db, engine, nil, WithDeviceClock(func() time.Time { return current }))
	require.NoError(t, err)

	org := createOrg(t, db, "Acme")
	model := createDeviceModel(t, db, "DP-7", "display")

	admin := createUser(t, db, "root", nil, nil)
	grantRole(t, db, admin, "platform-admin")
	actor := actorContext(t, engine, admin)

	soon := current.Add(10 * 24 * time.Hour)
	later := current.Add(400 * 24 * time.Hour)

	_, err = svc.Register(t.Context(), actor, RegisterDeviceInput{
		SerialNumber: "SN-SOON", Name: "Expiring", OrganizationID: org.ID, ModelID: model.ID, WarrantyUntil: &soon,
	})
	require.NoError(t, err)
	_, err = svc.Register(t.Context(), actor, RegisterDeviceInput{
		SerialNumber: "SN-LATER", Name: "Covered", OrganizationID: org.ID, ModelID: model.ID, WarrantyUntil: &later,
	})
	require.NoError(t, err)

	expiring, err := svc.ListExpiringWarranties(t.Context(), actor, 30*24*time.Hour)
	require.NoError(t, err)
	require.Len(t, expiring, 1)
	require.Equal(t, "SN-SOON", expiring[0].SerialNumber)
}
