package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	apperrors "github.com/voltgrid/voltgrid/pkg/errors"
)

func TestTelemetryIngestRecordsHeartbeat(t *testing.T) {
	db := setupServiceTestDB(t)
	engine := newTestEngine(t, db)

	current := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return current }

	devices, err := NewDeviceService(db, engine, nil, WithDeviceClock(clock))
	require.NoError(t, err)
	telemetry, err := NewTelemetryService(db, devices, WithTelemetryClock(clock))
	require.NoError(t, err)

	org := createOrg(t, db, "Acme")
	model := createDeviceModel(t, db, "PM-100", "power")
	admin := createUser(t, db, "root", nil, nil)
	grantRole(t, db, admin, "platform-admin")
	actor := actorContext(t, engine, admin)

	device, err := devices.Register(t.Context(), actor, RegisterDeviceInput{
		SerialNumber: "SN-1", Name: "Meter", OrganizationID: org.ID, ModelID: model.ID,
	})
	require.NoError(t, err)

	stored, err := telemetry.Ingest(t.Context(), device.ID, []ReadingInput{
		{Kind: "power", Value: 231.4, Unit: "W"},
		{Kind: "voltage", Value: 229.8, Unit: "V"},
	})
	require.NoError(t, err)
	require.Equal(t, 2, stored)

	got, err := devices.Get(t.Context(), actor, device.ID)
	require.NoError(t, err)
	require.True(t, got.IsOnline)
	require.NotNil(t, got.LastSeenAt)
}

func TestTelemetryLatestPerKind(t *testing.T) {
	db := setupServiceTestDB(t)
	engine := newTestEngine(t, db)

	devices, err := NewDeviceService(db, engine, nil)
	require.NoError(t, err)
	telemetry, err := NewTelemetryService(db, devices)
	require.NoError(t, err)

	org := createOrg(t, db, "Acme")
	model := createDeviceModel(t, db, "PM-100", "power")
	admin := createUser(t, db, "root", nil, nil)
	grantRole(t, db, admin, "platform-admin")
	actor := actorContext(t, engine, admin)

	device, err := devices.Register(t.Context(), actor, RegisterDeviceInput{
		SerialNumber: "SN-1", Name: "Meter", OrganizationID: org.ID, ModelID: model.ID,
	})
	require.NoError(t, err)

	base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	_, err = telemetry.Ingest(t.Context(), device.ID, []ReadingInput{
		{Kind: "power", Value: 100, Unit: "W", RecordedAt: base},
		{Kind: "power", Value: 140, Unit: "W", RecordedAt: base.Add(time.Minute)},
		{Kind: "voltage", Value: 230, Unit: "V", RecordedAt: base},
	})
	require.NoError(t, err)

	latest, err := telemetry.Latest(t.Context(), actor, device.ID)
	require.NoError(t, err)
	require.Len(t, latest, 2)

	byKind := make(map[string]float64, len(latest))
	for _, reading := range latest {
		byKind[reading.Kind] = reading.Value
	}
	require.Equal(t, 140.0, byKind["power"])
	require.Equal(t, 230.0, byKind["voltage"])
}

func TestTelemetryRangeQuery(t *testing.T) {
	db := setupServiceTestDB(t)
	engine := newTestEngine(t, db)

	devices, err := NewDeviceService(db, engine, nil)
	require.NoError(t, err)
	telemetry, err := NewTelemetryService(db, devices)
	require.NoError(t, err)

	org := createOrg(t, db, "Acme")
	model := createDeviceModel(t, db, "PM-100", "power")
	admin := createUser(t, db, "root", nil, nil)
	grantRole(t, db, admin, "platform-admin")
	actor := actorContext(t, engine, admin)

	device, err := devices.Register(t.Context(), actor, RegisterDeviceInput{
		SerialNumber: "SN-1", Name: "Meter", OrganizationID: org.ID, ModelID: model.ID,
	})
	require.NoError(t, err)

	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	var inputs []ReadingInput
	for i := 0; i < 5; i++ {
		inputs = append(inputs, ReadingInput{Kind: "power", Value: float64(i), RecordedAt: base.Add(time.Duration(i) * time.Hour)})
	}
	_, err = telemetry.Ingest(t.Context(), device.ID, inputs)
	require.NoError(t, err)

	readings, err := telemetry.Range(t.Context(), actor, device.ID, RangeOptions{
		Kind: "power",
		From: base.Add(time.Hour),
		Until: base.Add(3 * time.Hour),
	})
	require.NoError(t, err)
	require.Len(t, readings, 3)
	require.Equal(t, 1.0, readings[0].Value)
	require.Equal(t, 3.0, readings[2].Value)

	// Inverted windows are rejected, not silently emptied.
	_, err = telemetry.Range(t.Context(), actor, device.ID, RangeOptions{
		From:  base.Add(3 * time.Hour),
		Until: base,
	})
	require.Error(t, err)
	require.Equal(t, apperrors.ErrBadRequest.Code, apperrors.FromError(err).Code)
}

func TestTelemetryIngestUnknownDevice(t *testing.T) {
	db := setupServiceTestDB(t)
	engine := newTestEngine(t, db)

	devices, err := NewDeviceService(db, engine, nil)
	require.NoError(t, err)
	telemetry, err := NewTelemetryService(db, devices)
	require.NoError(t, err)

	_, err = telemetry.Ingest(t.Context(), "missing", []ReadingInput{{Kind: "power", Value: 1}})
	require.ErrorIs(t, err, ErrDeviceNotFound)
}
