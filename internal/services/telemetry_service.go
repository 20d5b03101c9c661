package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/voltgrid/voltgrid/internal/access"
	"github.com/voltgrid/voltgrid/internal/models"
	apperrors "github.com/voltgrid/voltgrid/pkg/errors"
)

// TelemetryService ingests and serves device readings. Reads are constrained
// to devices inside the caller's scope; ingestion is keyed by device identity
// and bypasses user scoping.
type TelemetryService struct {
	db      *gorm.DB
	devices *DeviceService
	now     func() time.Time
}

// TelemetryServiceOption customises a TelemetryService.
type TelemetryServiceOption func(*TelemetryService)

// WithTelemetryClock overrides the clock, primarily for tests.
func WithTelemetryClock(now func() time.Time) TelemetryServiceOption {
	return func(s *TelemetryService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewTelemetryService constructs a TelemetryService.
func NewTelemetryService(db *gorm.DB, devices *DeviceService, opts ...TelemetryServiceOption) (*TelemetryService, error) {
	if db == nil {
		return nil, errors.New("telemetry service: db is required")
	}
	if devices == nil {
		return nil, errors.New("telemetry service: device service is required")
	}
	svc := &TelemetryService{db: db, devices: devices, now: time.Now}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// ReadingInput carries one sampled value reported by a device.
type ReadingInput struct {
	Kind       string
	Value      float64
	Unit       string
	RecordedAt time.Time
}

// RangeOptions bound a historical telemetry query.
type RangeOptions struct {
	Kind  string
	From  time.Time
	Until time.Time
	Limit int
}

// Ingest stores a batch of readings for one device and records the heartbeat.
func (s *TelemetryService) Ingest(ctx context.Context, deviceID string, readings []ReadingInput) (int, error) {
	ctx = ensureContext(ctx)

	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return 0, apperrors.NewBadRequest("device id is required")
	}
	if len(readings) == 0 {
		return 0, apperrors.NewBadRequest("at least one reading is required")
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Device{}).Where("id = ?", deviceID).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("telemetry service: check device: %w", err)
	}
	if count == 0 {
		return 0, ErrDeviceNotFound
	}

	now := s.now()
	rows := make([]models.TelemetryReading, 0, len(readings))
	for _, r := range readings {
		kind := strings.TrimSpace(r.Kind)
		if kind == "" {
			return 0, apperrors.NewBadRequest("reading kind is required")
		}
		recordedAt := r.RecordedAt
		if recordedAt.IsZero() {
			recordedAt = now
		}
		rows = append(rows, models.TelemetryReading{
			DeviceID:   deviceID,
			Kind:       kind,
			Value:      r.Value,
			Unit:       strings.TrimSpace(r.Unit),
			RecordedAt: recordedAt,
		})
	}

	if err := s.db.WithContext(ctx).Create(&rows).Error; err != nil {
		return 0, fmt.Errorf("telemetry service: store readings: %w", err)
	}

	if err := s.devices.MarkSeen(ctx, deviceID, now); err != nil {
		return len(rows), fmt.Errorf("telemetry service: record heartbeat: %w", err)
	}

	return len(rows), nil
}

// Latest returns the most recent reading per kind for one scoped device.
func (s *TelemetryService) Latest(ctx context.Context, actor *access.AccessContext, deviceID string) ([]models.TelemetryReading, error) {
	ctx = ensureContext(ctx)

	device, err := s.devices.Get(ctx, actor, deviceID)
	if err != nil {
		return nil, err
	}

	var kinds []string
	if err := s.db.WithContext(ctx).
		Model(&models.TelemetryReading{}).
		Where("device_id = ?", device.ID).
		Distinct().
		Pluck("kind", &kinds).Error; err != nil {
		return nil, fmt.Errorf("telemetry service: list kinds: %w", err)
	}

	out := make([]models.TelemetryReading, 0, len(kinds))
	for _, kind := range kinds {
		var reading models.TelemetryReading
		err := s.db.WithContext(ctx).
			Where("device_id = ? AND kind = ?", device.ID, kind).
			Order("recorded_at DESC").
			First(&reading).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("telemetry service: latest reading: %w", err)
		}
		out = append(out, reading)
	}

	return out, nil
}

// Range returns historical readings for one scoped device ordered oldest first.
func (s *TelemetryService) Range(ctx context.Context, actor *access.AccessContext, deviceID string, opts RangeOptions) ([]models.TelemetryReading, error) {
	ctx = ensureContext(ctx)

	device, err := s.devices.Get(ctx, actor, deviceID)
	if err != nil {
		return nil, err
	}

	if opts.From.IsZero() || opts.Until.IsZero() {
		return nil, apperrors.NewBadRequest("from and until are required")
	}
	if opts.Until.Before(opts.From) {
		return nil, apperrors.NewBadRequest("until must not precede from")
	}

	limit := opts.Limit
	if limit <= 0 || limit > 10000 {
		limit = 1000
	}

	query := s.db.WithContext(ctx).
		Where("device_id = ? AND recorded_at BETWEEN ? AND ?", device.ID, opts.From, opts.Until).
		Order("recorded_at ASC").
		Limit(limit)
	if kind := strings.TrimSpace(opts.Kind); kind != "" {
		query = query.Where("kind = ?", kind)
	}

	var readings []models.TelemetryReading
	if err := query.Find(&readings).Error; err != nil {
		return nil, fmt.Errorf("telemetry service: range query: %w", err)
	}
	return readings, nil
}

// PruneOlderThan removes readings older than the retention window.
func (s *TelemetryService) PruneOlderThan(ctx context.Context, retention time.Duration) (int64, error) {
	ctx = ensureContext(ctx)

	if retention <= 0 {
		return 0, apperrors.NewBadRequest("retention must be positive")
	}

	cutoff := s.now().Add(-retention)
	result := s.db.WithContext(ctx).
		Where("recorded_at < ?", cutoff).
		Delete(&models.TelemetryReading{})
	if result.Error != nil {
		return 0, fmt.Errorf("telemetry service: prune readings: %w", result.Error)
	}
	return result.RowsAffected, nil
}
