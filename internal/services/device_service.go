package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/voltgrid/voltgrid/internal/access"
	"github.com/voltgrid/voltgrid/internal/models"
	apperrors "github.com/voltgrid/voltgrid/pkg/errors"
	"github.com/voltgrid/voltgrid/pkg/metrics"
)

// ErrDeviceNotFound indicates the requested device does not exist or is outside scope.
var ErrDeviceNotFound = apperrors.ErrNotFound.WithMessage("Device not found")

// DeviceService manages the device fleet. Every read and write is constrained
// to the caller's organization and department scope.
type DeviceService struct {
	db     *gorm.DB
	engine *access.Engine
	audit  *AuditService
	now    func() time.Time
}

// DeviceServiceOption customises a DeviceService.
type DeviceServiceOption func(*DeviceService)

// WithDeviceClock overrides the clock, primarily for tests.
func WithDeviceClock(now func() time.Time) DeviceServiceOption {
	return func(s *DeviceService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewDeviceService constructs a DeviceService.
func NewDeviceService(db *gorm.DB, engine *access.Engine, audit *AuditService, opts ...DeviceServiceOption) (*DeviceService, error) {
	if db == nil {
		return nil, errors.New("device service: db is required")
	}
	if engine == nil {
		return nil, errors.New("device service: access engine is required")
	}
	svc := &DeviceService{db: db, engine: engine, audit: audit, now: time.Now}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// RegisterDeviceInput carries the attributes for a new device.
type RegisterDeviceInput struct {
	SerialNumber   string
	Name           string
	OrganizationID string
	DepartmentID   *string
	ModelID        string
	WarrantyUntil  *time.Time
	Settings       datatypes.JSON
}

// UpdateDeviceInput carries mutable device attributes. Nil fields are left unchanged.
type UpdateDeviceInput struct {
	Name          *string
	DepartmentID  *string
	WarrantyUntil *time.Time
	Settings      datatypes.JSON
}

// MQTTConfigInput carries broker connection settings for one device.
type MQTTConfigInput struct {
	Host     string
	Port     int
	Username string
	Password string
	Topic    string
	ClientID string
}

// DeviceListOptions filters and paginates device listings.
type DeviceListOptions struct {
	Page         int
	PageSize     int
	Search       string
	DepartmentID string
	ModelID      string
	Category     string
	OnlineOnly   bool
}

// Register adds a device to the fleet inside the caller's scope.
func (s *DeviceService) Register(ctx context.Context, actor *access.AccessContext, input RegisterDeviceInput) (*models.Device, error) {
	ctx = ensureContext(ctx)

	serial := strings.TrimSpace(input.SerialNumber)
	name := strings.TrimSpace(input.Name)
	if serial == "" || name == "" {
		return nil, apperrors.NewBadRequest("serial number and name are required")
	}

	orgID := strings.TrimSpace(input.OrganizationID)
	if orgID == "" {
		orgID = actor.OrganizationID()
	}
	if orgID == "" {
		return nil, apperrors.NewBadRequest("organization id is required")
	}
	targetDept := ""
	if input.DepartmentID != nil {
		targetDept = *input.DepartmentID
	}
	if err := s.engine.Scopes.AuthorizeTarget(actor.Scope, orgID, targetDept); err != nil {
		return nil, err
	}

	var modelCount int64
	if err := s.db.WithContext(ctx).Model(&models.DeviceModel{}).Where("id = ?", strings.TrimSpace(input.ModelID)).Count(&modelCount).Error; err != nil {
		return nil, fmt.Errorf("device service: check model: %w", err)
	}
	if modelCount == 0 {
		return nil, ErrDeviceModelNotFound
	}

	device := &models.Device{
		SerialNumber:   serial,
		Name:           name,
		OrganizationID: orgID,
		DepartmentID:   input.DepartmentID,
		ModelID:        strings.TrimSpace(input.ModelID),
		WarrantyUntil:  input.WarrantyUntil,
		Settings:       input.Settings,
	}
	if err := s.db.WithContext(ctx).Create(device).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, apperrors.NewConflict("A device with this serial number already exists")
		}
		return nil, fmt.Errorf("device service: register: %w", err)
	}

	metrics.RegisteredDevices.Inc()

	actorID := actor.UserID()
	recordAudit(s.audit, ctx, AuditEntry{
		UserID:   &actorID,
		Action:   "device.register",
		Resource: device.ID,
		Result:   "success",
		Metadata: map[string]any{"serial_number": serial, "organization_id": orgID},
	})

	return device, nil
}

// Get returns one device after a scope check.
func (s *DeviceService) Get(ctx context.Context, actor *access.AccessContext, deviceID string) (*models.Device, error) {
	ctx = ensureContext(ctx)

	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return nil, apperrors.NewBadRequest("device id is required")
	}

	var device models.Device
	err := s.db.WithContext(ctx).Preload("Model").First(&device, "id = ?", deviceID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrDeviceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("device service: load: %w", err)
	}

	targetDept := ""
	if device.DepartmentID != nil {
		targetDept = *device.DepartmentID
	}
	if err := s.engine.Scopes.AuthorizeTarget(actor.Scope, device.OrganizationID, targetDept); err != nil {
		return nil, err
	}

	return &device, nil
}

// List returns devices visible to the caller, scope-filtered and paginated.
func (s *DeviceService) List(ctx context.Context, actor *access.AccessContext, opts DeviceListOptions) ([]models.Device, int64, error) {
	ctx = ensureContext(ctx)

	page := opts.Page
	if page <= 0 {
		page = 1
	}
	perPage := opts.PageSize
	if perPage <= 0 || perPage > 200 {
		perPage = 50
	}

	query := s.db.WithContext(ctx).Model(&models.Device{})
	query = s.applyScopeFilter(query, actor)

	if opts.DepartmentID != "" {
		if err := s.engine.Scopes.AuthorizeTarget(actor.Scope, "", opts.DepartmentID); err != nil {
			return nil, 0, err
		}
		query = query.Where("department_id = ?", opts.DepartmentID)
	}
	if opts.ModelID != "" {
		query = query.Where("model_id = ?", opts.ModelID)
	}
	if opts.Category != "" {
		query = query.Joins("JOIN device_models ON device_models.id = devices.model_id").
			Where("device_models.category = ?", opts.Category)
	}
	if opts.OnlineOnly {
		query = query.Where("is_online = ?", true)
	}
	if search := strings.TrimSpace(opts.Search); search != "" {
		like := "%" + search + "%"
		query = query.Where("devices.name LIKE ? OR serial_number LIKE ?", like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("device service: count: %w", err)
	}

	var devices []models.Device
	if err := query.
		Preload("Model").
		Order("devices.name ASC").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&devices).Error; err != nil {
		return nil, 0, fmt.Errorf("device service: list: %w", err)
	}

	return devices, total, nil
}

// Update mutates device attributes within the caller's scope.
func (s *DeviceService) Update(ctx context.Context, actor *access.AccessContext, deviceID string, input UpdateDeviceInput) (*models.Device, error) {
	ctx = ensureContext(ctx)

	device, err := s.Get(ctx, actor, deviceID)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, apperrors.NewBadRequest("device name cannot be empty")
		}
		updates["name"] = name
	}
	if input.DepartmentID != nil {
		if err := s.engine.Scopes.AuthorizeTarget(actor.Scope, "", *input.DepartmentID); err != nil {
			return nil, err
		}
		updates["department_id"] = *input.DepartmentID
	}
	if input.WarrantyUntil != nil {
		updates["warranty_until"] = *input.WarrantyUntil
	}
	if input.Settings != nil {
		updates["settings"] = input.Settings
	}

	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(device).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("device service: update: %w", err)
		}
	}

	actorID := actor.UserID()
	recordAudit(s.audit, ctx, AuditEntry{
		UserID:   &actorID,
		Action:   "device.update",
		Resource: device.ID,
		Result:   "success",
	})

	return device, nil
}

// UpdateMQTTConfig replaces the broker connection settings for one device.
func (s *DeviceService) UpdateMQTTConfig(ctx context.Context, actor *access.AccessContext, deviceID string, input MQTTConfigInput) (*models.Device, error) {
	ctx = ensureContext(ctx)

	device, err := s.Get(ctx, actor, deviceID)
	if err != nil {
		return nil, err
	}

	host := strings.TrimSpace(input.Host)
	if host == "" {
		return nil, apperrors.NewBadRequest("mqtt host is required")
	}
	port := input.Port
	if port <= 0 || port > 65535 {
		return nil, apperrors.NewBadRequest("mqtt port must be between 1 and 65535")
	}

	updates := map[string]any{
		"mqtt_host":      host,
		"mqtt_port":      port,
		"mqtt_username":  strings.TrimSpace(input.Username),
		"mqtt_topic":     strings.TrimSpace(input.Topic),
		"mqtt_client_id": strings.TrimSpace(input.ClientID),
	}
	if input.Password != "" {
		updates["mqtt_password"] = input.Password
	}

	if err := s.db.WithContext(ctx).Model(device).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("device service: update mqtt config: %w", err)
	}

	actorID := actor.UserID()
	recordAudit(s.audit, ctx, AuditEntry{
		UserID:   &actorID,
		Action:   "device.update_mqtt",
		Resource: device.ID,
		Result:   "success",
		Metadata: map[string]any{"host": host, "port": port},
	})

	return device, nil
}

// MarkSeen records a device heartbeat, flipping it online.
func (s *DeviceService) MarkSeen(ctx context.Context, deviceID string, at time.Time) error {
	ctx = ensureContext(ctx)

	if at.IsZero() {
		at = s.now()
	}

	result := s.db.WithContext(ctx).
		Model(&models.Device{}).
		Where("id = ?", strings.TrimSpace(deviceID)).
		Updates(map[string]any{"is_online": true, "last_seen_at": at})
	if result.Error != nil {
		return fmt.Errorf("device service: mark seen: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

// MarkStaleOffline flips devices offline whose last heartbeat is older than
// the threshold. It returns the number of devices transitioned.
func (s *DeviceService) MarkStaleOffline(ctx context.Context, olderThan time.Duration) (int64, error) {
	ctx = ensureContext(ctx)

	if olderThan <= 0 {
		return 0, apperrors.NewBadRequest("olderThan must be positive")
	}

	cutoff := s.now().Add(-olderThan)
	result := s.db.WithContext(ctx).
		Model(&models.Device{}).
		Where("is_online = ? AND (last_seen_at IS NULL OR last_seen_at < ?)", true, cutoff).
		Update("is_online", false)
	if result.Error != nil {
		return 0, fmt.Errorf("device service: mark stale offline: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// ListExpiringWarranties returns scoped devices whose warranty ends within the window.
func (s *DeviceService) ListExpiringWarranties(ctx context.Context, actor *access.AccessContext, within time.Duration) ([]models.Device, error) {
	ctx = ensureContext(ctx)

	if within <= 0 {
		return nil, apperrors.NewBadRequest("window must be positive")
	}

	now := s.now()
	query := s.db.WithContext(ctx).Model(&models.Device{}).
		Where("warranty_until IS NOT NULL AND warranty_until BETWEEN ? AND ?", now, now.Add(within)).
		Order("warranty_until ASC")
	query = s.applyScopeFilter(query, actor)

	var devices []models.Device
	if err := query.Preload("Model").Find(&devices).Error; err != nil {
		return nil, fmt.Errorf("device service: list expiring warranties: %w", err)
	}
	return devices, nil
}

// Delete removes a device together with its telemetry.
func (s *DeviceService) Delete(ctx context.Context, actor *access.AccessContext, deviceID string) error {
	ctx = ensureContext(ctx)

	device, err := s.Get(ctx, actor, deviceID)
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("device_id = ?", device.ID).Delete(&models.TelemetryReading{}).Error; err != nil {
			return fmt.Errorf("device service: delete readings: %w", err)
		}
		return tx.Delete(device).Error
	})
	if err != nil {
		return err
	}

	metrics.RegisteredDevices.Dec()

	actorID := actor.UserID()
	recordAudit(s.audit, ctx, AuditEntry{
		UserID:   &actorID,
		Action:   "device.delete",
		Resource: device.ID,
		Result:   "success",
		Metadata: map[string]any{"serial_number": device.SerialNumber},
	})

	return nil
}

func (s *DeviceService) applyScopeFilter(query *gorm.DB, actor *access.AccessContext) *gorm.DB {
	if actor.Scope.IsSystemAdmin {
		return query
	}
	if orgID := actor.OrganizationID(); orgID != "" {
		query = query.Where("devices.organization_id = ?", orgID)
	} else {
		query = query.Where("1 = 0")
	}
	if deptID := actor.DepartmentID(); deptID != "" && !actor.Scope.CanViewAllDepartments {
		query = query.Where("devices.department_id = ?", deptID)
	}
	return query
}
