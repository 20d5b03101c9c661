package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/voltgrid/voltgrid/internal/models"
	apperrors "github.com/voltgrid/voltgrid/pkg/errors"
)

// ErrDeviceModelNotFound indicates the requested device model does not exist.
var ErrDeviceModelNotFound = apperrors.ErrNotFound.WithMessage("Device model not found")

var deviceCategories = map[string]struct{}{
	"power":   {},
	"socket":  {},
	"display": {},
}

// DeviceModelService manages the shared hardware catalog. Models are global,
// not tenant-scoped; write access is gated by permission alone.
type DeviceModelService struct {
	db    *gorm.DB
	audit *AuditService
}

// NewDeviceModelService constructs a DeviceModelService.
func NewDeviceModelService(db *gorm.DB, audit *AuditService) (*DeviceModelService, error) {
	if db == nil {
		return nil, errors.New("device model service: db is required")
	}
	return &DeviceModelService{db: db, audit: audit}, nil
}

// DeviceModelInput carries device model attributes.
type DeviceModelInput struct {
	Name     string
	Vendor   string
	Category string
	Specs    datatypes.JSON
}

// List returns device models, optionally filtered by category.
func (s *DeviceModelService) List(ctx context.Context, category string) ([]models.DeviceModel, error) {
	ctx = ensureContext(ctx)

	query := s.db.WithContext(ctx).Order("name ASC")
	if category = strings.TrimSpace(category); category != "" {
		if _, ok := deviceCategories[category]; !ok {
			return nil, apperrors.NewBadRequest(fmt.Sprintf("unknown device category %q", category))
		}
		query = query.Where("category = ?", category)
	}

	var out []models.DeviceModel
	if err := query.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("device model service: list: %w", err)
	}
	return out, nil
}

// Get returns one device model.
func (s *DeviceModelService) Get(ctx context.Context, modelID string) (*models.DeviceModel, error) {
	ctx = ensureContext(ctx)

	modelID = strings.TrimSpace(modelID)
	if modelID == "" {
		return nil, apperrors.NewBadRequest("model id is required")
	}

	var model models.DeviceModel
	err := s.db.WithContext(ctx).First(&model, "id = ?", modelID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrDeviceModelNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("device model service: load: %w", err)
	}
	return &model, nil
}

// Create registers a new hardware model.
func (s *DeviceModelService) Create(ctx context.Context, actor string, input DeviceModelInput) (*models.DeviceModel, error) {
	ctx = ensureContext(ctx)

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperrors.NewBadRequest("model name is required")
	}
	category := strings.TrimSpace(input.Category)
	if _, ok := deviceCategories[category]; !ok {
		return nil, apperrors.NewBadRequest(fmt.Sprintf("unknown device category %q", category))
	}

	model := &models.DeviceModel{
		Name:     name,
		Vendor:   strings.TrimSpace(input.Vendor),
		Category: category,
		Specs:    input.Specs,
	}
	if err := s.db.WithContext(ctx).Create(model).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, apperrors.NewConflict("A device model with this name already exists")
		}
		return nil, fmt.Errorf("device model service: create: %w", err)
	}

	recordAudit(s.audit, ctx, AuditEntry{
		Action:   "device_model.create",
		Resource: model.ID,
		Result:   "success",
		Username: actor,
		Metadata: map[string]any{"name": name, "category": category},
	})

	return model, nil
}

// Update mutates model attributes. Category changes are rejected once devices
// exist for the model; readings of the old kind would be misattributed.
func (s *DeviceModelService) Update(ctx context.Context, actor, modelID string, input DeviceModelInput) (*models.DeviceModel, error) {
	ctx = ensureContext(ctx)

	model, err := s.Get(ctx, modelID)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if name := strings.TrimSpace(input.Name); name != "" {
		updates["name"] = name
	}
	if vendor := strings.TrimSpace(input.Vendor); vendor != "" {
		updates["vendor"] = vendor
	}
	if category := strings.TrimSpace(input.Category); category != "" && category != model.Category {
		if _, ok := deviceCategories[category]; !ok {
			return nil, apperrors.NewBadRequest(fmt.Sprintf("unknown device category %q", category))
		}
		var count int64
		if err := s.db.WithContext(ctx).Model(&models.Device{}).Where("model_id = ?", model.ID).Count(&count).Error; err != nil {
			return nil, fmt.Errorf("device model service: count devices: %w", err)
		}
		if count > 0 {
			return nil, apperrors.NewConflict("Cannot change category while devices use this model")
		}
		updates["category"] = category
	}
	if input.Specs != nil {
		updates["specs"] = input.Specs
	}

	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(model).Updates(updates).Error; err != nil {
			if isUniqueConstraintError(err) {
				return nil, apperrors.NewConflict("A device model with this name already exists")
			}
			return nil, fmt.Errorf("device model service: update: %w", err)
		}
	}

	recordAudit(s.audit, ctx, AuditEntry{
		Action:   "device_model.update",
		Resource: model.ID,
		Result:   "success",
		Username: actor,
	})

	return model, nil
}

// Delete removes an unused device model.
func (s *DeviceModelService) Delete(ctx context.Context, actor, modelID string) error {
	ctx = ensureContext(ctx)

	model, err := s.Get(ctx, modelID)
	if err != nil {
		return err
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Device{}).Where("model_id = ?", model.ID).Count(&count).Error; err != nil {
		return fmt.Errorf("device model service: count devices: %w", err)
	}
	if count > 0 {
		return apperrors.NewConflict("Device model is still in use")
	}

	if err := s.db.WithContext(ctx).Delete(model).Error; err != nil {
		return fmt.Errorf("device model service: delete: %w", err)
	}

	recordAudit(s.audit, ctx, AuditEntry{
		Action:   "device_model.delete",
		Resource: model.ID,
		Result:   "success",
		Username: actor,
	})

	return nil
}
