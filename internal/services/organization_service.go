package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/voltgrid/voltgrid/internal/access"
	"github.com/voltgrid/voltgrid/internal/models"
	apperrors "github.com/voltgrid/voltgrid/pkg/errors"
)

// ErrOrganizationNotFound indicates the requested organization does not exist.
var ErrOrganizationNotFound = apperrors.ErrNotFound.WithMessage("Organization not found")

// OrganizationService manages tenant organizations. Creation and deletion are
// reserved for system administrators; reads and updates honour the caller's
// access scope.
type OrganizationService struct {
	db     *gorm.DB
	engine *access.Engine
	audit  *AuditService
}

// NewOrganizationService constructs an OrganizationService.
func NewOrganizationService(db *gorm.DB, engine *access.Engine, audit *AuditService) (*OrganizationService, error) {
	if db == nil {
		return nil, errors.New("organization service: db is required")
	}
	if engine == nil {
		return nil, errors.New("organization service: access engine is required")
	}
	return &OrganizationService{db: db, engine: engine, audit: audit}, nil
}

// OrganizationInput carries organization attributes for create and update.
type OrganizationInput struct {
	Name        string
	Description string
	ContactName string
	Email       string
	Phone       string
	Settings    datatypes.JSON
}

// List returns organizations visible to the caller. System admins see every
// tenant; everyone else sees only their own.
func (s *OrganizationService) List(ctx context.Context, actor *access.AccessContext) ([]models.Organization, error) {
	ctx = ensureContext(ctx)

	query := s.db.WithContext(ctx).Model(&models.Organization{}).Order("name ASC")
	if !actor.Scope.IsSystemAdmin {
		orgID := actor.OrganizationID()
		if orgID == "" {
			return nil, apperrors.ErrScopeViolation.WithMessage("caller has no organization membership")
		}
		query = query.Where("id = ?", orgID)
	}

	var orgs []models.Organization
	if err := query.Find(&orgs).Error; err != nil {
		return nil, fmt.Errorf("organization service: list: %w", err)
	}
	return orgs, nil
}

// Get returns one organization after verifying the caller may see it.
func (s *OrganizationService) Get(ctx context.Context, actor *access.AccessContext, orgID string) (*models.Organization, error) {
	ctx = ensureContext(ctx)

	orgID = strings.TrimSpace(orgID)
	if orgID == "" {
		return nil, apperrors.NewBadRequest("organization id is required")
	}
	if err := s.engine.Scopes.AuthorizeTarget(actor.Scope, orgID, ""); err != nil {
		return nil, err
	}

	var org models.Organization
	err := s.db.WithContext(ctx).Preload("Departments").First(&org, "id = ?", orgID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrOrganizationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("organization service: load: %w", err)
	}
	return &org, nil
}

// Create registers a new tenant organization. System admin only.
func (s *OrganizationService) Create(ctx context.Context, actor *access.AccessContext, input OrganizationInput) (*models.Organization, error) {
	ctx = ensureContext(ctx)

	if !actor.Scope.IsSystemAdmin {
		return nil, apperrors.ErrForbidden.WithMessage("Only system administrators can create organizations")
	}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperrors.NewBadRequest("organization name is required")
	}

	org := &models.Organization{
		Name:        name,
		Description: strings.TrimSpace(input.Description),
		ContactName: strings.TrimSpace(input.ContactName),
		Email:       strings.TrimSpace(input.Email),
		Phone:       strings.TrimSpace(input.Phone),
		Settings:    input.Settings,
	}
	if err := s.db.WithContext(ctx).Create(org).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, apperrors.NewConflict("An organization with this name already exists")
		}
		return nil, fmt.Errorf("organization service: create: %w", err)
	}

	actorID := actor.UserID()
	recordAudit(s.audit, ctx, AuditEntry{
		UserID:   &actorID,
		Action:   "organization.create",
		Resource: org.ID,
		Result:   "success",
		Metadata: map[string]any{"name": org.Name},
	})

	return org, nil
}

// Update mutates organization attributes within the caller's scope.
func (s *OrganizationService) Update(ctx context.Context, actor *access.AccessContext, orgID string, input OrganizationInput) (*models.Organization, error) {
	ctx = ensureContext(ctx)

	org, err := s.Get(ctx, actor, orgID)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if name := strings.TrimSpace(input.Name); name != "" && name != org.Name {
		updates["name"] = name
	}
	if input.Description != "" {
		updates["description"] = strings.TrimSpace(input.Description)
	}
	if input.ContactName != "" {
		updates["contact_name"] = strings.TrimSpace(input.ContactName)
	}
	if input.Email != "" {
		updates["email"] = strings.TrimSpace(input.Email)
	}
	if input.Phone != "" {
		updates["phone"] = strings.TrimSpace(input.Phone)
	}
	if input.Settings != nil {
		updates["settings"] = input.Settings
	}

	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(org).Updates(updates).Error; err != nil {
			if isUniqueConstraintError(err) {
				return nil, apperrors.NewConflict("An organization with this name already exists")
			}
			return nil, fmt.Errorf("organization service: update: %w", err)
		}
	}

	actorID := actor.UserID()
	recordAudit(s.audit, ctx, AuditEntry{
		UserID:   &actorID,
		Action:   "organization.update",
		Resource: org.ID,
		Result:   "success",
	})

	return org, nil
}

// Delete removes an organization that has no remaining users or devices.
// System admin only.
func (s *OrganizationService) Delete(ctx context.Context, actor *access.AccessContext, orgID string) error {
	ctx = ensureContext(ctx)

	if !actor.Scope.IsSystemAdmin {
		return apperrors.ErrForbidden.WithMessage("Only system administrators can delete organizations")
	}

	orgID = strings.TrimSpace(orgID)
	var org models.Organization
	err := s.db.WithContext(ctx).First(&org, "id = ?", orgID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrOrganizationNotFound
	}
	if err != nil {
		return fmt.Errorf("organization service: load: %w", err)
	}

	var userCount, deviceCount int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("organization_id = ?", orgID).Count(&userCount).Error; err != nil {
		return fmt.Errorf("organization service: count users: %w", err)
	}
	if err := s.db.WithContext(ctx).Model(&models.Device{}).Where("organization_id = ?", orgID).Count(&deviceCount).Error; err != nil {
		return fmt.Errorf("organization service: count devices: %w", err)
	}
	if userCount > 0 || deviceCount > 0 {
		return apperrors.NewConflict("Organization still has users or devices attached")
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("organization_id = ?", orgID).Delete(&models.Department{}).Error; err != nil {
			return fmt.Errorf("organization service: delete departments: %w", err)
		}
		return tx.Delete(&org).Error
	})
	if err != nil {
		return err
	}

	actorID := actor.UserID()
	recordAudit(s.audit, ctx, AuditEntry{
		UserID:   &actorID,
		Action:   "organization.delete",
		Resource: orgID,
		Result:   "success",
	})

	return nil
}
