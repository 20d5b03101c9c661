package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/voltgrid/voltgrid/internal/access"
	"github.com/voltgrid/voltgrid/internal/models"
	apperrors "github.com/voltgrid/voltgrid/pkg/errors"
)

// ErrDepartmentNotFound indicates the requested department does not exist.
var ErrDepartmentNotFound = apperrors.ErrNotFound.WithMessage("Department not found")

// DepartmentService manages departments inside an organization.
type DepartmentService struct {
	db     *gorm.DB
	engine *access.Engine
	audit  *AuditService
}

// NewDepartmentService constructs a DepartmentService.
func NewDepartmentService(db *gorm.DB, engine *access.Engine, audit *AuditService) (*DepartmentService, error) {
	if db == nil {
		return nil, errors.New("department service: db is required")
	}
	if engine == nil {
		return nil, errors.New("department service: access engine is required")
	}
	return &DepartmentService{db: db, engine: engine, audit: audit}, nil
}

// DepartmentInput carries department attributes.
type DepartmentInput struct {
	OrganizationID string
	Name           string
	Description    string
}

// List returns departments of one organization visible to the caller.
// Department-pinned callers see only their own department.
func (s *DepartmentService) List(ctx context.Context, actor *access.AccessContext, orgID string) ([]models.Department, error) {
	ctx = ensureContext(ctx)

	orgID = strings.TrimSpace(orgID)
	if orgID == "" {
		orgID = actor.OrganizationID()
	}
	if orgID == "" {
		return nil, apperrors.NewBadRequest("organization id is required")
	}
	if err := s.engine.Scopes.AuthorizeTarget(actor.Scope, orgID, ""); err != nil {
		return nil, err
	}

	query := s.db.WithContext(ctx).Where("organization_id = ?", orgID).Order("name ASC")
	if deptID := actor.DepartmentID(); deptID != "" && !actor.Scope.CanViewAllDepartments {
		query = query.Where("id = ?", deptID)
	}

	var departments []models.Department
	if err := query.Find(&departments).Error; err != nil {
		return nil, fmt.Errorf("department service: list: %w", err)
	}
	return departments, nil
}

// Get returns one department after a scope check against both levels.
func (s *DepartmentService) Get(ctx context.Context, actor *access.AccessContext, deptID string) (*models.Department, error) {
	ctx = ensureContext(ctx)

	deptID = strings.TrimSpace(deptID)
	if deptID == "" {
		return nil, apperrors.NewBadRequest("department id is required")
	}

	var dept models.Department
	err := s.db.WithContext(ctx).First(&dept, "id = ?", deptID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrDepartmentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("department service: load: %w", err)
	}

	if err := s.engine.Scopes.AuthorizeTarget(actor.Scope, dept.OrganizationID, dept.ID); err != nil {
		return nil, err
	}
	return &dept, nil
}

// Create adds a department to an organization inside the caller's scope.
func (s *DepartmentService) Create(ctx context.Context, actor *access.AccessContext, input DepartmentInput) (*models.Department, error) {
	ctx = ensureContext(ctx)

	orgID := strings.TrimSpace(input.OrganizationID)
	if orgID == "" {
		orgID = actor.OrganizationID()
	}
	if orgID == "" {
		return nil, apperrors.NewBadRequest("organization id is required")
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperrors.NewBadRequest("department name is required")
	}
	if err := s.engine.Scopes.AuthorizeTarget(actor.Scope, orgID, ""); err != nil {
		return nil, err
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Organization{}).Where("id = ?", orgID).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("department service: check organization: %w", err)
	}
	if count == 0 {
		return nil, ErrOrganizationNotFound
	}

	dept := &models.Department{
		OrganizationID: orgID,
		Name:           name,
		Description:    strings.TrimSpace(input.Description),
	}
	if err := s.db.WithContext(ctx).Create(dept).Error; err != nil {
		return nil, fmt.Errorf("department service: create: %w", err)
	}

	actorID := actor.UserID()
	recordAudit(s.audit, ctx, AuditEntry{
		UserID:   &actorID,
		Action:   "department.create",
		Resource: dept.ID,
		Result:   "success",
		Metadata: map[string]any{"organization_id": orgID, "name": name},
	})

	return dept, nil
}

// Update mutates a department's name or description.
func (s *DepartmentService) Update(ctx context.Context, actor *access.AccessContext, deptID string, input DepartmentInput) (*models.Department, error) {
	ctx = ensureContext(ctx)

	dept, err := s.Get(ctx, actor, deptID)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if name := strings.TrimSpace(input.Name); name != "" {
		updates["name"] = name
	}
	if input.Description != "" {
		updates["description"] = strings.TrimSpace(input.Description)
	}

	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(dept).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("department service: update: %w", err)
		}
	}

	actorID := actor.UserID()
	recordAudit(s.audit, ctx, AuditEntry{
		UserID:   &actorID,
		Action:   "department.update",
		Resource: dept.ID,
		Result:   "success",
	})

	return dept, nil
}

// Delete removes an empty department.
func (s *DepartmentService) Delete(ctx context.Context, actor *access.AccessContext, deptID string) error {
	ctx = ensureContext(ctx)

	dept, err := s.Get(ctx, actor, deptID)
	if err != nil {
		return err
	}

	var userCount, deviceCount int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("department_id = ?", dept.ID).Count(&userCount).Error; err != nil {
		return fmt.Errorf("department service: count users: %w", err)
	}
	if err := s.db.WithContext(ctx).Model(&models.Device{}).Where("department_id = ?", dept.ID).Count(&deviceCount).Error; err != nil {
		return fmt.Errorf("department service: count devices: %w", err)
	}
	if userCount > 0 || deviceCount > 0 {
		return apperrors.NewConflict("Department still has users or devices attached")
	}

	if err := s.db.WithContext(ctx).Delete(dept).Error; err != nil {
		return fmt.Errorf("department service: delete: %w", err)
	}

	actorID := actor.UserID()
	recordAudit(s.audit, ctx, AuditEntry{
		UserID:   &actorID,
		Action:   "department.delete",
		Resource: dept.ID,
		Result:   "success",
	})

	return nil
}
