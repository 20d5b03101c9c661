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

var (
	// ErrRoleNotFound indicates the requested role does not exist.
	ErrRoleNotFound = apperrors.ErrNotFound.WithMessage("Role not found")
	// ErrSystemRoleImmutable indicates an attempt to modify or delete a built-in role.
	ErrSystemRoleImmutable = apperrors.NewConflict("System roles cannot be modified or deleted")
)

// RoleService manages role definitions and user role assignments.
type RoleService struct {
	db     *gorm.DB
	engine *access.Engine
	audit  *AuditService
}

// NewRoleService constructs a RoleService.
func NewRoleService(db *gorm.DB, engine *access.Engine, audit *AuditService) (*RoleService, error) {
	if db == nil {
		return nil, errors.New("role service: db is required")
	}
	if engine == nil {
		return nil, errors.New("role service: access engine is required")
	}
	return &RoleService{db: db, engine: engine, audit: audit}, nil
}

// CreateRoleInput carries the attributes for a new role.
type CreateRoleInput struct {
	Name            string
	Description     string
	OrganizationID  *string
	PermissionCodes []string
}

// UpdateRoleInput carries mutable role attributes. Nil fields are left unchanged.
type UpdateRoleInput struct {
	Name        *string
	Description *string
}

// List returns all roles with their permission sets preloaded.
func (s *RoleService) List(ctx context.Context) ([]models.Role, error) {
	ctx = ensureContext(ctx)

	var roles []models.Role
	if err := s.db.WithContext(ctx).
		Preload("Permissions").
		Order("name ASC").
		Find(&roles).Error; err != nil {
		return nil, fmt.Errorf("role service: list roles: %w", err)
	}
	return roles, nil
}

// Get returns a single role by id.
func (s *RoleService) Get(ctx context.Context, roleID string) (*models.Role, error) {
	ctx = ensureContext(ctx)

	roleID = strings.TrimSpace(roleID)
	if roleID == "" {
		return nil, apperrors.NewBadRequest("role id is required")
	}

	var role models.Role
	err := s.db.WithContext(ctx).Preload("Permissions").First(&role, "id = ?", roleID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRoleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("role service: load role: %w", err)
	}
	return &role, nil
}

// Create persists a new custom role and attaches its initial permission set.
func (s *RoleService) Create(ctx context.Context, actor string, input CreateRoleInput) (*models.Role, error) {
	ctx = ensureContext(ctx)

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperrors.NewBadRequest("role name is required")
	}

	perms, err := s.permissionsForCodes(ctx, input.PermissionCodes)
	if err != nil {
		return nil, err
	}

	role := &models.Role{
		Name:        name,
		Description: strings.TrimSpace(input.Description),
		OrgScopedID: input.OrganizationID,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(role).Error; err != nil {
			if isUniqueConstraintError(err) {
				return apperrors.NewConflict("A role with this name already exists")
			}
			return fmt.Errorf("role service: create role: %w", err)
		}
		if len(perms) > 0 {
			if err := tx.Model(role).Association("Permissions").Replace(perms); err != nil {
				return fmt.Errorf("role service: attach permissions: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	recordAudit(s.audit, ctx, AuditEntry{
		Action:   "role.create",
		Resource: role.ID,
		Result:   "success",
		Username: actor,
		Metadata: map[string]any{"name": role.Name, "permissions": normaliseIDs(input.PermissionCodes)},
	})

	return s.Get(ctx, role.ID)
}

// Update mutates a custom role's name or description.
func (s *RoleService) Update(ctx context.Context, actor, roleID string, input UpdateRoleInput) (*models.Role, error) {
	ctx = ensureContext(ctx)

	role, err := s.Get(ctx, roleID)
	if err != nil {
		return nil, err
	}
	if role.IsSystem {
		return nil, ErrSystemRoleImmutable
	}

	updates := map[string]any{}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, apperrors.NewBadRequest("role name cannot be empty")
		}
		updates["name"] = name
	}
	if input.Description != nil {
		updates["description"] = strings.TrimSpace(*input.Description)
	}

	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(role).Updates(updates).Error; err != nil {
			if isUniqueConstraintError(err) {
				return nil, apperrors.NewConflict("A role with this name already exists")
			}
			return nil, fmt.Errorf("role service: update role: %w", err)
		}
	}

	recordAudit(s.audit, ctx, AuditEntry{
		Action:   "role.update",
		Resource: role.ID,
		Result:   "success",
		Username: actor,
	})

	return s.Get(ctx, role.ID)
}

// Delete removes a custom role together with its assignments. Cached sets of
// every holder are invalidated so the deletion takes effect within one cycle.
func (s *RoleService) Delete(ctx context.Context, actor, roleID string) error {
	ctx = ensureContext(ctx)

	role, err := s.Get(ctx, roleID)
	if err != nil {
		return err
	}
	if role.IsSystem {
		return ErrSystemRoleImmutable
	}

	holders, err := s.engine.Assignments.HoldersOfRole(ctx, role.ID)
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("role_id = ?", role.ID).Delete(&models.RoleAssignment{}).Error; err != nil {
			return fmt.Errorf("role service: delete assignments: %w", err)
		}
		if err := tx.Model(role).Association("Permissions").Clear(); err != nil {
			return fmt.Errorf("role service: clear permissions: %w", err)
		}
		if err := tx.Delete(role).Error; err != nil {
			return fmt.Errorf("role service: delete role: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.engine.Cache.InvalidateMany(holders)

	recordAudit(s.audit, ctx, AuditEntry{
		Action:   "role.delete",
		Resource: role.ID,
		Result:   "success",
		Username: actor,
		Metadata: map[string]any{"holders_invalidated": len(holders)},
	})

	return nil
}

// SetPermissions replaces the role's permission set and invalidates the cached
// permission sets of every active holder.
func (s *RoleService) SetPermissions(ctx context.Context, actor, roleID string, codes []string) (*models.Role, error) {
	ctx = ensureContext(ctx)

	role, err := s.Get(ctx, roleID)
	if err != nil {
		return nil, err
	}
	if role.IsSystem {
		return nil, ErrSystemRoleImmutable
	}

	perms, err := s.permissionsForCodes(ctx, codes)
	if err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Model(role).Association("Permissions").Replace(perms); err != nil {
		return nil, fmt.Errorf("role service: replace permissions: %w", err)
	}

	holders, err := s.engine.Assignments.HoldersOfRole(ctx, role.ID)
	if err != nil {
		return nil, err
	}
	s.engine.Cache.InvalidateMany(holders)

	recordAudit(s.audit, ctx, AuditEntry{
		Action:   "role.set_permissions",
		Resource: role.ID,
		Result:   "success",
		Username: actor,
		Metadata: map[string]any{"permissions": normaliseIDs(codes), "holders_invalidated": len(holders)},
	})

	return s.Get(ctx, role.ID)
}

// AssignRoleInput describes one user-to-role assignment.
type AssignRoleInput struct {
	UserID         string
	RoleID         string
	OrganizationID *string
	DepartmentID   *string
	Actor          string
}

// AssignRole grants a role to a user, reactivating a previously revoked
// assignment when one exists for the same scope.
func (s *RoleService) AssignRole(ctx context.Context, input AssignRoleInput) (*models.RoleAssignment, error) {
	ctx = ensureContext(ctx)

	userID := strings.TrimSpace(input.UserID)
	if userID == "" {
		return nil, apperrors.NewBadRequest("user id is required")
	}
	if _, err := s.Get(ctx, input.RoleID); err != nil {
		return nil, err
	}

	var user models.User
	err := s.db.WithContext(ctx).First(&user, "id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrNotFound.WithMessage("User not found")
	}
	if err != nil {
		return nil, fmt.Errorf("role service: load user: %w", err)
	}

	var assignment models.RoleAssignment
	err = s.db.WithContext(ctx).
		Where("user_id = ? AND role_id = ?", userID, input.RoleID).
		First(&assignment).Error
	switch {
	case err == nil:
		updates := map[string]any{
			"is_active":   true,
			"assigned_by": strings.TrimSpace(input.Actor),
			"assigned_at": time.Now(),
		}
		if err := s.db.WithContext(ctx).Model(&assignment).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("role service: reactivate assignment: %w", err)
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		assignment = models.RoleAssignment{
			UserID:         userID,
			RoleID:         strings.TrimSpace(input.RoleID),
			OrganizationID: input.OrganizationID,
			DepartmentID:   input.DepartmentID,
			AssignedBy:     strings.TrimSpace(input.Actor),
			AssignedAt:     time.Now(),
			IsActive:       true,
		}
		if err := s.db.WithContext(ctx).Create(&assignment).Error; err != nil {
			return nil, fmt.Errorf("role service: create assignment: %w", err)
		}
	default:
		return nil, fmt.Errorf("role service: load assignment: %w", err)
	}

	s.engine.Cache.Invalidate(userID)

	recordAudit(s.audit, ctx, AuditEntry{
		UserID:   &userID,
		Action:   "role.assign",
		Resource: assignment.RoleID,
		Result:   "success",
		Username: input.Actor,
	})

	return &assignment, nil
}

// RevokeRole deactivates a user's role assignment. The row is kept for audit
// history; only is_active flips.
func (s *RoleService) RevokeRole(ctx context.Context, actor, userID, roleID string) error {
	ctx = ensureContext(ctx)

	userID = strings.TrimSpace(userID)
	roleID = strings.TrimSpace(roleID)
	if userID == "" || roleID == "" {
		return apperrors.NewBadRequest("user id and role id are required")
	}

	result := s.db.WithContext(ctx).
		Model(&models.RoleAssignment{}).
		Where("user_id = ? AND role_id = ? AND is_active = ?", userID, roleID, true).
		Update("is_active", false)
	if result.Error != nil {
		return fmt.Errorf("role service: revoke assignment: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrNotFound.WithMessage("Active role assignment not found")
	}

	s.engine.Cache.Invalidate(userID)

	recordAudit(s.audit, ctx, AuditEntry{
		UserID:   &userID,
		Action:   "role.revoke",
		Resource: roleID,
		Result:   "success",
		Username: actor,
	})

	return nil
}

func (s *RoleService) permissionsForCodes(ctx context.Context, codes []string) ([]models.Permission, error) {
	codes = normaliseIDs(codes)
	if len(codes) == 0 {
		return nil, nil
	}

	for _, code := range codes {
		if _, ok := access.Lookup(code); !ok {
			return nil, apperrors.NewBadRequest(fmt.Sprintf("unknown permission %q", code))
		}
	}

	var perms []models.Permission
	if err := s.db.WithContext(ctx).Where("id IN ?", codes).Find(&perms).Error; err != nil {
		return nil, fmt.Errorf("role service: load permissions: %w", err)
	}
	if len(perms) != len(codes) {
		return nil, apperrors.NewBadRequest("one or more permissions are not seeded in the catalog")
	}
	return perms, nil
}
