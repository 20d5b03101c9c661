package access

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/voltgrid/voltgrid/internal/models"
)

// AssignmentStore reads user→role assignments. Assignments carry no validity
// window; only the is_active flag decides whether they participate in
// resolution.
type AssignmentStore struct {
	db *gorm.DB
}

// NewAssignmentStore constructs an AssignmentStore.
func NewAssignmentStore(db *gorm.DB) (*AssignmentStore, error) {
	if db == nil {
		return nil, errors.New("access: assignment store requires a database handle")
	}
	return &AssignmentStore{db: db}, nil
}

// ActiveAssignments returns the user's active role assignments with the role
// permission sets preloaded. An unknown user yields an empty slice, not an
// error.
func (s *AssignmentStore) ActiveAssignments(ctx context.Context, userID string) ([]models.RoleAssignment, error) {
	ctx = ensureContext(ctx)

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, errors.New("access: user id is required")
	}

	var assignments []models.RoleAssignment
	err := s.db.WithContext(ctx).
		Preload("Role.Permissions").
		Where("user_id = ? AND is_active = ?", userID, true).
		Find(&assignments).Error
	if err != nil {
		return nil, fmt.Errorf("access: load role assignments: %w", err)
	}
	return assignments, nil
}

// HoldersOfRole enumerates user ids with an active assignment of the role.
// Callers use this to invalidate cached permission sets after a role's
// permission set changes.
func (s *AssignmentStore) HoldersOfRole(ctx context.Context, roleID string) ([]string, error) {
	ctx = ensureContext(ctx)

	roleID = strings.TrimSpace(roleID)
	if roleID == "" {
		return nil, errors.New("access: role id is required")
	}

	var userIDs []string
	err := s.db.WithContext(ctx).
		Model(&models.RoleAssignment{}).
		Where("role_id = ? AND is_active = ?", roleID, true).
		Distinct().
		Pluck("user_id", &userIDs).Error
	if err != nil {
		return nil, fmt.Errorf("access: list role holders: %w", err)
	}
	return userIDs, nil
}
