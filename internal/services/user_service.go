package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/voltgrid/voltgrid/internal/access"
	"github.com/voltgrid/voltgrid/internal/models"
	"github.com/voltgrid/voltgrid/pkg/crypto"
	apperrors "github.com/voltgrid/voltgrid/pkg/errors"
)

// DefaultRoleID is assigned to newly created users when no role is specified.
const DefaultRoleID = "viewer"

// ErrUserNotFound indicates the requested user does not exist or is outside scope.
var ErrUserNotFound = apperrors.ErrNotFound.WithMessage("User not found")

// UserService manages user accounts within the caller's tenancy scope.
type UserService struct {
	db     *gorm.DB
	engine *access.Engine
	roles  *RoleService
	audit  *AuditService
}

// NewUserService constructs a UserService.
func NewUserService(db *gorm.DB, engine *access.Engine, roles *RoleService, audit *AuditService) (*UserService, error) {
	if db == nil {
		return nil, errors.New("user service: db is required")
	}
	if engine == nil {
		return nil, errors.New("user service: access engine is required")
	}
	if roles == nil {
		return nil, errors.New("user service: role service is required")
	}
	return &UserService{db: db, engine: engine, roles: roles, audit: audit}, nil
}

// CreateUserInput carries the attributes for a new account.
type CreateUserInput struct {
	Username       string
	Email          string
	Password       string
	FirstName      string
	LastName       string
	OrganizationID *string
	DepartmentID   *string
	RoleID         string
}

// UpdateUserInput carries mutable account attributes. Nil fields are left unchanged.
type UpdateUserInput struct {
	Email        *string
	FirstName    *string
	LastName     *string
	DepartmentID *string
	IsActive     *bool
}

// UserListOptions filters and paginates user listings.
type UserListOptions struct {
	Page         int
	PageSize     int
	Search       string
	DepartmentID string
}

// Create registers a new user inside the caller's scope and assigns the
// requested role, falling back to the default read-only role.
func (s *UserService) Create(ctx context.Context, actor *access.AccessContext, input CreateUserInput) (*models.User, error) {
	ctx = ensureContext(ctx)

	username := strings.TrimSpace(input.Username)
	email := strings.TrimSpace(input.Email)
	if username == "" || email == "" {
		return nil, apperrors.NewBadRequest("username and email are required")
	}
	if len(input.Password) < 8 {
		return nil, apperrors.NewBadRequest("password must be at least 8 characters")
	}

	orgID := input.OrganizationID
	if orgID == nil && actor.OrganizationID() != "" {
		own := actor.OrganizationID()
		orgID = &own
	}
	targetOrg := ""
	if orgID != nil {
		targetOrg = *orgID
	}
	targetDept := ""
	if input.DepartmentID != nil {
		targetDept = *input.DepartmentID
	}
	if err := s.engine.Scopes.AuthorizeTarget(actor.Scope, targetOrg, targetDept); err != nil {
		return nil, err
	}

	hash, err := crypto.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("user service: hash password: %w", err)
	}

	user := &models.User{
		Username:       username,
		Email:          email,
		Password:       hash,
		FirstName:      strings.TrimSpace(input.FirstName),
		LastName:       strings.TrimSpace(input.LastName),
		IsActive:       true,
		OrganizationID: orgID,
		DepartmentID:   input.DepartmentID,
	}
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, apperrors.NewConflict("Username or email is already taken")
		}
		return nil, fmt.Errorf("user service: create: %w", err)
	}

	roleID := strings.TrimSpace(input.RoleID)
	if roleID == "" {
		roleID = DefaultRoleID
	}
	if _, err := s.roles.AssignRole(ctx, AssignRoleInput{
		UserID:         user.ID,
		RoleID:         roleID,
		OrganizationID: orgID,
		DepartmentID:   input.DepartmentID,
		Actor:          actor.UserID(),
	}); err != nil {
		return nil, err
	}

	actorID := actor.UserID()
	recordAudit(s.audit, ctx, AuditEntry{
		UserID:   &actorID,
		Action:   "user.create",
		Resource: user.ID,
		Result:   "success",
		Metadata: map[string]any{"username": username, "role": roleID},
	})

	return user, nil
}

// Get returns one user after a scope check.
func (s *UserService) Get(ctx context.Context, actor *access.AccessContext, userID string) (*models.User, error) {
	ctx = ensureContext(ctx)

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, apperrors.NewBadRequest("user id is required")
	}

	var user models.User
	err := s.db.WithContext(ctx).
		Preload("RoleAssignments", "is_active = ?", true).
		Preload("RoleAssignments.Role").
		First(&user, "id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("user service: load: %w", err)
	}

	targetOrg := ""
	if user.OrganizationID != nil {
		targetOrg = *user.OrganizationID
	}
	targetDept := ""
	if user.DepartmentID != nil {
		targetDept = *user.DepartmentID
	}
	if err := s.engine.Scopes.AuthorizeTarget(actor.Scope, targetOrg, targetDept); err != nil {
		return nil, err
	}

	return &user, nil
}

// List returns users visible to the caller, scope-filtered and paginated.
func (s *UserService) List(ctx context.Context, actor *access.AccessContext, opts UserListOptions) ([]models.User, int64, error) {
	ctx = ensureContext(ctx)

	page := opts.Page
	if page <= 0 {
		page = 1
	}
	perPage := opts.PageSize
	if perPage <= 0 || perPage > 200 {
		perPage = 50
	}

	query := s.db.WithContext(ctx).Model(&models.User{})
	query = s.applyScopeFilter(query, actor)

	if opts.DepartmentID != "" {
		if err := s.engine.Scopes.AuthorizeTarget(actor.Scope, "", opts.DepartmentID); err != nil {
			return nil, 0, err
		}
		query = query.Where("department_id = ?", opts.DepartmentID)
	}
	if search := strings.TrimSpace(opts.Search); search != "" {
		like := "%" + search + "%"
		query = query.Where("username LIKE ? OR email LIKE ? OR first_name LIKE ? OR last_name LIKE ?", like, like, like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("user service: count: %w", err)
	}

	var users []models.User
	if err := query.
		Order("username ASC").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&users).Error; err != nil {
		return nil, 0, fmt.Errorf("user service: list: %w", err)
	}

	return users, total, nil
}

// Update mutates account attributes within the caller's scope. Deactivation
// invalidates the subject's cached permission set immediately.
func (s *UserService) Update(ctx context.Context, actor *access.AccessContext, userID string, input UpdateUserInput) (*models.User, error) {
	ctx = ensureContext(ctx)

	user, err := s.Get(ctx, actor, userID)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if input.Email != nil {
		email := strings.TrimSpace(*input.Email)
		if email == "" {
			return nil, apperrors.NewBadRequest("email cannot be empty")
		}
		updates["email"] = email
	}
	if input.FirstName != nil {
		updates["first_name"] = strings.TrimSpace(*input.FirstName)
	}
	if input.LastName != nil {
		updates["last_name"] = strings.TrimSpace(*input.LastName)
	}
	if input.DepartmentID != nil {
		if err := s.engine.Scopes.AuthorizeTarget(actor.Scope, "", *input.DepartmentID); err != nil {
			return nil, err
		}
		updates["department_id"] = *input.DepartmentID
	}
	if input.IsActive != nil {
		updates["is_active"] = *input.IsActive
	}

	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(user).Updates(updates).Error; err != nil {
			if isUniqueConstraintError(err) {
				return nil, apperrors.NewConflict("Email is already taken")
			}
			return nil, fmt.Errorf("user service: update: %w", err)
		}
	}

	if input.IsActive != nil && !*input.IsActive {
		s.engine.Cache.Invalidate(user.ID)
	}

	actorID := actor.UserID()
	recordAudit(s.audit, ctx, AuditEntry{
		UserID:   &actorID,
		Action:   "user.update",
		Resource: user.ID,
		Result:   "success",
	})

	return user, nil
}

// ChangePassword verifies the current password before storing a new hash.
func (s *UserService) ChangePassword(ctx context.Context, userID, current, next string) error {
	ctx = ensureContext(ctx)

	if len(next) < 8 {
		return apperrors.NewBadRequest("password must be at least 8 characters")
	}

	var user models.User
	err := s.db.WithContext(ctx).First(&user, "id = ?", strings.TrimSpace(userID)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrUserNotFound
	}
	if err != nil {
		return fmt.Errorf("user service: load: %w", err)
	}

	if !crypto.VerifyPassword(user.Password, current) {
		return apperrors.ErrInvalidCredentials
	}

	hash, err := crypto.HashPassword(next)
	if err != nil {
		return fmt.Errorf("user service: hash password: %w", err)
	}
	if err := s.db.WithContext(ctx).Model(&user).Update("password", hash).Error; err != nil {
		return fmt.Errorf("user service: update password: %w", err)
	}

	recordAudit(s.audit, ctx, AuditEntry{
		UserID: &user.ID,
		Action: "user.change_password",
		Result: "success",
	})

	return nil
}

// Delete soft-deletes a user and drops their cached permission set.
func (s *UserService) Delete(ctx context.Context, actor *access.AccessContext, userID string) error {
	ctx = ensureContext(ctx)

	user, err := s.Get(ctx, actor, userID)
	if err != nil {
		return err
	}
	if user.ID == actor.UserID() {
		return apperrors.NewConflict("You cannot delete your own account")
	}

	if err := s.db.WithContext(ctx).Delete(user).Error; err != nil {
		return fmt.Errorf("user service: delete: %w", err)
	}

	s.engine.Cache.Invalidate(user.ID)

	actorID := actor.UserID()
	recordAudit(s.audit, ctx, AuditEntry{
		UserID:   &actorID,
		Action:   "user.delete",
		Resource: user.ID,
		Result:   "success",
	})

	return nil
}

func (s *UserService) applyScopeFilter(query *gorm.DB, actor *access.AccessContext) *gorm.DB {
	if actor.Scope.IsSystemAdmin {
		return query
	}
	if orgID := actor.OrganizationID(); orgID != "" {
		query = query.Where("organization_id = ?", orgID)
	} else {
		// Non-admin without an organization sees nobody.
		query = query.Where("1 = 0")
	}
	if deptID := actor.DepartmentID(); deptID != "" && !actor.Scope.CanViewAllDepartments {
		query = query.Where("department_id = ?", deptID)
	}
	return query
}
