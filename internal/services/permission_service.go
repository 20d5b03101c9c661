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

// PermissionService exposes the permission catalog and administers per-user
// overrides on top of the access engine. Every mutation invalidates the
// subject's cached permission set before returning.
type PermissionService struct {
	db     *gorm.DB
	engine *access.Engine
	audit  *AuditService
}

// NewPermissionService constructs a PermissionService.
func NewPermissionService(db *gorm.DB, engine *access.Engine, audit *AuditService) (*PermissionService, error) {
	if db == nil {
		return nil, errors.New("permission service: db is required")
	}
	if engine == nil {
		return nil, errors.New("permission service: access engine is required")
	}
	return &PermissionService{db: db, engine: engine, audit: audit}, nil
}

// ListCatalog returns seeded permissions, optionally filtered by resource or group.
func (s *PermissionService) ListCatalog(ctx context.Context, filter access.CatalogFilter) ([]models.Permission, error) {
	return s.engine.Catalog.ListPermissions(ctx, filter)
}

// EffectivePermissions resolves a user's current effective set with per-code
// provenance. This always bypasses the cache so administrators see the live
// state, not a snapshot up to one TTL old.
func (s *PermissionService) EffectivePermissions(ctx context.Context, userID string) ([]access.ResolvedPermission, error) {
	ctx = ensureContext(ctx)

	if err := s.ensureUserExists(ctx, userID); err != nil {
		return nil, err
	}
	return s.engine.Resolver.ResolveDetailed(ctx, userID, time.Time{})
}

// GrantInput describes a direct permission grant or revoke.
type GrantInput struct {
	UserID         string
	PermissionCode string
	Actor          string
	ValidFrom      *time.Time
	ValidUntil     *time.Time
	Notes          string
}

// Grant issues a time-bounded direct grant to a user.
func (s *PermissionService) Grant(ctx context.Context, input GrantInput) (*models.PermissionOverride, error) {
	ctx = ensureContext(ctx)

	if err := s.ensureUserExists(ctx, input.UserID); err != nil {
		return nil, err
	}
	if input.ValidFrom != nil && input.ValidUntil != nil && input.ValidUntil.Before(*input.ValidFrom) {
		return nil, apperrors.NewBadRequest("valid_until must not precede valid_from")
	}

	override, err := s.engine.Overrides.Grant(ctx, access.OverrideInput{
		UserID:         input.UserID,
		PermissionCode: input.PermissionCode,
		Actor:          input.Actor,
		ValidFrom:      input.ValidFrom,
		ValidUntil:     input.ValidUntil,
		Notes:          input.Notes,
	})
	if err != nil {
		if errors.Is(err, access.ErrUnknownPermission) {
			return nil, apperrors.NewBadRequest(err.Error())
		}
		return nil, err
	}

	s.engine.Cache.Invalidate(override.UserID)

	s.auditOverride(ctx, "permission.grant", input.Actor, override)
	return override, nil
}

// Revoke suppresses a permission for a user. Revoking a permission the user
// does not currently hold is rejected as a conflict so administrators notice
// no-op revocations instead of silently stacking them.
func (s *PermissionService) Revoke(ctx context.Context, input GrantInput) (*models.PermissionOverride, error) {
	ctx = ensureContext(ctx)

	if err := s.ensureUserExists(ctx, input.UserID); err != nil {
		return nil, err
	}

	code := strings.TrimSpace(input.PermissionCode)
	held, err := s.engine.Resolver.HasPermission(ctx, input.UserID, code)
	if err != nil {
		return nil, err
	}
	if !held {
		return nil, apperrors.NewConflict(fmt.Sprintf("user does not currently hold permission %q", code))
	}

	override, err := s.engine.Overrides.Revoke(ctx, access.OverrideInput{
		UserID:         input.UserID,
		PermissionCode: code,
		Actor:          input.Actor,
		ValidFrom:      input.ValidFrom,
		ValidUntil:     input.ValidUntil,
		Notes:          input.Notes,
	})
	if err != nil {
		if errors.Is(err, access.ErrUnknownPermission) {
			return nil, apperrors.NewBadRequest(err.Error())
		}
		return nil, err
	}

	s.engine.Cache.Invalidate(override.UserID)

	s.auditOverride(ctx, "permission.revoke", input.Actor, override)
	return override, nil
}

// BulkUpdateInput applies several grants and revokes for one user in a single call.
type BulkUpdateInput struct {
	UserID  string
	Grants  []string
	Revokes []string
	Actor   string
	Notes   string
}

// BulkUpdate applies each operation independently and reports one outcome per
// code. The cache is invalidated once afterwards regardless of partial failures.
func (s *PermissionService) BulkUpdate(ctx context.Context, input BulkUpdateInput) ([]access.BulkOutcome, error) {
	ctx = ensureContext(ctx)

	if err := s.ensureUserExists(ctx, input.UserID); err != nil {
		return nil, err
	}

	outcomes, err := s.engine.Overrides.BulkUpdate(ctx, access.BulkUpdateInput{
		UserID:  input.UserID,
		Grants:  normaliseIDs(input.Grants),
		Revokes: normaliseIDs(input.Revokes),
		Actor:   input.Actor,
		Notes:   input.Notes,
	})
	if err != nil {
		return nil, err
	}

	s.engine.Cache.Invalidate(strings.TrimSpace(input.UserID))

	userID := strings.TrimSpace(input.UserID)
	recordAudit(s.audit, ctx, AuditEntry{
		UserID:   &userID,
		Action:   "permission.bulk_update",
		Resource: "permission_overrides",
		Result:   "success",
		Username: input.Actor,
		Metadata: map[string]any{"grants": normaliseIDs(input.Grants), "revokes": normaliseIDs(input.Revokes)},
	})

	return outcomes, nil
}

// ListOverrides returns a user's currently effective override rows.
func (s *PermissionService) ListOverrides(ctx context.Context, userID string) ([]models.PermissionOverride, error) {
	ctx = ensureContext(ctx)

	if err := s.ensureUserExists(ctx, userID); err != nil {
		return nil, err
	}
	return s.engine.Overrides.ActiveOverrides(ctx, userID, time.Time{})
}

func (s *PermissionService) ensureUserExists(ctx context.Context, userID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return apperrors.NewBadRequest("user id is required")
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Count(&count).Error; err != nil {
		return fmt.Errorf("permission service: check user: %w", err)
	}
	if count == 0 {
		return apperrors.ErrNotFound.WithMessage("User not found")
	}
	return nil
}

func (s *PermissionService) auditOverride(ctx context.Context, action, actor string, override *models.PermissionOverride) {
	meta := map[string]any{"permission": override.PermissionID}
	if override.ValidUntil != nil {
		meta["valid_until"] = override.ValidUntil.Format(time.RFC3339)
	}
	recordAudit(s.audit, ctx, AuditEntry{
		UserID:   &override.UserID,
		Action:   action,
		Resource: override.PermissionID,
		Result:   "success",
		Username: actor,
		Metadata: meta,
	})
}
