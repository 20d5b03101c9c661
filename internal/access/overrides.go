package access

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/voltgrid/voltgrid/internal/models"
)

// OverrideStore manages per-user permission overrides (direct grants and
// revokes). Exactly one override row is current per (user, permission) pair;
// writing a new override supersedes the previous one in place instead of
// delete-then-insert, so no gap is visible mid-mutation.
type OverrideStore struct {
	db  *gorm.DB
	now func() time.Time
}

// OverrideStoreOption customises an OverrideStore.
type OverrideStoreOption func(*OverrideStore)

// WithOverrideClock overrides the clock, primarily for tests.
func WithOverrideClock(now func() time.Time) OverrideStoreOption {
	return func(s *OverrideStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewOverrideStore constructs an OverrideStore.
func NewOverrideStore(db *gorm.DB, opts ...OverrideStoreOption) (*OverrideStore, error) {
	if db == nil {
		return nil, errors.New("access: override store requires a database handle")
	}
	store := &OverrideStore{db: db, now: time.Now}
	for _, opt := range opts {
		opt(store)
	}
	return store, nil
}

// ActiveOverrides returns override rows whose validity window covers asOf.
// Rows outside the window (expired or not yet valid) are excluded entirely:
// they neither grant nor suppress anything. Grant and revoke rows are
// distinguished by IsActive; callers partition on that flag.
func (s *OverrideStore) ActiveOverrides(ctx context.Context, userID string, asOf time.Time) ([]models.PermissionOverride, error) {
	ctx = ensureContext(ctx)

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, errors.New("access: user id is required")
	}
	if asOf.IsZero() {
		asOf = s.now()
	}

	var overrides []models.PermissionOverride
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Where("valid_from IS NULL OR valid_from <= ?", asOf).
		Where("valid_until IS NULL OR valid_until >= ?", asOf).
		Find(&overrides).Error
	if err != nil {
		return nil, fmt.Errorf("access: load overrides: %w", err)
	}
	return overrides, nil
}

// OverrideInput carries the attributes for a grant or revoke mutation.
type OverrideInput struct {
	UserID         string
	PermissionCode string
	Actor          string
	ValidFrom      *time.Time
	ValidUntil     *time.Time
	Notes          string
}

// Grant upserts an active override granting the permission to the user.
func (s *OverrideStore) Grant(ctx context.Context, input OverrideInput) (*models.PermissionOverride, error) {
	return s.upsert(ctx, input, true)
}

// Revoke upserts an inactive override suppressing the permission for the
// user. Whether the user currently holds the permission is a caller-side
// precondition, not enforced here.
func (s *OverrideStore) Revoke(ctx context.Context, input OverrideInput) (*models.PermissionOverride, error) {
	return s.upsert(ctx, input, false)
}

func (s *OverrideStore) upsert(ctx context.Context, input OverrideInput, grant bool) (*models.PermissionOverride, error) {
	ctx = ensureContext(ctx)

	userID := strings.TrimSpace(input.UserID)
	if userID == "" {
		return nil, errors.New("access: user id is required")
	}
	code := strings.TrimSpace(input.PermissionCode)
	if code == "" {
		return nil, errors.New("access: permission code is required")
	}
	if _, ok := Lookup(code); !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownPermission, code)
	}

	now := s.now()
	validFrom := input.ValidFrom
	if validFrom == nil {
		validFrom = &now
	}

	override := &models.PermissionOverride{
		UserID:       userID,
		PermissionID: code,
		GrantedBy:    strings.TrimSpace(input.Actor),
		GrantedAt:    now,
		ValidFrom:    validFrom,
		ValidUntil:   input.ValidUntil,
		IsActive:     grant,
		Notes:        strings.TrimSpace(input.Notes),
	}

	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "permission_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"granted_by", "granted_at", "valid_from", "valid_until", "is_active", "notes", "updated_at",
			}),
		}).
		Create(override).Error
	if err != nil {
		return nil, fmt.Errorf("access: upsert override: %w", err)
	}

	return override, nil
}

// BulkOutcome reports the result of one operation inside a bulk update.
type BulkOutcome struct {
	PermissionCode string `json:"permission_code"`
	Operation      string `json:"operation"` // grant or revoke
	Success        bool   `json:"success"`
	Error          string `json:"error,omitempty"`
}

// BulkUpdateInput applies several grants and revokes for one user.
type BulkUpdateInput struct {
	UserID  string
	Grants  []string
	Revokes []string
	Actor   string
	Notes   string
}

// BulkUpdate applies each grant and revoke independently. One failing code
// never rolls back its siblings; the caller receives one outcome per code.
func (s *OverrideStore) BulkUpdate(ctx context.Context, input BulkUpdateInput) ([]BulkOutcome, error) {
	ctx = ensureContext(ctx)

	if strings.TrimSpace(input.UserID) == "" {
		return nil, errors.New("access: user id is required")
	}

	outcomes := make([]BulkOutcome, 0, len(input.Grants)+len(input.Revokes))

	for _, code := range input.Grants {
		_, err := s.Grant(ctx, OverrideInput{
			UserID:         input.UserID,
			PermissionCode: code,
			Actor:          input.Actor,
			Notes:          input.Notes,
		})
		outcomes = append(outcomes, bulkOutcome(code, "grant", err))
	}

	for _, code := range input.Revokes {
		_, err := s.Revoke(ctx, OverrideInput{
			UserID:         input.UserID,
			PermissionCode: code,
			Actor:          input.Actor,
			Notes:          input.Notes,
		})
		outcomes = append(outcomes, bulkOutcome(code, "revoke", err))
	}

	return outcomes, nil
}

// PruneExpired deletes override rows whose validity window ended before the
// cutoff. Expired rows are already invisible to resolution; pruning only
// bounds table growth.
func (s *OverrideStore) PruneExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	ctx = ensureContext(ctx)

	if cutoff.IsZero() {
		cutoff = s.now()
	}

	result := s.db.WithContext(ctx).
		Where("valid_until IS NOT NULL AND valid_until < ?", cutoff).
		Delete(&models.PermissionOverride{})
	if result.Error != nil {
		return 0, fmt.Errorf("access: prune overrides: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func bulkOutcome(code, op string, err error) BulkOutcome {
	outcome := BulkOutcome{
		PermissionCode: strings.TrimSpace(code),
		Operation:      op,
		Success:        err == nil,
	}
	if err != nil {
		outcome.Error = err.Error()
	}
	return outcome
}
