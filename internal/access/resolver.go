package access

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"
)

// PermissionSet is the resolved set of permission codes for a user at a point
// in time. It is derived, never stored.
type PermissionSet map[string]struct{}

// Has reports whether the set contains the code.
func (s PermissionSet) Has(code string) bool {
	_, ok := s[code]
	return ok
}

// Codes returns the sorted permission codes.
func (s PermissionSet) Codes() []string {
	codes := make([]string, 0, len(s))
	for code := range s {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// ResolvedPermission describes one effective permission and where it came from.
type ResolvedPermission struct {
	Code       string     `json:"code"`
	Source     string     `json:"source"` // role or direct
	RoleID     string     `json:"role_id,omitempty"`
	GrantedBy  string     `json:"granted_by,omitempty"`
	ValidUntil *time.Time `json:"valid_until,omitempty"`
}

// Resolver computes effective permission sets by combining role-derived
// permissions with time-bounded direct overrides.
//
// Callers checking PermSystemAdmin first and short-circuiting subsequent
// checks is a convention this resolver relies on consumers to honour; the
// resolver itself reports system.admin like any other code.
type Resolver struct {
	assignments *AssignmentStore
	overrides   *OverrideStore
	now         func() time.Time
}

// ResolverOption customises a Resolver.
type ResolverOption func(*Resolver)

// WithResolverClock overrides the clock used when no asOf instant is supplied.
func WithResolverClock(now func() time.Time) ResolverOption {
	return func(r *Resolver) {
		if now != nil {
			r.now = now
		}
	}
}

// NewResolver constructs a Resolver from its two stores.
func NewResolver(assignments *AssignmentStore, overrides *OverrideStore, opts ...ResolverOption) (*Resolver, error) {
	if assignments == nil {
		return nil, errors.New("access: resolver requires an assignment store")
	}
	if overrides == nil {
		return nil, errors.New("access: resolver requires an override store")
	}
	r := &Resolver{
		assignments: assignments,
		overrides:   overrides,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Resolve computes the effective permission set for the user at asOf
// (zero value means now):
//
//	effective = (roleDerived ∪ grants) \ revokes
//
// Grant and revoke rows are disjoint by construction (one current override per
// pair), so the subtraction is order-independent. Unknown users resolve to an
// empty set rather than an error; authorization fails closed either way.
func (r *Resolver) Resolve(ctx context.Context, userID string, asOf time.Time) (PermissionSet, error) {
	detailed, err := r.ResolveDetailed(ctx, userID, asOf)
	if err != nil {
		return nil, err
	}

	set := make(PermissionSet, len(detailed))
	for _, perm := range detailed {
		set[perm.Code] = struct{}{}
	}
	return set, nil
}

// ResolveDetailed computes the effective set with per-code provenance.
func (r *Resolver) ResolveDetailed(ctx context.Context, userID string, asOf time.Time) ([]ResolvedPermission, error) {
	ctx = ensureContext(ctx)

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, errors.New("access: user id is required")
	}
	if asOf.IsZero() {
		asOf = r.now()
	}

	assignments, err := r.assignments.ActiveAssignments(ctx, userID)
	if err != nil {
		return nil, err
	}

	resolved := make(map[string]ResolvedPermission)
	for _, assignment := range assignments {
		if assignment.Role == nil {
			continue
		}
		for _, perm := range assignment.Role.Permissions {
			if _, exists := resolved[perm.ID]; exists {
				continue
			}
			resolved[perm.ID] = ResolvedPermission{
				Code:   perm.ID,
				Source: "role",
				RoleID: assignment.RoleID,
			}
		}
	}

	overrides, err := r.overrides.ActiveOverrides(ctx, userID, asOf)
	if err != nil {
		return nil, err
	}

	for _, override := range overrides {
		if !override.IsActive {
			continue
		}
		resolved[override.PermissionID] = ResolvedPermission{
			Code:       override.PermissionID,
			Source:     "direct",
			GrantedBy:  override.GrantedBy,
			ValidUntil: override.ValidUntil,
		}
	}

	// Revokes win over both role-derived membership and direct grants.
	for _, override := range overrides {
		if override.IsActive {
			continue
		}
		delete(resolved, override.PermissionID)
	}

	out := make([]ResolvedPermission, 0, len(resolved))
	for _, perm := range resolved {
		out = append(out, perm)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

// HasPermission reports whether the user's effective set contains the code.
func (r *Resolver) HasPermission(ctx context.Context, userID, code string) (bool, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return false, errors.New("access: permission code is required")
	}

	set, err := r.Resolve(ctx, userID, time.Time{})
	if err != nil {
		return false, err
	}
	return set.Has(code), nil
}
