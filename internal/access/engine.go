package access

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/voltgrid/voltgrid/internal/models"
)

// Engine wires the access-control components together and is the handle the
// rest of the application holds. It is created once at startup by the service
// root and passed by reference; there is no package-level singleton.
type Engine struct {
	Catalog     *Catalog
	Assignments *AssignmentStore
	Overrides   *OverrideStore
	Resolver    *Resolver
	Cache       *Cache
	Scopes      *ScopeResolver

	db  *gorm.DB
	now func() time.Time
}

// EngineConfig carries tunables for the engine.
type EngineConfig struct {
	CacheTTL        time.Duration
	CacheMaxEntries int
	Clock           func() time.Time
}

// NewEngine constructs the full access engine on top of a database handle.
func NewEngine(db *gorm.DB, cfg EngineConfig) (*Engine, error) {
	if db == nil {
		return nil, errors.New("access: engine requires a database handle")
	}

	now := cfg.Clock
	if now == nil {
		now = time.Now
	}

	catalog, err := NewCatalog(db)
	if err != nil {
		return nil, err
	}
	assignments, err := NewAssignmentStore(db)
	if err != nil {
		return nil, err
	}
	overrides, err := NewOverrideStore(db, WithOverrideClock(now))
	if err != nil {
		return nil, err
	}
	resolver, err := NewResolver(assignments, overrides, WithResolverClock(now))
	if err != nil {
		return nil, err
	}

	cacheOpts := []CacheOption{WithCacheClock(now)}
	if cfg.CacheTTL > 0 {
		cacheOpts = append(cacheOpts, WithCacheTTL(cfg.CacheTTL))
	}
	if cfg.CacheMaxEntries > 0 {
		cacheOpts = append(cacheOpts, WithCacheMaxEntries(cfg.CacheMaxEntries))
	}
	cache, err := NewCache(resolver, cacheOpts...)
	if err != nil {
		return nil, err
	}

	scopes, err := NewScopeResolver(cache)
	if err != nil {
		return nil, err
	}

	return &Engine{
		Catalog:     catalog,
		Assignments: assignments,
		Overrides:   overrides,
		Resolver:    resolver,
		Cache:       cache,
		Scopes:      scopes,
		db:          db,
		now:         now,
	}, nil
}

// BuildContext resolves the caller's AccessContext for one request: effective
// permission set through the cache, then the derived scope.
func (e *Engine) BuildContext(ctx context.Context, user *models.User) (*AccessContext, error) {
	if user == nil {
		return nil, errors.New("access: user is required")
	}

	set, err := e.Cache.Get(ensureContext(ctx), user.ID)
	if err != nil {
		return nil, fmt.Errorf("access: build context: %w", err)
	}

	return &AccessContext{
		User:        user,
		Permissions: set,
		Scope:       ScopeFromSet(user, set),
		ResolvedAt:  e.now(),
	}, nil
}

// LoadUser fetches the user record backing an authenticated request. Missing
// or deactivated users return ErrUnknownUser so callers deny access without
// leaking which case occurred.
func (e *Engine) LoadUser(ctx context.Context, userID string) (*models.User, error) {
	var user models.User
	err := e.db.WithContext(ensureContext(ctx)).First(&user, "id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUnknownUser
	}
	if err != nil {
		return nil, fmt.Errorf("access: load user: %w", err)
	}
	if !user.IsActive {
		return nil, ErrUnknownUser
	}
	return &user, nil
}

// ErrUnknownUser indicates the authenticated subject no longer maps to an
// active user record.
var ErrUnknownUser = errors.New("access: unknown user")
