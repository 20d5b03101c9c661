package access

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"gorm.io/gorm"

	"github.com/voltgrid/voltgrid/internal/models"
)

// Definition describes a permission code registered by platform modules.
// Definitions are immutable at resolution time; the resolver only reads them.
type Definition struct {
	Code        string
	Resource    string
	Action      string
	Group       string
	Description string
}

type definitionRegistry struct {
	mu          sync.RWMutex
	definitions map[string]*Definition
}

var globalRegistry = &definitionRegistry{
	definitions: make(map[string]*Definition),
}

var (
	errNilDefinition = errors.New("access: nil permission definition")
	errEmptyCode     = errors.New("access: permission code is required")
	errDuplicateCode = errors.New("access: permission already registered")

	// ErrUnknownPermission indicates a permission lookup failed because the code has not been registered.
	ErrUnknownPermission = errors.New("access: unknown permission")
)

// Register adds a permission definition to the global registry.
func Register(def *Definition) error {
	if def == nil {
		return errNilDefinition
	}

	code := strings.TrimSpace(def.Code)
	if code == "" {
		return errEmptyCode
	}

	cp := *def
	cp.Code = code
	if cp.Resource == "" || cp.Action == "" {
		resource, action := splitCode(code)
		if cp.Resource == "" {
			cp.Resource = resource
		}
		if cp.Action == "" {
			cp.Action = action
		}
	}

	globalRegistry.mu.Lock()
	defer globalRegistry.mu.Unlock()

	if _, exists := globalRegistry.definitions[code]; exists {
		return fmt.Errorf("%w: %s", errDuplicateCode, code)
	}

	globalRegistry.definitions[code] = &cp
	return nil
}

// Lookup returns a copy of the registered definition for the code.
func Lookup(code string) (*Definition, bool) {
	globalRegistry.mu.RLock()
	defer globalRegistry.mu.RUnlock()

	def, ok := globalRegistry.definitions[code]
	if !ok {
		return nil, false
	}
	cp := *def
	return &cp, true
}

// AllDefinitions returns every registered definition keyed by code.
func AllDefinitions() map[string]*Definition {
	globalRegistry.mu.RLock()
	defer globalRegistry.mu.RUnlock()

	out := make(map[string]*Definition, len(globalRegistry.definitions))
	for code, def := range globalRegistry.definitions {
		cp := *def
		out[code] = &cp
	}
	return out
}

// removeDefinition clears a registry entry. Intended for testing only.
func removeDefinition(code string) {
	globalRegistry.mu.Lock()
	defer globalRegistry.mu.Unlock()
	delete(globalRegistry.definitions, code)
}

func splitCode(code string) (resource, action string) {
	idx := strings.LastIndex(code, ".")
	if idx <= 0 {
		return code, ""
	}
	return code[:idx], code[idx+1:]
}

// CatalogFilter narrows catalog listings.
type CatalogFilter struct {
	Resource string
	Group    string
}

// Catalog provides a read-only view of permission and role definitions backed
// by the database. Role→permission edges change rarely relative to resolution
// volume, so lookups go straight to the store without caching.
type Catalog struct {
	db *gorm.DB
}

// NewCatalog constructs a Catalog using the provided database handle.
func NewCatalog(db *gorm.DB) (*Catalog, error) {
	if db == nil {
		return nil, errors.New("access: catalog requires a database handle")
	}
	return &Catalog{db: db}, nil
}

// ListPermissions returns stored permissions matching the filter, ordered by code.
func (c *Catalog) ListPermissions(ctx context.Context, filter CatalogFilter) ([]models.Permission, error) {
	ctx = ensureContext(ctx)

	query := c.db.WithContext(ctx).Model(&models.Permission{})
	if resource := strings.TrimSpace(filter.Resource); resource != "" {
		query = query.Where("resource = ?", resource)
	}
	if group := strings.TrimSpace(filter.Group); group != "" {
		query = query.Joins("JOIN permission_groups ON permission_groups.id = permissions.group_id").
			Where("permission_groups.name = ?", group)
	}

	var perms []models.Permission
	if err := query.Order("id ASC").Find(&perms).Error; err != nil {
		return nil, fmt.Errorf("access: list permissions: %w", err)
	}
	return perms, nil
}

// RolePermissions expands a role into its permission codes.
func (c *Catalog) RolePermissions(ctx context.Context, roleID string) ([]string, error) {
	ctx = ensureContext(ctx)

	roleID = strings.TrimSpace(roleID)
	if roleID == "" {
		return nil, errors.New("access: role id is required")
	}

	var role models.Role
	err := c.db.WithContext(ctx).Preload("Permissions").First(&role, "id = ?", roleID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("access: role %q: %w", roleID, ErrUnknownRole)
	}
	if err != nil {
		return nil, fmt.Errorf("access: load role: %w", err)
	}

	codes := make([]string, 0, len(role.Permissions))
	for _, perm := range role.Permissions {
		codes = append(codes, perm.ID)
	}
	sort.Strings(codes)
	return codes, nil
}

// ErrUnknownRole indicates a referenced role does not exist.
var ErrUnknownRole = errors.New("access: unknown role")

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}
