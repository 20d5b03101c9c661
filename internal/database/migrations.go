package database

import (
	"fmt"
	"sort"

	"gorm.io/gorm"

	"github.com/voltgrid/voltgrid/internal/access"
	"github.com/voltgrid/voltgrid/internal/models"
)

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Organization{},
		&models.Department{},
		&models.User{},
		&models.Role{},
		&models.PermissionGroup{},
		&models.Permission{},
		&models.RoleAssignment{},
		&models.PermissionOverride{},
		&models.DeviceModel{},
		&models.Device{},
		&models.TelemetryReading{},
		&models.AuditLog{},
	)
}

// SeedData populates permission rows from the access catalog plus the default
// system roles. Seeding is idempotent; existing rows are left untouched.
func SeedData(db *gorm.DB) error {
	if err := seedPermissions(db); err != nil {
		return err
	}
	return seedRoles(db)
}

func seedPermissions(db *gorm.DB) error {
	groups := make(map[string]string)

	definitions := access.AllDefinitions()
	codes := make([]string, 0, len(definitions))
	for code := range definitions {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	for _, code := range codes {
		def := definitions[code]

		var groupID *string
		if def.Group != "" {
			id, ok := groups[def.Group]
			if !ok {
				group := models.PermissionGroup{Name: def.Group}
				if err := db.Where(models.PermissionGroup{Name: def.Group}).
					Attrs(group).FirstOrCreate(&group).Error; err != nil {
					return fmt.Errorf("seed permission group %q: %w", def.Group, err)
				}
				id = group.ID
				groups[def.Group] = id
			}
			groupID = &id
		}

		perm := models.Permission{
			BaseModel:   models.BaseModel{ID: code},
			Resource:    def.Resource,
			Action:      def.Action,
			GroupID:     groupID,
			Description: def.Description,
		}
		if err := db.Where(models.Permission{BaseModel: models.BaseModel{ID: code}}).
			Attrs(perm).FirstOrCreate(&models.Permission{}).Error; err != nil {
			return fmt.Errorf("seed permission %q: %w", code, err)
		}
	}

	return nil
}

func seedRoles(db *gorm.DB) error {
	roles := []struct {
		role  models.Role
		codes []string
	}{
		{
			role: models.Role{
				BaseModel:   models.BaseModel{ID: "platform-admin"},
				Name:        "Platform Administrator",
				Description: "Full platform access",
				IsSystem:    true,
			},
			codes: []string{access.PermSystemAdmin},
		},
		{
			role: models.Role{
				BaseModel:   models.BaseModel{ID: "org-admin"},
				Name:        "Organization Administrator",
				Description: "Manages one organization and all its departments",
				IsSystem:    true,
			},
			codes: []string{
				"organization.view", access.PermOrganizationManage,
				"department.view", access.PermDepartmentManage, access.PermDepartmentViewAll,
				"user.view", "user.create", "user.edit", "user.delete",
				"role.view", "device.view", "device.create", "device.edit", "device.delete",
				"device_model.view", "warranty.view", "warranty.manage",
				"telemetry.view", "telemetry.export", "audit.view",
			},
		},
		{
			role: models.Role{
				BaseModel:   models.BaseModel{ID: "dept-manager"},
				Name:        "Department Manager",
				Description: "Manages devices and users within one department",
				IsSystem:    true,
			},
			codes: []string{
				"department.view", access.PermDepartmentManage,
				"user.view", "device.view", "device.create", "device.edit",
				"device_model.view", "warranty.view", "telemetry.view",
			},
		},
		{
			role: models.Role{
				BaseModel:   models.BaseModel{ID: "viewer"},
				Name:        "Viewer",
				Description: "Read-only access within own scope",
				IsSystem:    true,
			},
			codes: []string{
				"organization.view", "department.view", "user.view",
				"device.view", "device_model.view", "warranty.view", "telemetry.view",
			},
		},
	}

	for _, entry := range roles {
		var role models.Role
		if err := db.Where(models.Role{BaseModel: models.BaseModel{ID: entry.role.ID}}).
			Attrs(entry.role).FirstOrCreate(&role).Error; err != nil {
			return fmt.Errorf("seed role %q: %w", entry.role.ID, err)
		}

		count := db.Model(&role).Association("Permissions").Count()
		if count > 0 {
			continue // operator may have tuned the set; do not reapply defaults
		}

		var perms []models.Permission
		if err := db.Where("id IN ?", entry.codes).Find(&perms).Error; err != nil {
			return fmt.Errorf("seed role %q permissions: %w", entry.role.ID, err)
		}
		if err := db.Model(&role).Association("Permissions").Replace(perms); err != nil {
			return fmt.Errorf("seed role %q permissions: %w", entry.role.ID, err)
		}
	}

	return nil
}
