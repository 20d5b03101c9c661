package models

type Role struct {
	BaseModel

	Name        string  `gorm:"uniqueIndex;not null" json:"name"`
	Description string  `json:"description"`
	IsSystem    bool    `gorm:"default:false" json:"is_system"`
	OrgScopedID *string `gorm:"type:uuid;index" json:"org_scoped_id"`

	Permissions []Permission     `gorm:"many2many:role_permissions;" json:"permissions,omitempty"`
	Assignments []RoleAssignment `gorm:"foreignKey:RoleID" json:"assignments,omitempty"`
}
