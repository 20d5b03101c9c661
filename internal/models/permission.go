package models

// Permission is an atomic capability. The primary key is the permission code
// itself (e.g. "device.delete"); codes are seeded from the access catalog and
// never minted by the resolver.
type Permission struct {
	BaseModel

	Resource    string  `gorm:"not null;index" json:"resource"`
	Action      string  `gorm:"not null" json:"action"`
	GroupID     *string `gorm:"type:uuid;index" json:"group_id"`
	Description string  `json:"description"`

	Group *PermissionGroup `gorm:"foreignKey:GroupID" json:"group,omitempty"`
	Roles []Role           `gorm:"many2many:role_permissions;" json:"roles,omitempty"`
}
