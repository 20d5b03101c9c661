package models

type PermissionGroup struct {
	BaseModel

	Name        string `gorm:"uniqueIndex;not null" json:"name"`
	Description string `json:"description"`

	Permissions []Permission `gorm:"foreignKey:GroupID" json:"permissions,omitempty"`
}
