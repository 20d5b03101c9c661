package models

type Department struct {
	BaseModel

	OrganizationID string `gorm:"type:uuid;not null;index" json:"organization_id"`
	Name           string `gorm:"not null" json:"name"`
	Description    string `json:"description"`

	Organization *Organization `gorm:"foreignKey:OrganizationID" json:"organization,omitempty"`
	Users        []User        `gorm:"foreignKey:DepartmentID" json:"users,omitempty"`
	Devices      []Device      `gorm:"foreignKey:DepartmentID" json:"devices,omitempty"`
}
