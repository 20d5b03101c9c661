package models

import "gorm.io/datatypes"

type Organization struct {
	BaseModel

	Name        string         `gorm:"not null;uniqueIndex" json:"name"`
	Description string         `json:"description"`
	ContactName string         `json:"contact_name"`
	Email       string         `json:"email"`
	Phone       string         `json:"phone"`
	Settings    datatypes.JSON `json:"settings"`

	Departments []Department `gorm:"foreignKey:OrganizationID" json:"departments,omitempty"`
	Users       []User       `gorm:"foreignKey:OrganizationID" json:"users,omitempty"`
	Devices     []Device     `gorm:"foreignKey:OrganizationID" json:"devices,omitempty"`
}
