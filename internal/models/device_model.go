package models

import "gorm.io/datatypes"

// DeviceModel describes a hardware product line shared by many devices.
type DeviceModel struct {
	BaseModel

	Name     string         `gorm:"not null;uniqueIndex" json:"name"`
	Vendor   string         `json:"vendor"`
	Category string         `gorm:"not null;index" json:"category"` // power, socket, display
	Specs    datatypes.JSON `json:"specs"`

	Devices []Device `gorm:"foreignKey:ModelID" json:"devices,omitempty"`
}
