package models

import (
	"time"

	"gorm.io/datatypes"
)

// Device represents a managed unit (power meter, smart socket, display panel)
// owned by an organization and optionally assigned to a department.
type Device struct {
	BaseModel

	SerialNumber string `gorm:"uniqueIndex;not null" json:"serial_number"`
	Name         string `gorm:"not null;index" json:"name"`

	OrganizationID string  `gorm:"type:uuid;not null;index" json:"organization_id"`
	DepartmentID   *string `gorm:"type:uuid;index" json:"department_id"`
	ModelID        string  `gorm:"type:uuid;not null;index" json:"model_id"`

	MQTTHost     string `json:"mqtt_host"`
	MQTTPort     int    `json:"mqtt_port"`
	MQTTUsername string `json:"mqtt_username"`
	MQTTPassword string `json:"-"`
	MQTTTopic    string `json:"mqtt_topic"`
	MQTTClientID string `json:"mqtt_client_id"`

	WarrantyUntil *time.Time `gorm:"index" json:"warranty_until"`
	IsOnline      bool       `gorm:"default:false" json:"is_online"`
	LastSeenAt    *time.Time `json:"last_seen_at"`

	Settings datatypes.JSON `json:"settings"`

	Organization *Organization `gorm:"foreignKey:OrganizationID" json:"organization,omitempty"`
	Department   *Department   `gorm:"foreignKey:DepartmentID" json:"department,omitempty"`
	Model        *DeviceModel  `gorm:"foreignKey:ModelID" json:"model,omitempty"`

	Readings []TelemetryReading `gorm:"foreignKey:DeviceID" json:"readings,omitempty"`
}
