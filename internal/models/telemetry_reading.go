package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TelemetryReading stores one sampled value reported by a device.
type TelemetryReading struct {
	ID         string    `gorm:"primaryKey;type:uuid" json:"id"`
	DeviceID   string    `gorm:"type:uuid;not null;index:idx_reading_device_time" json:"device_id"`
	Kind       string    `gorm:"not null;index" json:"kind"` // power, socket, display
	Value      float64   `gorm:"not null" json:"value"`
	Unit       string    `json:"unit"`
	RecordedAt time.Time `gorm:"not null;index:idx_reading_device_time" json:"recorded_at"`

	Device *Device `gorm:"foreignKey:DeviceID" json:"device,omitempty"`
}

func (r *TelemetryReading) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}
