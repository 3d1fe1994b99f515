package models

import "time"

// DeviceEntry is one key of a device-scoped store (postgres backend).
type DeviceEntry struct {
	DeviceID  string    `gorm:"size:36;primaryKey" json:"device_id"`
	Key       string    `gorm:"size:320;primaryKey" json:"key"`
	Value     string    `gorm:"type:text;not null" json:"value"`
	UpdatedAt time.Time `gorm:"index" json:"updated_at"`
}
