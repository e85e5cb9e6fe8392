package models

import (
	"encoding/json"
	"time"
)

// DeviceStatus is the latest telemetry snapshot a device reported for one category.
type DeviceStatus struct {
	DeviceID   string          `json:"device_id" gorm:"primaryKey;size:64"`
	Category   string          `json:"category" gorm:"primaryKey;size:32"`
	Payload    json.RawMessage `json:"payload" gorm:"type:JSONB;serializer:json"`
	ReportedAt time.Time       `json:"reported_at"`
}
