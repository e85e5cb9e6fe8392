package models

import (
	"time"

	"github.com/google/uuid"
)

// Device is the durable identity of one physical receiver.
// DeviceID never changes for the lifetime of the unit; DeviceInstanceID is regenerated
// by the firmware on every physical factory reset.
type Device struct {
	DeviceID         string     `json:"device_id" gorm:"primaryKey;size:64"`
	DeviceInstanceID string     `json:"device_instance_id" gorm:"size:64"`
	SerialNumber     string     `json:"serial_number" gorm:"size:32;uniqueIndex"`
	MacAddress       string     `json:"mac_address" gorm:"size:17"`
	Name             string     `json:"device_name" gorm:"size:64"`
	OwnerUserID      uuid.UUID  `json:"owner_user_id" gorm:"type:uuid;index"`
	CredentialRef    string     `json:"-" gorm:"size:128"`
	CreatedAt        time.Time  `json:"registered_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	LastResetAt      *time.Time `json:"last_reset_at,omitempty"`
}
