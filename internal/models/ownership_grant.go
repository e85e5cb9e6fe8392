package models

import (
	"time"

	"github.com/google/uuid"
)

// OwnershipGrant record means the user may receive the device's notifications
// and/or change its settings.
type OwnershipGrant struct {
	DeviceID      string     `json:"device_id" gorm:"primaryKey;size:64"`
	UserID        uuid.UUID  `json:"user_id" gorm:"type:uuid;primaryKey"`
	IsOwner       bool       `json:"is_owner"`
	Notifications bool       `json:"notifications"`
	Settings      bool       `json:"settings"`
	InvitedBy     uuid.UUID  `json:"invited_by" gorm:"type:uuid"`
	InvitedAt     time.Time  `json:"invited_at"`
	AcceptedAt    *time.Time `json:"accepted_at,omitempty"`
}

// NewOwnerGrant is the implicit, self-invited grant of the registering user.
func NewOwnerGrant(deviceID string, userID uuid.UUID, now time.Time) OwnershipGrant {
	accepted := now
	return OwnershipGrant{
		DeviceID:      deviceID,
		UserID:        userID,
		IsOwner:       true,
		Notifications: true,
		Settings:      true,
		InvitedBy:     userID,
		InvitedAt:     now,
		AcceptedAt:    &accepted,
	}
}
