package models

import (
	"time"

	"github.com/google/uuid"
)

// Invitation is a pending offer for a user to be granted access to a device
type Invitation struct {
	ID            uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	DeviceID      string    `json:"device_id" gorm:"size:64;index"`
	InvitedEmail  string    `json:"invited_email"`
	InvitedBy     uuid.UUID `json:"invited_by" gorm:"type:uuid"`
	Notifications bool      `json:"notifications"`
	Settings      bool      `json:"settings"`
	ExpiresAt     time.Time `json:"expires_at"`
	CreatedAt     time.Time `json:"created_at"`
}

// NewInvitation creates an invitation that expires after a week
func NewInvitation(deviceID string, email string, invitedBy uuid.UUID, now time.Time) Invitation {
	return Invitation{
		ID:            uuid.New(),
		DeviceID:      deviceID,
		InvitedEmail:  email,
		InvitedBy:     invitedBy,
		Notifications: true,
		ExpiresAt:     now.Add(7 * 24 * time.Hour),
		CreatedAt:     now,
	}
}
