package models

import (
	"time"

	"github.com/google/uuid"
)

// User is a person that owns or has been granted access to devices.
// IdpID is the subject the upstream identity provider verified.
type User struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	IdpID     string    `json:"-" gorm:"uniqueIndex"`
	UserName  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}
