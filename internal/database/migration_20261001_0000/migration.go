package migration_20261001_0000

import (
	"encoding/json"
	"time"

	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/google/uuid"
	. "github.com/receivr-io/receivr/internal/database/migrations"
)

// The schema is frozen here so later model changes need their own migration.

type User struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	IdpID     string    `gorm:"uniqueIndex"`
	UserName  string
	CreatedAt time.Time
}

type Device struct {
	DeviceID         string    `gorm:"primaryKey;size:64"`
	DeviceInstanceID string    `gorm:"size:64"`
	SerialNumber     string    `gorm:"size:32;uniqueIndex"`
	MacAddress       string    `gorm:"size:17"`
	Name             string    `gorm:"size:64"`
	OwnerUserID      uuid.UUID `gorm:"type:uuid;index"`
	CredentialRef    string    `gorm:"size:128"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
	LastResetAt      *time.Time
}

type DeviceSettings struct {
	DeviceID          string `gorm:"primaryKey;size:64"`
	Volume            int
	LedBrightness     int
	QuietHoursEnabled bool
	QuietHoursStart   string `gorm:"size:5"`
	QuietHoursEnd     string `gorm:"size:5"`
	TimeZone          string `gorm:"size:64"`
	UpdatedAt         time.Time
}

type OwnershipGrant struct {
	DeviceID      string    `gorm:"primaryKey;size:64"`
	UserID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	IsOwner       bool
	Notifications bool
	Settings      bool
	InvitedBy     uuid.UUID `gorm:"type:uuid"`
	InvitedAt     time.Time
	AcceptedAt    *time.Time
}

type Invitation struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey"`
	DeviceID      string    `gorm:"size:64;index"`
	InvitedEmail  string
	InvitedBy     uuid.UUID `gorm:"type:uuid"`
	Notifications bool
	Settings      bool
	ExpiresAt     time.Time
	CreatedAt     time.Time
}

type DeviceStatus struct {
	DeviceID   string          `gorm:"primaryKey;size:64"`
	Category   string          `gorm:"primaryKey;size:32"`
	Payload    json.RawMessage `gorm:"type:JSONB;serializer:json"`
	ReportedAt time.Time
}

func Migrate() *gormigrate.Migration {
	migrationId := "20261001-0000"
	return CreateMigrationFromActions(migrationId,
		CreateTableAction(&User{}),
		CreateTableAction(&Device{}),
		CreateTableAction(&DeviceSettings{}),
		CreateTableAction(&OwnershipGrant{}),
		CreateTableAction(&Invitation{}),
		CreateTableAction(&DeviceStatus{}),
		ExecAction(
			`CREATE INDEX IF NOT EXISTS "idx_ownership_grants_user_id" ON "ownership_grants" ("user_id")`,
			`DROP INDEX IF EXISTS idx_ownership_grants_user_id`,
		),
	)
}
