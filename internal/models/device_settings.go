package models

import "time"

const (
	DefaultVolume          = 50
	DefaultLedBrightness   = 80
	DefaultQuietHoursStart = "22:00"
	DefaultQuietHoursEnd   = "07:00"
	DefaultTimeZone        = "UTC"
)

// DeviceSettings are the user configurable operating parameters of a device.
type DeviceSettings struct {
	DeviceID          string    `json:"device_id" gorm:"primaryKey;size:64"`
	Volume            int       `json:"volume"`
	LedBrightness     int       `json:"led_brightness"`
	QuietHoursEnabled bool      `json:"quiet_hours_enabled"`
	QuietHoursStart   string    `json:"quiet_hours_start" gorm:"size:5"`
	QuietHoursEnd     string    `json:"quiet_hours_end" gorm:"size:5"`
	TimeZone          string    `json:"time_zone" gorm:"size:64"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// NewDefaultDeviceSettings returns the settings a device gets on registration and on ownership transfer.
func NewDefaultDeviceSettings(deviceID string, now time.Time) DeviceSettings {
	return DeviceSettings{
		DeviceID:        deviceID,
		Volume:          DefaultVolume,
		LedBrightness:   DefaultLedBrightness,
		QuietHoursStart: DefaultQuietHoursStart,
		QuietHoursEnd:   DefaultQuietHoursEnd,
		TimeZone:        DefaultTimeZone,
		UpdatedAt:       now,
	}
}
