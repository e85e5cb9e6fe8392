package registration

import (
	"strings"
	"testing"
	"time"

	"github.com/receivr-io/receivr/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)

func validRequest() models.RegisterDevice {
	return models.RegisterDevice{
		DeviceID:         "rcv-001",
		DeviceInstanceID: "6f1d2b5e-8c0a-4d0e-9d7c-2f0b8a8f4c11",
		DeviceName:       "Front door",
		SerialNumber:     "SN-1",
		MacAddress:       "a4:cf:12:9b:00:7e",
		DeviceState:      models.DeviceStateNormal,
	}
}

func fieldNames(fields []models.FieldError) []string {
	var names []string
	for _, f := range fields {
		names = append(names, f.Field)
	}
	return names
}

func TestValidate(t *testing.T) {
	validator := NewValidator(func() time.Time { return testNow })

	tests := []struct {
		name   string
		mutate func(r *models.RegisterDevice)
		fields []string
		reason string
	}{
		{name: "valid", mutate: func(r *models.RegisterDevice) {}},
		{name: "hyphenated mac", mutate: func(r *models.RegisterDevice) { r.MacAddress = "A4-CF-12-9B-00-7E" }},
		{name: "factory reset", mutate: func(r *models.RegisterDevice) {
			r.DeviceState = models.DeviceStateFactoryReset
			r.ResetTimestamp = "2026-10-18T08:55:00Z"
		}},
		{name: "reset timestamp within clock skew", mutate: func(r *models.RegisterDevice) {
			r.DeviceState = models.DeviceStateFactoryReset
			r.ResetTimestamp = "2026-10-18T09:04:00Z"
		}},
		{name: "reset timestamp in normal state", mutate: func(r *models.RegisterDevice) {
			r.ResetTimestamp = "2026-10-18T09:04:00Z"
		}, fields: []string{"reset_timestamp"}, reason: "must be empty unless device_state is factory_reset"},
		{name: "missing device id", mutate: func(r *models.RegisterDevice) { r.DeviceID = "" }, fields: []string{"device_id"}, reason: "is required"},
		{name: "short device id", mutate: func(r *models.RegisterDevice) { r.DeviceID = "ab" }, fields: []string{"device_id"}, reason: "must be at least 3 characters"},
		{name: "device id charset", mutate: func(r *models.RegisterDevice) { r.DeviceID = "rcv 001" }, fields: []string{"device_id"}},
		{name: "instance id not a uuid", mutate: func(r *models.RegisterDevice) { r.DeviceInstanceID = "abc" }, fields: []string{"device_instance_id"}, reason: "must be a UUID"},
		{name: "long name", mutate: func(r *models.RegisterDevice) { r.DeviceName = strings.Repeat("x", 65) }, fields: []string{"device_name"}, reason: "must be at most 64 characters"},
		{name: "control character in name", mutate: func(r *models.RegisterDevice) { r.DeviceName = "front\ndoor" }, fields: []string{"device_name"}},
		{name: "lower case serial", mutate: func(r *models.RegisterDevice) { r.SerialNumber = "sn-1" }, fields: []string{"serial_number"}},
		{name: "mixed mac separators", mutate: func(r *models.RegisterDevice) { r.MacAddress = "a4:cf-12:9b:00:7e" }, fields: []string{"mac_address"}},
		{name: "unknown state", mutate: func(r *models.RegisterDevice) { r.DeviceState = "rebooted" }, fields: []string{"device_state"}, reason: "must be one of: normal, factory_reset"},
		{name: "factory reset without timestamp", mutate: func(r *models.RegisterDevice) {
			r.DeviceState = models.DeviceStateFactoryReset
		}, fields: []string{"reset_timestamp"}},
		{name: "factory reset with bad timestamp", mutate: func(r *models.RegisterDevice) {
			r.DeviceState = models.DeviceStateFactoryReset
			r.ResetTimestamp = "18/10/2026"
		}, fields: []string{"reset_timestamp"}, reason: "must be an RFC 3339 timestamp"},
		{name: "factory reset in the future", mutate: func(r *models.RegisterDevice) {
			r.DeviceState = models.DeviceStateFactoryReset
			r.ResetTimestamp = "2026-10-18T09:06:00Z"
		}, fields: []string{"reset_timestamp"}, reason: "must not be in the future"},
		{name: "every field reported", mutate: func(r *models.RegisterDevice) {
			*r = models.RegisterDevice{DeviceState: models.DeviceStateFactoryReset}
		}, fields: []string{"device_id", "device_instance_id", "device_name", "serial_number", "mac_address", "reset_timestamp"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			request := validRequest()
			tt.mutate(&request)
			fields := validator.Validate(request)
			require.Equal(t, tt.fields, fieldNames(fields))
			if tt.reason != "" {
				assert.Equal(t, tt.reason, fields[0].Reason)
			}
		})
	}
}
