package models

import "time"

// DeviceState is the state the firmware declares when it registers.
type DeviceState string

const (
	DeviceStateNormal       DeviceState = "normal"
	DeviceStateFactoryReset DeviceState = "factory_reset"
)

// RegisterDevice is the information a receiver sends to (re-)register itself.
type RegisterDevice struct {
	DeviceID         string      `json:"device_id" validate:"required,min=3,max=64,device_id" example:"rcv-4f2a9c"`
	DeviceInstanceID string      `json:"device_instance_id" validate:"required,uuid" example:"6f1d2b5e-8c0a-4d0e-9d7c-2f0b8a8f4c11"`
	DeviceName       string      `json:"device_name" validate:"required,max=64,no_control" example:"Front door"`
	SerialNumber     string      `json:"serial_number" validate:"required,min=3,max=32,serial_number" example:"SN-1"`
	MacAddress       string      `json:"mac_address" validate:"required,mac_address" example:"a4:cf:12:9b:00:7e"`
	DeviceState      DeviceState `json:"device_state" validate:"required,oneof=normal factory_reset" example:"normal"`
	// ResetTimestamp is required when DeviceState is factory_reset and must be empty otherwise.
	ResetTimestamp string `json:"reset_timestamp,omitempty" example:"2026-10-18T09:30:00Z"`
}

// DeviceCredentials are the credential materials issued to a device.
// PrivateKeyPem is returned exactly once and is never stored by the service.
type DeviceCredentials struct {
	CertificatePem   string `json:"certificate_pem"`
	PrivateKeyPem    string `json:"private_key_pem"`
	CaCertificatePem string `json:"ca_certificate_pem,omitempty"`
	Endpoint         string `json:"endpoint" example:"mqtts://iot.example.com:8883"`
}

// RegisterDeviceResponse is returned with an HTTP 201
type RegisterDeviceResponse struct {
	DeviceID             string            `json:"device_id"`
	DeviceInstanceID     string            `json:"device_instance_id"`
	DeviceName           string            `json:"device_name"`
	SerialNumber         string            `json:"serial_number"`
	MacAddress           string            `json:"mac_address"`
	OwnerUserID          string            `json:"owner_user_id"`
	RegisteredAt         time.Time         `json:"registered_at"`
	LastResetAt          *time.Time        `json:"last_reset_at,omitempty"`
	OwnershipTransferred bool              `json:"ownership_transferred"`
	Credentials          DeviceCredentials `json:"credentials"`
}
