package registry

import (
	"context"
	"errors"

	"github.com/receivr-io/receivr/internal/models"
)

var (
	// ErrNotFound is returned by point reads when the record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConditionFailed is returned by Commit when an operation's precondition did not hold.
	ErrConditionFailed = errors.New("condition failed")
)

// Registry is the ownership record store.
type Registry interface {
	FindDevice(ctx context.Context, deviceID string) (*models.Device, error)
	FindDeviceBySerial(ctx context.Context, serialNumber string) (*models.Device, error)
	ListGrants(ctx context.Context, deviceID string) ([]models.OwnershipGrant, error)
	ListInvitations(ctx context.Context, deviceID string) ([]models.Invitation, error)
	ListStatuses(ctx context.Context, deviceID string) ([]models.DeviceStatus, error)
	FindSettings(ctx context.Context, deviceID string) (*models.DeviceSettings, error)
	// Commit applies every operation of tx atomically, or none of them.
	Commit(ctx context.Context, tx *Transaction) error
}
