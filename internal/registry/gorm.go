package registry

import (
	"context"
	"errors"
	"fmt"

	"github.com/receivr-io/receivr/internal/database"
	"github.com/receivr-io/receivr/internal/models"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var tracer trace.Tracer

func init() {
	tracer = otel.Tracer("github.com/receivr-io/receivr/internal/registry")
}

// GormRegistry stores ownership records in a relational database.
type GormRegistry struct {
	db          *gorm.DB
	transaction database.TransactionFunc
}

func NewGormRegistry(db *gorm.DB) (*GormRegistry, error) {
	transactionFunc, _, err := database.GetTransactionFunc(db)
	if err != nil {
		return nil, err
	}
	return &GormRegistry{
		db:          db,
		transaction: transactionFunc,
	}, nil
}

func (r *GormRegistry) FindDevice(ctx context.Context, deviceID string) (*models.Device, error) {
	var device models.Device
	if err := r.db.WithContext(ctx).First(&device, "device_id = ?", deviceID).Error; err != nil {
		return nil, notFound(err)
	}
	return &device, nil
}

func (r *GormRegistry) FindDeviceBySerial(ctx context.Context, serialNumber string) (*models.Device, error) {
	var device models.Device
	if err := r.db.WithContext(ctx).First(&device, "serial_number = ?", serialNumber).Error; err != nil {
		return nil, notFound(err)
	}
	return &device, nil
}

func (r *GormRegistry) ListGrants(ctx context.Context, deviceID string) ([]models.OwnershipGrant, error) {
	grants := make([]models.OwnershipGrant, 0)
	if err := r.db.WithContext(ctx).Where("device_id = ?", deviceID).Find(&grants).Error; err != nil {
		return nil, err
	}
	return grants, nil
}

func (r *GormRegistry) ListInvitations(ctx context.Context, deviceID string) ([]models.Invitation, error) {
	invitations := make([]models.Invitation, 0)
	if err := r.db.WithContext(ctx).Where("device_id = ?", deviceID).Find(&invitations).Error; err != nil {
		return nil, err
	}
	return invitations, nil
}

func (r *GormRegistry) ListStatuses(ctx context.Context, deviceID string) ([]models.DeviceStatus, error) {
	statuses := make([]models.DeviceStatus, 0)
	if err := r.db.WithContext(ctx).Where("device_id = ?", deviceID).Find(&statuses).Error; err != nil {
		return nil, err
	}
	return statuses, nil
}

func (r *GormRegistry) FindSettings(ctx context.Context, deviceID string) (*models.DeviceSettings, error) {
	var settings models.DeviceSettings
	if err := r.db.WithContext(ctx).First(&settings, "device_id = ?", deviceID).Error; err != nil {
		return nil, notFound(err)
	}
	return &settings, nil
}

func (r *GormRegistry) Commit(ctx context.Context, t *Transaction) error {
	ctx, span := tracer.Start(ctx, "Commit", trace.WithAttributes(
		attribute.Int("operations", t.Len()),
	))
	defer span.End()

	if err := t.validate(); err != nil {
		return err
	}
	err := r.transaction(ctx, func(tx *gorm.DB) error {
		for i, op := range t.ops {
			if err := apply(tx, op); err != nil {
				if errors.Is(err, ErrConditionFailed) {
					return fmt.Errorf("operation %d (%s): %w", i, op, err)
				}
				return fmt.Errorf("operation %d (%s) failed: %w", i, op, err)
			}
		}
		return nil
	})
	// postgres aborts one side of a write race with a serialization failure
	if database.IsSerializationError(err) {
		return fmt.Errorf("%w: %w", ErrConditionFailed, err)
	}
	return err
}

func apply(tx *gorm.DB, op Operation) error {
	switch op.Kind {
	case OpPut:
		return applyPut(tx, op)
	case OpDelete:
		return applyDelete(tx, op)
	default:
		return fmt.Errorf("unsupported operation kind: %s", op.Kind)
	}
}

func applyPut(tx *gorm.DB, op Operation) error {
	switch {
	case op.Condition == nil:
		return tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(op.Item).Error
	case op.Condition.NotExists:
		if err := tx.Create(op.Item).Error; err != nil {
			if database.IsDuplicateError(err) {
				return ErrConditionFailed
			}
			return err
		}
		return nil
	default:
		res := tx.Model(op.Item).Where(op.Condition.Equals).Select("*").Updates(op.Item)
		if res.Error != nil {
			if database.IsDuplicateError(res.Error) {
				return ErrConditionFailed
			}
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrConditionFailed
		}
		return nil
	}
}

func applyDelete(tx *gorm.DB, op Operation) error {
	if op.Condition == nil {
		return tx.Delete(op.Item).Error
	}
	res := tx.Where(op.Condition.Equals).Delete(op.Item)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrConditionFailed
	}
	return nil
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
