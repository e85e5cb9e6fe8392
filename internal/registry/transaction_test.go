package registry

import (
	"testing"

	"github.com/receivr-io/receivr/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestTransactionBuilder(t *testing.T) {
	tx := NewTransaction().
		PutIf(&models.Device{DeviceID: "rcv-1"}, Condition{NotExists: true}).
		Put(&models.DeviceSettings{DeviceID: "rcv-1"}).
		Delete(&models.OwnershipGrant{DeviceID: "rcv-1"}).
		Delete(&models.OwnershipGrant{DeviceID: "rcv-1"})

	assert.Equal(t, 4, tx.Len())
	assert.Equal(t, 2, tx.Count(OpDelete, &models.OwnershipGrant{}))
	assert.Equal(t, 1, tx.Count(OpPut, &models.Device{}))
	assert.Equal(t, 0, tx.Count(OpDelete, &models.Device{}))

	ops := tx.Operations()
	assert.Equal(t, "put *models.Device if not exists", ops[0].String())
	assert.Equal(t, "delete *models.OwnershipGrant", ops[2].String())

	// Operations returns a copy
	ops[0].Kind = OpDelete
	assert.Equal(t, OpPut, tx.Operations()[0].Kind)
}
