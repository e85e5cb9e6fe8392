package registration

import (
	"github.com/receivr-io/receivr/internal/models"
)

// Outcome is the classification of a registration attempt.
type Outcome int

const (
	OutcomeNewRegistration Outcome = iota + 1
	OutcomeOwnershipTransfer
	OutcomeRejected
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNewRegistration:
		return "new_registration"
	case OutcomeOwnershipTransfer:
		return "ownership_transfer"
	case OutcomeRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

const (
	// ReasonNoResetProof rejects a request that presents the instance id already on record.
	ReasonNoResetProof = "no_reset_proof"
	// ReasonFactoryResetRequired rejects a new instance id that does not claim a factory reset.
	ReasonFactoryResetRequired = "factory_reset_required"
)

// Decision is the result of Classify. Reason is set when the attempt is rejected.
type Decision struct {
	Outcome Outcome
	Reason  string
}

func (d Decision) Rejected() bool {
	return d.Outcome == OutcomeRejected
}

// Classify decides what a registration attempt for the serial number of existing means.
// The device instance id is regenerated by the firmware on every physical factory reset,
// so a known instance id is never proof of a reset, whatever state the caller claims.
func Classify(existing *models.Device, claimedInstanceID string, claimedState models.DeviceState) Decision {
	switch {
	case existing == nil:
		return Decision{Outcome: OutcomeNewRegistration}
	case existing.DeviceInstanceID == claimedInstanceID:
		return Decision{Outcome: OutcomeRejected, Reason: ReasonNoResetProof}
	case claimedState == models.DeviceStateFactoryReset:
		return Decision{Outcome: OutcomeOwnershipTransfer}
	default:
		return Decision{Outcome: OutcomeRejected, Reason: ReasonFactoryResetRequired}
	}
}

var factoryResetSteps = []string{
	"Press and hold the reset button on the back of the receiver for 10 seconds, until the LED blinks red.",
	"Release the button and wait until the LED pulses blue, which means the receiver is in setup mode.",
	"Add the receiver again from the app while it is in setup mode.",
}

// RemediationFor tells the owner how to prove physical possession after a rejection.
func RemediationFor(reason string, supportURL string) models.Remediation {
	steps := make([]string, len(factoryResetSteps))
	copy(steps, factoryResetSteps)
	return models.Remediation{
		Steps:            steps,
		SupportReference: supportURL + "#" + reason,
	}
}
