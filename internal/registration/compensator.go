package registration

import (
	"context"
	"fmt"
	"time"

	"github.com/receivr-io/receivr/internal/alerts"
	"github.com/receivr-io/receivr/internal/credentials"
	"github.com/receivr-io/receivr/internal/util"
	"go.uber.org/zap"
)

// Reasons passed to the compensator; they end up in operator alerts.
const (
	CleanupCommitFailed      = "commit_failed"
	CleanupIssuanceFailed    = "issuance_failed"
	CleanupPreviousOwnership = "previous_owner_credential"
)

// CleanupResult is the outcome of a best effort revoke.
type CleanupResult struct {
	Ref     string
	Success bool
	Revoke  credentials.RevokeResult
	Err     error
}

// Compensator revokes credentials that must not outlive a failed or superseded registration.
type Compensator struct {
	authority   credentials.Authority
	sink        alerts.Sink
	logger      *zap.SugaredLogger
	environment string
	metrics     *Metrics
	now         func() time.Time
}

func NewCompensator(authority credentials.Authority, sink alerts.Sink, logger *zap.SugaredLogger, environment string, metrics *Metrics) *Compensator {
	return &Compensator{
		authority:   authority,
		sink:        sink,
		logger:      logger,
		environment: environment,
		metrics:     metrics,
		now:         time.Now,
	}
}

// RevokeBestEffort revokes the credential and raises an operator alert when it cannot.
// It never returns an error and never panics.
func (c *Compensator) RevokeBestEffort(ctx context.Context, ref string, deviceID string, reason string) (result CleanupResult) {
	ctx, span := tracer.Start(ctx, "RevokeBestEffort")
	defer span.End()
	logger := util.WithTrace(ctx, c.logger).With("credential_ref", ref, "device_id", deviceID, "reason", reason)

	result.Ref = ref
	defer func() {
		if r := recover(); r != nil {
			result.Success = false
			result.Err = fmt.Errorf("revoke panicked: %v", r)
			c.alert(ctx, logger, result, deviceID, reason)
		}
	}()

	revoke, err := c.authority.Revoke(ctx, ref, deviceID)
	result.Revoke = revoke
	if err == nil {
		result.Success = true
		logger.Infow("credential revoked")
		return result
	}
	result.Err = err
	c.alert(ctx, logger, result, deviceID, reason)
	return result
}

func (c *Compensator) alert(ctx context.Context, logger *zap.SugaredLogger, result CleanupResult, deviceID string, reason string) {
	c.metrics.incrementCleanupFailure(reason)
	logger.Errorw("credential cleanup failed", "error", result.Err)
	defer func() {
		if r := recover(); r != nil {
			logger.Errorw("raising operator alert panicked", "panic", r)
		}
	}()
	err := c.sink.Raise(ctx, alerts.Alert{
		Kind:          alerts.KindCredentialCleanupFailed,
		CredentialRef: result.Ref,
		DeviceID:      deviceID,
		Environment:   c.environment,
		Reason:        reason,
		Error:         result.Err.Error(),
		RaisedAt:      c.now(),
	})
	if err != nil {
		logger.Errorw("failed to raise operator alert", "error", err)
	}
}

// DeleteIdentityBestEffort removes the identity object created for a first time registration
// whose issuance failed. Failures are only logged.
func (c *Compensator) DeleteIdentityBestEffort(ctx context.Context, deviceID string) {
	if err := c.authority.DeleteIdentityObject(ctx, deviceID); err != nil {
		util.WithTrace(ctx, c.logger).Warnw("failed to delete identity object", "device_id", deviceID, "error", err)
	}
}
