package registration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/receivr-io/receivr/internal/credentials"
	"github.com/receivr-io/receivr/internal/models"
	"github.com/receivr-io/receivr/internal/registry"
	"github.com/receivr-io/receivr/internal/users"
	"github.com/receivr-io/receivr/internal/util"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var tracer = otel.Tracer("github.com/receivr-io/receivr/internal/registration")

const (
	// ReasonConcurrentRegistration rejects a registration that lost a race against another
	// registration of the same device.
	ReasonConcurrentRegistration = "concurrent_registration"
	// ReasonDeviceIDInUse rejects a new serial number that presents the device_id of another device.
	ReasonDeviceIDInUse = "device_id_in_use"
)

// State is a step of the registration protocol.
type State int

const (
	StateValidating State = iota + 1
	StateClassifying
	StateIssuingCredential
	StateBuildingTransaction
	StateCommitting
	StatePostCommitCleanup
	StateDone
	StateAborted
	StateCommittedWithCleanupWarning
)

func (s State) String() string {
	switch s {
	case StateValidating:
		return "validating"
	case StateClassifying:
		return "classifying"
	case StateIssuingCredential:
		return "issuing_credential"
	case StateBuildingTransaction:
		return "building_transaction"
	case StateCommitting:
		return "committing"
	case StatePostCommitCleanup:
		return "post_commit_cleanup"
	case StateDone:
		return "done"
	case StateAborted:
		return "aborted"
	case StateCommittedWithCleanupWarning:
		return "committed_with_cleanup_warning"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// CallerResolver maps the upstream verified subject of a request to a user id.
// It returns users.ErrNoSubject when there is no subject to resolve.
type CallerResolver interface {
	ResolveCaller(ctx context.Context, subject string) (uuid.UUID, error)
}

// Result is a committed registration.
type Result struct {
	Device               models.Device
	Credentials          models.DeviceCredentials
	OwnershipTransferred bool
	State                State
	// CleanupWarning is set when the previous owner's credential could not be revoked.
	CleanupWarning *CleanupResult
}

type Dependencies struct {
	Registry    registry.Registry
	Authority   credentials.Authority
	Callers     CallerResolver
	Compensator *Compensator
	Logger      *zap.SugaredLogger
	Metrics     *Metrics
	SupportURL  string
}

// Coordinator runs the device registration protocol: validation, classification,
// credential issuance, transactional persistence and post commit cleanup.
type Coordinator struct {
	registry    registry.Registry
	authority   credentials.Authority
	callers     CallerResolver
	compensator *Compensator
	validator   *Validator
	logger      *zap.SugaredLogger
	metrics     *Metrics
	supportURL  string
	now         func() time.Time
}

func NewCoordinator(deps Dependencies) *Coordinator {
	c := &Coordinator{
		registry:    deps.Registry,
		authority:   deps.Authority,
		callers:     deps.Callers,
		compensator: deps.Compensator,
		logger:      deps.Logger,
		metrics:     deps.Metrics,
		supportURL:  deps.SupportURL,
		now:         time.Now,
	}
	c.validator = NewValidator(func() time.Time { return c.now() })
	return c
}

// attempt tracks the protocol state of one registration.
type attempt struct {
	state    State
	logger   *zap.SugaredLogger
	subject  string
	request  models.RegisterDevice
	ownerID  uuid.UUID
	existing *models.Device
	decision Decision
	cred     credentials.Credential
	endpoint string
	device   models.Device
	// identityCreated is set when this attempt created the identity object.
	identityCreated bool
}

func (a *attempt) enter(state State) {
	a.logger.Debugw("registration state", "from", a.state, "to", state)
	a.state = state
}

// Register registers the device for the caller identified by subject. Every failure is an *Error.
func (c *Coordinator) Register(ctx context.Context, subject string, request models.RegisterDevice) (*Result, error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "Register")
	defer span.End()
	span.SetAttributes(
		attribute.String("device_id", request.DeviceID),
		attribute.String("serial_number", request.SerialNumber),
	)

	run := &attempt{
		state:   StateValidating,
		logger:  util.WithTrace(ctx, c.logger).With("device_id", request.DeviceID, "serial_number", request.SerialNumber),
		subject: subject,
		request: request,
	}
	result, err := c.register(ctx, run)
	if err != nil {
		var regErr *Error
		kind := "unknown"
		if errors.As(err, &regErr) {
			kind = regErr.Kind.String()
		}
		run.logger.Infow("registration aborted", "step", run.state, "kind", kind, "error", err)
		span.SetStatus(codes.Error, err.Error())
		c.metrics.observeRegistration(StateAborted, kind, start)
		return nil, err
	}
	run.logger.Infow("registration committed",
		"state", result.State,
		"outcome", run.decision.Outcome,
		"owner_user_id", result.Device.OwnerUserID,
		"credential_ref", result.Device.CredentialRef,
	)
	c.metrics.observeRegistration(result.State, run.decision.Outcome.String(), start)
	return result, nil
}

func (c *Coordinator) register(ctx context.Context, run *attempt) (*Result, error) {
	if fields := c.validator.Validate(run.request); len(fields) > 0 {
		return nil, validationError(fields)
	}

	run.enter(StateClassifying)
	ownerID, err := c.callers.ResolveCaller(ctx, run.subject)
	switch {
	case errors.Is(err, users.ErrNoSubject):
		return nil, authError(err)
	case err != nil:
		return nil, persistenceError(fmt.Errorf("resolving caller: %w", err))
	}
	run.ownerID = ownerID

	existing, err := c.registry.FindDeviceBySerial(ctx, run.request.SerialNumber)
	switch {
	case errors.Is(err, registry.ErrNotFound):
	case err != nil:
		return nil, persistenceError(fmt.Errorf("looking up serial number: %w", err))
	default:
		run.existing = existing
	}
	run.decision = Classify(run.existing, run.request.DeviceInstanceID, run.request.DeviceState)
	if run.decision.Rejected() {
		return nil, c.conflict(run.decision.Reason, nil)
	}
	if run.existing == nil {
		_, err := c.registry.FindDevice(ctx, run.request.DeviceID)
		switch {
		case errors.Is(err, registry.ErrNotFound):
		case err != nil:
			return nil, persistenceError(fmt.Errorf("looking up device id: %w", err))
		default:
			return nil, c.conflict(ReasonDeviceIDInUse, nil)
		}
	}

	// from here on every path ends in a commit or a compensation, even if the caller goes away
	ctx = context.WithoutCancel(ctx)

	run.enter(StateIssuingCredential)
	if err := c.issue(ctx, run); err != nil {
		return nil, err
	}

	run.enter(StateBuildingTransaction)
	tx, err := c.buildTransaction(ctx, run)
	if err != nil {
		c.compensator.RevokeBestEffort(ctx, run.cred.Ref, run.deviceID(), CleanupCommitFailed)
		return nil, persistenceError(err)
	}

	run.enter(StateCommitting)
	if err := c.registry.Commit(ctx, tx); err != nil {
		c.compensator.RevokeBestEffort(ctx, run.cred.Ref, run.deviceID(), CleanupCommitFailed)
		if errors.Is(err, registry.ErrConditionFailed) {
			return nil, c.conflict(ReasonConcurrentRegistration, err)
		}
		return nil, persistenceError(fmt.Errorf("committing registration: %w", err))
	}

	result := &Result{
		Device: run.device,
		Credentials: models.DeviceCredentials{
			CertificatePem:   run.cred.CertificatePem,
			PrivateKeyPem:    run.cred.PrivateKeyPem,
			CaCertificatePem: run.cred.CaCertificatePem,
			Endpoint:         run.endpoint,
		},
		OwnershipTransferred: run.decision.Outcome == OutcomeOwnershipTransfer,
		State:                StateDone,
	}

	if !run.identityCreated {
		// the identity object predates this attempt, it only takes the new attributes once committed
		if err := c.authority.UpdateIdentityObject(ctx, run.deviceID(), identityAttributes(run)); err != nil {
			run.logger.Errorw("failed to update identity object attributes", "error", err)
		}
	}

	if result.OwnershipTransferred && run.existing.CredentialRef != "" {
		run.enter(StatePostCommitCleanup)
		cleanup := c.compensator.RevokeBestEffort(ctx, run.existing.CredentialRef, run.deviceID(), CleanupPreviousOwnership)
		if !cleanup.Success {
			result.CleanupWarning = &cleanup
			result.State = StateCommittedWithCleanupWarning
		}
	}
	run.enter(result.State)
	return result, nil
}

func (c *Coordinator) conflict(reason string, err error) *Error {
	if reason == ReasonDeviceIDInUse {
		return conflictError(reason, nil, err)
	}
	remediation := RemediationFor(reason, c.supportURL)
	return conflictError(reason, &remediation, err)
}

// deviceID is the stable id of the device: the stored one on transfer, the requested one otherwise.
func (a *attempt) deviceID() string {
	if a.existing != nil {
		return a.existing.DeviceID
	}
	return a.request.DeviceID
}

// issue mints and binds a credential for the device. On failure the partially created
// authority objects are cleaned up before the error is returned.
func (c *Coordinator) issue(ctx context.Context, run *attempt) error {
	ctx, span := tracer.Start(ctx, "IssueCredential")
	defer span.End()

	cred, err := c.authority.IssueCredential(ctx)
	if err != nil {
		return issuanceError(fmt.Errorf("issuing credential: %w", err))
	}
	run.cred = cred
	deviceID := run.deviceID()

	err = c.bind(ctx, run, deviceID)
	if err != nil {
		c.compensator.RevokeBestEffort(ctx, cred.Ref, deviceID, CleanupIssuanceFailed)
		if run.identityCreated {
			c.compensator.DeleteIdentityBestEffort(ctx, deviceID)
		}
		return issuanceError(err)
	}
	return nil
}

func identityAttributes(run *attempt) map[string]string {
	return map[string]string{
		"serial_number":      run.request.SerialNumber,
		"mac_address":        run.request.MacAddress,
		"device_instance_id": run.request.DeviceInstanceID,
		"owner_user_id":      run.ownerID.String(),
	}
}

// bind leaves an existing identity object untouched: until the commit the device still
// belongs to whoever the registry says.
func (c *Coordinator) bind(ctx context.Context, run *attempt, deviceID string) error {
	created, err := c.authority.EnsureIdentityObject(ctx, deviceID, identityAttributes(run))
	if err != nil {
		return fmt.Errorf("creating identity object: %w", err)
	}
	run.identityCreated = created
	if err := c.authority.Authorize(ctx, run.cred.Ref); err != nil {
		return fmt.Errorf("authorizing credential: %w", err)
	}
	if err := c.authority.BindCredentialToIdentity(ctx, deviceID, run.cred.Ref); err != nil {
		return fmt.Errorf("binding credential to identity: %w", err)
	}
	endpoint, err := c.authority.Endpoint(ctx)
	if err != nil {
		return fmt.Errorf("fetching endpoint: %w", err)
	}
	run.endpoint = endpoint
	return nil
}

func (c *Coordinator) buildTransaction(ctx context.Context, run *attempt) (*registry.Transaction, error) {
	now := c.now().UTC()
	resetAt := resetTime(run.request)
	tx := registry.NewTransaction()

	if run.existing == nil {
		run.device = models.Device{
			DeviceID:         run.request.DeviceID,
			DeviceInstanceID: run.request.DeviceInstanceID,
			SerialNumber:     run.request.SerialNumber,
			MacAddress:       run.request.MacAddress,
			Name:             run.request.DeviceName,
			OwnerUserID:      run.ownerID,
			CredentialRef:    run.cred.Ref,
			CreatedAt:        now,
			UpdatedAt:        now,
			LastResetAt:      resetAt,
		}
		settings := models.NewDefaultDeviceSettings(run.device.DeviceID, now)
		grant := models.NewOwnerGrant(run.device.DeviceID, run.ownerID, now)
		device := run.device
		tx.PutIf(&device, registry.Condition{NotExists: true}).
			Put(&settings).
			Put(&grant)
		return tx, nil
	}

	old := run.existing
	if run.request.DeviceID != old.DeviceID {
		run.logger.Warnw("ignoring device_id of ownership transfer, keeping the stored one", "requested_device_id", run.request.DeviceID)
	}
	run.device = *old
	run.device.DeviceInstanceID = run.request.DeviceInstanceID
	run.device.OwnerUserID = run.ownerID
	run.device.CredentialRef = run.cred.Ref
	run.device.Name = run.request.DeviceName
	run.device.MacAddress = run.request.MacAddress
	run.device.LastResetAt = resetAt
	run.device.UpdatedAt = now

	tenancy, err := c.previousTenancy(ctx, old.DeviceID)
	if err != nil {
		return nil, err
	}

	device := run.device
	tx.PutIf(&device, registry.Condition{Equals: map[string]any{
		"device_instance_id": old.DeviceInstanceID,
		"credential_ref":     old.CredentialRef,
	}})
	for i := range tenancy.grants {
		tx.Delete(&tenancy.grants[i])
	}
	for i := range tenancy.invitations {
		tx.Delete(&tenancy.invitations[i])
	}
	for i := range tenancy.statuses {
		tx.Delete(&tenancy.statuses[i])
	}
	settings := models.NewDefaultDeviceSettings(old.DeviceID, now)
	grant := models.NewOwnerGrant(old.DeviceID, run.ownerID, now)
	tx.Delete(&models.DeviceSettings{DeviceID: old.DeviceID}).
		Put(&settings).
		Put(&grant)

	run.logger.Infow("transferring ownership",
		"previous_owner_user_id", old.OwnerUserID,
		"grants", len(tenancy.grants),
		"invitations", len(tenancy.invitations),
		"statuses", len(tenancy.statuses),
	)
	return tx, nil
}

type tenancy struct {
	grants      []models.OwnershipGrant
	invitations []models.Invitation
	statuses    []models.DeviceStatus
}

// previousTenancy loads every record the previous owner's tenancy left behind.
func (c *Coordinator) previousTenancy(ctx context.Context, deviceID string) (*tenancy, error) {
	ctx, span := tracer.Start(ctx, "PreviousTenancy")
	defer span.End()

	g, ctx := errgroup.WithContext(ctx)
	result := &tenancy{}
	g.Go(func() error {
		grants, err := c.registry.ListGrants(ctx, deviceID)
		if err != nil {
			return fmt.Errorf("listing grants: %w", err)
		}
		result.grants = grants
		return nil
	})
	g.Go(func() error {
		invitations, err := c.registry.ListInvitations(ctx, deviceID)
		if err != nil {
			return fmt.Errorf("listing invitations: %w", err)
		}
		result.invitations = invitations
		return nil
	})
	g.Go(func() error {
		statuses, err := c.registry.ListStatuses(ctx, deviceID)
		if err != nil {
			return fmt.Errorf("listing statuses: %w", err)
		}
		result.statuses = statuses
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return result, nil
}

func resetTime(request models.RegisterDevice) *time.Time {
	if request.DeviceState != models.DeviceStateFactoryReset {
		return nil
	}
	resetAt, err := time.Parse(time.RFC3339, request.ResetTimestamp)
	if err != nil {
		return nil
	}
	resetAt = resetAt.UTC()
	return &resetAt
}
