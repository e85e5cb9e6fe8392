package credentials

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a credential, identity object or attachment does not exist,
// including when it was already detached or deleted.
var ErrNotFound = errors.New("not found")

// Credential is a freshly issued device credential. PrivateKeyPem is never stored.
type Credential struct {
	Ref              string
	CertificatePem   string
	PrivateKeyPem    string
	CaCertificatePem string
	NotAfter         time.Time
}

// CredentialState is the lifecycle state of an issued credential.
type CredentialState string

const (
	CredentialActive   CredentialState = "ACTIVE"
	CredentialInactive CredentialState = "INACTIVE"
)

// Authority issues, binds, authorizes and revokes device credentials and identity objects.
// Every method is safe to call again for the same logical step.
type Authority interface {
	IssueCredential(ctx context.Context) (Credential, error)
	// EnsureIdentityObject creates the identity object of the device with the attributes.
	// An existing object is left untouched; created reports whether this call made it.
	EnsureIdentityObject(ctx context.Context, deviceID string, attributes map[string]string) (created bool, err error)
	// UpdateIdentityObject replaces the attributes of an existing identity object.
	UpdateIdentityObject(ctx context.Context, deviceID string, attributes map[string]string) error
	// Authorize attaches the fleet policy to the credential.
	Authorize(ctx context.Context, ref string) error
	BindCredentialToIdentity(ctx context.Context, deviceID string, ref string) error
	// Endpoint returns the address devices connect to.
	Endpoint(ctx context.Context) (string, error)
	// Revoke detaches, unbinds, deactivates and deletes the credential. Steps that find
	// nothing to do are skipped; the error is non nil only when a step really failed.
	Revoke(ctx context.Context, ref string, deviceID string) (RevokeResult, error)
	DeleteIdentityObject(ctx context.Context, deviceID string) error
}

// RevokeStep is the outcome of one step of a revoke.
type RevokeStep struct {
	Name    string
	Skipped bool
	Err     error
}

// RevokeResult reports what a revoke did, step by step.
type RevokeResult struct {
	Ref   string
	Steps []RevokeStep
}

// Complete reports whether every step either succeeded or had nothing to do.
func (r RevokeResult) Complete() bool {
	return r.Err() == nil
}

// Err joins the errors of the failed steps.
func (r RevokeResult) Err() error {
	var errs []error
	for _, step := range r.Steps {
		if step.Err != nil {
			errs = append(errs, step.Err)
		}
	}
	return errors.Join(errs...)
}

// record adds the outcome of a step; ErrNotFound marks the step as skipped.
func (r *RevokeResult) record(name string, err error) {
	step := RevokeStep{Name: name}
	switch {
	case err == nil:
	case errors.Is(err, ErrNotFound):
		step.Skipped = true
	default:
		step.Err = err
	}
	r.Steps = append(r.Steps, step)
}

const (
	StepDetachPolicy   = "detach_policy"
	StepUnbindIdentity = "unbind_identity"
	StepDeactivate     = "deactivate"
	StepDelete         = "delete"
)
