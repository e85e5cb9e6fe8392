package registration

import (
	"context"
	"sync"

	"github.com/receivr-io/receivr/internal/alerts"
	"github.com/receivr-io/receivr/internal/credentials"
	"github.com/receivr-io/receivr/internal/registry"
)

type recordingSink struct {
	mu     sync.Mutex
	alerts []alerts.Alert
	err    error
}

func (s *recordingSink) Raise(_ context.Context, alert alerts.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = append(s.alerts, alert)
	return s.err
}

func (s *recordingSink) raised() []alerts.Alert {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]alerts.Alert(nil), s.alerts...)
}

// faultyAuthority injects failures into a MemoryAuthority.
type faultyAuthority struct {
	*credentials.MemoryAuthority
	issueErr     error
	bindErr      error
	revokeErr    map[string]error
	revokePanics bool
	issued       []string
	revoked      []string
}

func (a *faultyAuthority) IssueCredential(ctx context.Context) (credentials.Credential, error) {
	if a.issueErr != nil {
		return credentials.Credential{}, a.issueErr
	}
	cred, err := a.MemoryAuthority.IssueCredential(ctx)
	if err == nil {
		a.issued = append(a.issued, cred.Ref)
	}
	return cred, err
}

func (a *faultyAuthority) BindCredentialToIdentity(ctx context.Context, deviceID string, ref string) error {
	if a.bindErr != nil {
		return a.bindErr
	}
	return a.MemoryAuthority.BindCredentialToIdentity(ctx, deviceID, ref)
}

func (a *faultyAuthority) Revoke(ctx context.Context, ref string, deviceID string) (credentials.RevokeResult, error) {
	a.revoked = append(a.revoked, ref)
	if a.revokePanics {
		panic("authority client is nil")
	}
	if err := a.revokeErr[ref]; err != nil {
		return credentials.RevokeResult{Ref: ref, Steps: []credentials.RevokeStep{{Name: credentials.StepDetachPolicy, Err: err}}}, err
	}
	return a.MemoryAuthority.Revoke(ctx, ref, deviceID)
}

// hookedRegistry records committed transactions and can run a hook or fail before a commit.
type hookedRegistry struct {
	registry.Registry
	beforeCommit func(tx *registry.Transaction) error
	committed    []*registry.Transaction
}

func (r *hookedRegistry) Commit(ctx context.Context, tx *registry.Transaction) error {
	if r.beforeCommit != nil {
		if err := r.beforeCommit(tx); err != nil {
			return err
		}
	}
	if err := r.Registry.Commit(ctx, tx); err != nil {
		return err
	}
	r.committed = append(r.committed, tx)
	return nil
}
