package credentials

import (
	"context"
	"fmt"
	"maps"
	"sync"
)

type memoryCredential struct {
	state    CredentialState
	deviceID string
}

type memoryIdentity struct {
	attributes map[string]string
	principals map[string]struct{}
}

// MemoryAuthority keeps credential state in process memory.
type MemoryAuthority struct {
	signer   *Signer
	endpoint string

	mu          sync.Mutex
	credentials map[string]*memoryCredential
	identities  map[string]*memoryIdentity
	authorized  map[string]struct{}
}

var _ Authority = &MemoryAuthority{}

func NewMemoryAuthority(signer *Signer, endpoint string) *MemoryAuthority {
	return &MemoryAuthority{
		signer:      signer,
		endpoint:    endpoint,
		credentials: map[string]*memoryCredential{},
		identities:  map[string]*memoryIdentity{},
		authorized:  map[string]struct{}{},
	}
}

func (m *MemoryAuthority) IssueCredential(ctx context.Context) (Credential, error) {
	cred, err := m.signer.Issue()
	if err != nil {
		return Credential{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.credentials[cred.Ref] = &memoryCredential{state: CredentialActive}
	return cred, nil
}

func (m *MemoryAuthority) EnsureIdentityObject(ctx context.Context, deviceID string, attributes map[string]string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.identities[deviceID]; ok {
		return false, nil
	}
	m.identities[deviceID] = &memoryIdentity{attributes: maps.Clone(attributes), principals: map[string]struct{}{}}
	return true, nil
}

func (m *MemoryAuthority) UpdateIdentityObject(ctx context.Context, deviceID string, attributes map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	identity, ok := m.identities[deviceID]
	if !ok {
		return fmt.Errorf("identity object %s: %w", deviceID, ErrNotFound)
	}
	identity.attributes = maps.Clone(attributes)
	return nil
}

func (m *MemoryAuthority) Authorize(ctx context.Context, ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.credentials[ref]; !ok {
		return fmt.Errorf("credential %s: %w", ref, ErrNotFound)
	}
	m.authorized[ref] = struct{}{}
	return nil
}

func (m *MemoryAuthority) BindCredentialToIdentity(ctx context.Context, deviceID string, ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cred, ok := m.credentials[ref]
	if !ok {
		return fmt.Errorf("credential %s: %w", ref, ErrNotFound)
	}
	identity, ok := m.identities[deviceID]
	if !ok {
		return fmt.Errorf("identity object %s: %w", deviceID, ErrNotFound)
	}
	identity.principals[ref] = struct{}{}
	cred.deviceID = deviceID
	return nil
}

func (m *MemoryAuthority) Endpoint(ctx context.Context) (string, error) {
	return m.endpoint, nil
}

func (m *MemoryAuthority) Revoke(ctx context.Context, ref string, deviceID string) (RevokeResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := RevokeResult{Ref: ref}

	if _, ok := m.authorized[ref]; ok {
		delete(m.authorized, ref)
		result.record(StepDetachPolicy, nil)
	} else {
		result.record(StepDetachPolicy, ErrNotFound)
	}

	identity, ok := m.identities[deviceID]
	if _, bound := identity.principalsOrNil()[ref]; ok && bound {
		delete(identity.principals, ref)
		result.record(StepUnbindIdentity, nil)
	} else {
		result.record(StepUnbindIdentity, ErrNotFound)
	}

	cred, ok := m.credentials[ref]
	if ok {
		cred.state = CredentialInactive
		result.record(StepDeactivate, nil)
		delete(m.credentials, ref)
		result.record(StepDelete, nil)
	} else {
		result.record(StepDeactivate, ErrNotFound)
		result.record(StepDelete, ErrNotFound)
	}
	return result, result.Err()
}

func (m *MemoryAuthority) DeleteIdentityObject(ctx context.Context, deviceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.identities, deviceID)
	return nil
}

// Status returns the state of the credential, or ErrNotFound once it was deleted.
func (m *MemoryAuthority) Status(ctx context.Context, ref string) (CredentialState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cred, ok := m.credentials[ref]
	if !ok {
		return "", ErrNotFound
	}
	return cred.state, nil
}

// Principals lists the credentials bound to the identity object of the device.
func (m *MemoryAuthority) Principals(ctx context.Context, deviceID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	identity, ok := m.identities[deviceID]
	if !ok {
		return nil, ErrNotFound
	}
	var refs []string
	for ref := range identity.principals {
		refs = append(refs, ref)
	}
	return refs, nil
}

// Attributes returns the attributes of the identity object of the device.
func (m *MemoryAuthority) Attributes(ctx context.Context, deviceID string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	identity, ok := m.identities[deviceID]
	if !ok {
		return nil, ErrNotFound
	}
	attributes := maps.Clone(identity.attributes)
	if attributes == nil {
		attributes = map[string]string{}
	}
	return attributes, nil
}

// Authorized reports whether the fleet policy is attached to the credential.
func (m *MemoryAuthority) Authorized(ctx context.Context, ref string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.authorized[ref]
	return ok, nil
}

func (i *memoryIdentity) principalsOrNil() map[string]struct{} {
	if i == nil {
		return nil
	}
	return i.principals
}
