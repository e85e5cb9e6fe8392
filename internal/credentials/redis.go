package credentials

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisAuthority keeps credential status, identity objects and policy attachments in redis.
//
// Keys, relative to the prefix:
//
//	cred:<ref>                  hash  status, device_id, issued_at, not_after
//	thing:<device-id>           hash  identity object attributes
//	thing:<device-id>:principals set  bound credential refs
//	policy:<name>:targets       set   authorized credential refs
type RedisAuthority struct {
	redis     redis.UniversalClient
	signer    *Signer
	endpoint  string
	policy    string
	keyPrefix string
}

var _ Authority = &RedisAuthority{}

func NewRedisAuthority(client redis.UniversalClient, signer *Signer, endpoint string, policy string) *RedisAuthority {
	return &RedisAuthority{
		redis:     client,
		signer:    signer,
		endpoint:  endpoint,
		policy:    policy,
		keyPrefix: "receivr:authority:",
	}
}

func (r *RedisAuthority) credKey(ref string) string {
	return r.keyPrefix + "cred:" + ref
}

func (r *RedisAuthority) thingKey(deviceID string) string {
	return r.keyPrefix + "thing:" + deviceID
}

func (r *RedisAuthority) principalsKey(deviceID string) string {
	return r.thingKey(deviceID) + ":principals"
}

func (r *RedisAuthority) policyKey() string {
	return r.keyPrefix + "policy:" + r.policy + ":targets"
}

func (r *RedisAuthority) IssueCredential(ctx context.Context) (Credential, error) {
	cred, err := r.signer.Issue()
	if err != nil {
		return Credential{}, err
	}
	err = r.redis.HSet(ctx, r.credKey(cred.Ref),
		"status", string(CredentialActive),
		"issued_at", time.Now().UTC().Format(time.RFC3339),
		"not_after", cred.NotAfter.UTC().Format(time.RFC3339),
	).Err()
	if err != nil {
		return Credential{}, fmt.Errorf("storing credential %s: %w", cred.Ref, err)
	}
	return cred, nil
}

func (r *RedisAuthority) EnsureIdentityObject(ctx context.Context, deviceID string, attributes map[string]string) (bool, error) {
	created, err := r.redis.HSetNX(ctx, r.thingKey(deviceID), "device_id", deviceID).Result()
	if err != nil || !created || len(attributes) == 0 {
		return created, err
	}
	if err := r.redis.HSet(ctx, r.thingKey(deviceID), attributeValues(deviceID, attributes)...).Err(); err != nil {
		return true, err
	}
	return true, nil
}

func (r *RedisAuthority) UpdateIdentityObject(ctx context.Context, deviceID string, attributes map[string]string) error {
	if err := r.exists(ctx, r.thingKey(deviceID), "identity object "+deviceID); err != nil {
		return err
	}
	_, err := r.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, r.thingKey(deviceID))
		pipe.HSet(ctx, r.thingKey(deviceID), attributeValues(deviceID, attributes)...)
		return nil
	})
	return err
}

func attributeValues(deviceID string, attributes map[string]string) []any {
	values := []any{"device_id", deviceID}
	for k, v := range attributes {
		values = append(values, k, v)
	}
	return values
}

func (r *RedisAuthority) exists(ctx context.Context, key string, what string) error {
	n, err := r.redis.Exists(ctx, key).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return nil
}

func (r *RedisAuthority) Authorize(ctx context.Context, ref string) error {
	if err := r.exists(ctx, r.credKey(ref), "credential "+ref); err != nil {
		return err
	}
	return r.redis.SAdd(ctx, r.policyKey(), ref).Err()
}

func (r *RedisAuthority) BindCredentialToIdentity(ctx context.Context, deviceID string, ref string) error {
	if err := r.exists(ctx, r.credKey(ref), "credential "+ref); err != nil {
		return err
	}
	if err := r.exists(ctx, r.thingKey(deviceID), "identity object "+deviceID); err != nil {
		return err
	}
	_, err := r.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, r.principalsKey(deviceID), ref)
		pipe.HSet(ctx, r.credKey(ref), "device_id", deviceID)
		return nil
	})
	return err
}

func (r *RedisAuthority) Endpoint(ctx context.Context) (string, error) {
	if r.endpoint == "" {
		return "", fmt.Errorf("no device endpoint configured")
	}
	return r.endpoint, nil
}

func (r *RedisAuthority) Revoke(ctx context.Context, ref string, deviceID string) (RevokeResult, error) {
	result := RevokeResult{Ref: ref}
	result.record(StepDetachPolicy, removed(r.redis.SRem(ctx, r.policyKey(), ref)))
	result.record(StepUnbindIdentity, removed(r.redis.SRem(ctx, r.principalsKey(deviceID), ref)))

	err := r.exists(ctx, r.credKey(ref), "credential "+ref)
	if err == nil {
		err = r.redis.HSet(ctx, r.credKey(ref), "status", string(CredentialInactive)).Err()
	}
	result.record(StepDeactivate, err)
	result.record(StepDelete, removed(r.redis.Del(ctx, r.credKey(ref))))
	return result, result.Err()
}

func (r *RedisAuthority) DeleteIdentityObject(ctx context.Context, deviceID string) error {
	return r.redis.Del(ctx, r.thingKey(deviceID), r.principalsKey(deviceID)).Err()
}

// Status returns the state of the credential, or ErrNotFound once it was deleted.
func (r *RedisAuthority) Status(ctx context.Context, ref string) (CredentialState, error) {
	status, err := r.redis.HGet(ctx, r.credKey(ref), "status").Result()
	if err == redis.Nil {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return CredentialState(status), nil
}

// Principals lists the credentials bound to the identity object of the device.
func (r *RedisAuthority) Principals(ctx context.Context, deviceID string) ([]string, error) {
	if err := r.exists(ctx, r.thingKey(deviceID), "identity object "+deviceID); err != nil {
		return nil, err
	}
	return r.redis.SMembers(ctx, r.principalsKey(deviceID)).Result()
}

// Attributes returns the attributes of the identity object of the device.
func (r *RedisAuthority) Attributes(ctx context.Context, deviceID string) (map[string]string, error) {
	attributes, err := r.redis.HGetAll(ctx, r.thingKey(deviceID)).Result()
	if err != nil {
		return nil, err
	}
	if len(attributes) == 0 {
		return nil, ErrNotFound
	}
	delete(attributes, "device_id")
	return attributes, nil
}

// Authorized reports whether the fleet policy is attached to the credential.
func (r *RedisAuthority) Authorized(ctx context.Context, ref string) (bool, error) {
	return r.redis.SIsMember(ctx, r.policyKey(), ref).Result()
}

// removed maps a zero removal count to ErrNotFound.
func removed(cmd *redis.IntCmd) error {
	n, err := cmd.Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
