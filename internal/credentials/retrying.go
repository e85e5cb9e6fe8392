package credentials

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/receivr-io/receivr/internal/util"
	"github.com/receivr-io/receivr/internal/util/cache"
	"go.uber.org/zap"
)

// RetryingAuthority retries each step of the wrapped Authority on transient errors.
// ErrNotFound is never retried.
type RetryingAuthority struct {
	next      Authority
	logger    *zap.SugaredLogger
	wait      time.Duration
	retries   int
	endpoints *cache.MemoizeCache[string, string]
}

var _ Authority = &RetryingAuthority{}

func NewRetryingAuthority(next Authority, logger *zap.SugaredLogger, wait time.Duration, retries int) *RetryingAuthority {
	return &RetryingAuthority{
		next:      next,
		logger:    logger,
		wait:      wait,
		retries:   retries,
		endpoints: cache.NewMemoizeCache[string, string](10 * time.Minute),
	}
}

func (r *RetryingAuthority) attempt(step string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) {
		return backoff.Permanent(err)
	}
	r.logger.Debugw("credential authority step failed", "step", step, "error", err)
	return err
}

func (r *RetryingAuthority) IssueCredential(ctx context.Context) (Credential, error) {
	return util.RetryOperationWithData(ctx, r.wait, r.retries, func() (Credential, error) {
		cred, err := r.next.IssueCredential(ctx)
		return cred, r.attempt("issue", err)
	})
}

func (r *RetryingAuthority) EnsureIdentityObject(ctx context.Context, deviceID string, attributes map[string]string) (bool, error) {
	return util.RetryOperationWithData(ctx, r.wait, r.retries, func() (bool, error) {
		created, err := r.next.EnsureIdentityObject(ctx, deviceID, attributes)
		return created, r.attempt("ensure_identity_object", err)
	})
}

func (r *RetryingAuthority) UpdateIdentityObject(ctx context.Context, deviceID string, attributes map[string]string) error {
	return util.RetryOperation(ctx, r.wait, r.retries, func() error {
		return r.attempt("update_identity_object", r.next.UpdateIdentityObject(ctx, deviceID, attributes))
	})
}

func (r *RetryingAuthority) Authorize(ctx context.Context, ref string) error {
	return util.RetryOperation(ctx, r.wait, r.retries, func() error {
		return r.attempt("authorize", r.next.Authorize(ctx, ref))
	})
}

func (r *RetryingAuthority) BindCredentialToIdentity(ctx context.Context, deviceID string, ref string) error {
	return util.RetryOperation(ctx, r.wait, r.retries, func() error {
		return r.attempt("bind_credential", r.next.BindCredentialToIdentity(ctx, deviceID, ref))
	})
}

func (r *RetryingAuthority) Endpoint(ctx context.Context) (string, error) {
	return r.endpoints.MemoizeCanErr("endpoint", func() (string, error) {
		return util.RetryOperationWithData(ctx, r.wait, r.retries, func() (string, error) {
			endpoint, err := r.next.Endpoint(ctx)
			return endpoint, r.attempt("endpoint", err)
		})
	})
}

// Revoke repeats the whole revoke until every step completes; completed steps
// are skipped on the next attempt.
func (r *RetryingAuthority) Revoke(ctx context.Context, ref string, deviceID string) (RevokeResult, error) {
	var last RevokeResult
	err := util.RetryOperation(ctx, r.wait, r.retries, func() error {
		result, err := r.next.Revoke(ctx, ref, deviceID)
		last = result
		return r.attempt("revoke", err)
	})
	return last, err
}

func (r *RetryingAuthority) DeleteIdentityObject(ctx context.Context, deviceID string) error {
	return util.RetryOperation(ctx, r.wait, r.retries, func() error {
		return r.attempt("delete_identity_object", r.next.DeleteIdentityObject(ctx, deviceID))
	})
}
