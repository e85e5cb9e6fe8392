package util

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryOperation retries the operation with a constant backoff policy. Errors wrapped
// with backoff.Permanent stop the retries immediately and are returned unwrapped.
func RetryOperation(ctx context.Context, wait time.Duration, retries int, operation func() error) error {
	bo := backoff.WithMaxRetries(
		backoff.NewConstantBackOff(wait),
		uint64(retries),
	)
	return backoff.Retry(operation, backoff.WithContext(bo, ctx))
}

// RetryOperationWithData is RetryOperation for operations that produce a value.
func RetryOperationWithData[T any](ctx context.Context, wait time.Duration, retries int, operation func() (T, error)) (T, error) {
	bo := backoff.WithMaxRetries(
		backoff.NewConstantBackOff(wait),
		uint64(retries),
	)
	return backoff.RetryWithData(operation, backoff.WithContext(bo, ctx))
}
