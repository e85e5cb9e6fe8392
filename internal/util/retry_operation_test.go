package util

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryOperation(t *testing.T) {
	errTemporary := errors.New("temporary error")
	errFatal := errors.New("fatal error")

	tests := []struct {
		name          string
		retries       int
		failures      int
		permanent     bool
		expectedErr   error
		expectedCalls int
	}{
		{
			name:          "success on first attempt",
			retries:       3,
			expectedCalls: 1,
		},
		{
			name:          "success after retries",
			retries:       3,
			failures:      2,
			expectedCalls: 3,
		},
		{
			name:          "gives up after max retries",
			retries:       2,
			failures:      10,
			expectedErr:   errTemporary,
			expectedCalls: 3,
		},
		{
			name:          "permanent error stops retries",
			retries:       5,
			failures:      10,
			permanent:     true,
			expectedErr:   errFatal,
			expectedCalls: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := RetryOperation(context.Background(), time.Millisecond, tt.retries, func() error {
				calls++
				if calls <= tt.failures {
					if tt.permanent {
						return backoff.Permanent(errFatal)
					}
					return errTemporary
				}
				return nil
			})
			if tt.expectedErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.expectedErr)
			}
			assert.Equal(t, tt.expectedCalls, calls)
		})
	}
}

func TestRetryOperationContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := RetryOperation(ctx, 10*time.Millisecond, 3, func() error {
		return errors.New("temporary error")
	})
	assert.Error(t, err)
}

func TestRetryOperationWithData(t *testing.T) {
	calls := 0
	value, err := RetryOperationWithData(context.Background(), time.Millisecond, 3, func() (string, error) {
		calls++
		if calls < 2 {
			return "", errors.New("temporary error")
		}
		return "endpoint", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "endpoint", value)
	assert.Equal(t, 2, calls)
}
