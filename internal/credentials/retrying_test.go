package credentials

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// flakyAuthority fails the first failures calls of every method.
type flakyAuthority struct {
	*MemoryAuthority
	failures int
	calls    map[string]int
}

func (f *flakyAuthority) fail(method string) error {
	f.calls[method]++
	if f.calls[method] <= f.failures {
		return fmt.Errorf("%s: connection reset", method)
	}
	return nil
}

func (f *flakyAuthority) Authorize(ctx context.Context, ref string) error {
	if err := f.fail("authorize"); err != nil {
		return err
	}
	return f.MemoryAuthority.Authorize(ctx, ref)
}

func (f *flakyAuthority) Endpoint(ctx context.Context) (string, error) {
	if err := f.fail("endpoint"); err != nil {
		return "", err
	}
	return f.MemoryAuthority.Endpoint(ctx)
}

func (f *flakyAuthority) Revoke(ctx context.Context, ref string, deviceID string) (RevokeResult, error) {
	if err := f.fail("revoke"); err != nil {
		result := RevokeResult{Ref: ref}
		result.record(StepDetachPolicy, err)
		return result, result.Err()
	}
	return f.MemoryAuthority.Revoke(ctx, ref, deviceID)
}

func newFlaky(t *testing.T, failures int) (*flakyAuthority, *RetryingAuthority) {
	flaky := &flakyAuthority{
		MemoryAuthority: NewMemoryAuthority(NewSigner(testCA(t), 0), "mqtts://devices.example.com:8883"),
		failures:        failures,
		calls:           map[string]int{},
	}
	return flaky, NewRetryingAuthority(flaky, zap.NewNop().Sugar(), time.Millisecond, 3)
}

func TestRetryingAuthorityRecoversFromTransientErrors(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	flaky, authority := newFlaky(t, 2)

	cred, err := authority.IssueCredential(ctx)
	require.NoError(err)
	require.NoError(authority.Authorize(ctx, cred.Ref))
	require.Equal(3, flaky.calls["authorize"])

	result, err := authority.Revoke(ctx, cred.Ref, "rcv-001")
	require.NoError(err)
	require.True(result.Complete())
	require.Equal(3, flaky.calls["revoke"])
}

func TestRetryingAuthorityGivesUp(t *testing.T) {
	ctx := context.Background()
	flaky, authority := newFlaky(t, 10)

	cred, err := authority.IssueCredential(ctx)
	require.NoError(t, err)
	require.Error(t, authority.Authorize(ctx, cred.Ref))
	require.Equal(t, 4, flaky.calls["authorize"])

	result, err := authority.Revoke(ctx, cred.Ref, "rcv-001")
	require.Error(t, err)
	require.False(t, result.Complete())
}

func TestRetryingAuthorityDoesNotRetryNotFound(t *testing.T) {
	flaky, authority := newFlaky(t, 0)
	err := authority.Authorize(context.Background(), "missing")
	require.True(t, errors.Is(err, ErrNotFound))
	require.Equal(t, 1, flaky.calls["authorize"])
}

func TestRetryingAuthorityMemoizesEndpoint(t *testing.T) {
	ctx := context.Background()
	flaky, authority := newFlaky(t, 1)
	for i := 0; i < 3; i++ {
		endpoint, err := authority.Endpoint(ctx)
		require.NoError(t, err)
		require.Equal(t, "mqtts://devices.example.com:8883", endpoint)
	}
	require.Equal(t, 2, flaky.calls["endpoint"])
}
