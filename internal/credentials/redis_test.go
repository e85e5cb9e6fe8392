//go:build integration

package credentials

import (
	"context"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

func TestRedisAuthority(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping redis integration test in short mode")
	}
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})
	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)
	opts, err := redis.ParseURL(uri)
	require.NoError(t, err)
	client := redis.NewClient(opts)
	t.Cleanup(func() {
		_ = client.Close()
	})
	require.NoError(t, client.Ping(ctx).Err())

	authority := NewRedisAuthority(client, NewSigner(testCA(t), 0), "mqtts://devices.example.com:8883", "receiver-fleet")
	testAuthorityContract(t, authority)

	t.Run("partial revoke reports failures", func(t *testing.T) {
		cred, err := authority.IssueCredential(ctx)
		require.NoError(t, err)

		broken := NewRedisAuthority(redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1}), nil, "", "receiver-fleet")
		result, err := broken.Revoke(ctx, cred.Ref, "rcv-009")
		require.Error(t, err)
		require.False(t, result.Complete())

		state, err := authority.Status(ctx, cred.Ref)
		require.NoError(t, err)
		require.Equal(t, CredentialActive, state)
	})
}
