package alerts

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const DefaultStream = "receivr:alerts"

// RedisStreamSink appends alerts to a capped redis stream that operator tooling consumes.
type RedisStreamSink struct {
	redis  redis.UniversalClient
	stream string
	maxLen int64
}

func NewRedisStreamSink(client redis.UniversalClient, stream string, maxLen int64) *RedisStreamSink {
	if stream == "" {
		stream = DefaultStream
	}
	return &RedisStreamSink{redis: client, stream: stream, maxLen: maxLen}
}

func (s *RedisStreamSink) Raise(ctx context.Context, alert Alert) error {
	err := s.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		MaxLen: s.maxLen,
		Approx: s.maxLen > 0,
		Values: map[string]any{
			"kind":           alert.Kind,
			"credential_ref": alert.CredentialRef,
			"device_id":      alert.DeviceID,
			"environment":    alert.Environment,
			"reason":         alert.Reason,
			"error":          alert.Error,
			"raised_at":      alert.RaisedAt.UTC().Format(time.RFC3339Nano),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("appending alert to %s: %w", s.stream, err)
	}
	return nil
}
