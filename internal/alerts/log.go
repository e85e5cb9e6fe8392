package alerts

import (
	"context"

	"github.com/receivr-io/receivr/internal/util"
	"go.uber.org/zap"
)

// LogSink writes alerts to the service log at error level.
type LogSink struct {
	logger *zap.SugaredLogger
}

func NewLogSink(logger *zap.SugaredLogger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Raise(ctx context.Context, alert Alert) error {
	util.WithTrace(ctx, s.logger).Errorw("operator alert",
		"kind", alert.Kind,
		"credential_ref", alert.CredentialRef,
		"device_id", alert.DeviceID,
		"environment", alert.Environment,
		"reason", alert.Reason,
		"error", alert.Error,
		"raised_at", alert.RaisedAt,
	)
	return nil
}
