package alerts

import (
	"context"
	"errors"
	"time"
)

const KindCredentialCleanupFailed = "credential_cleanup_failed"

// Alert asks an operator to finish work the service could not complete on its own.
type Alert struct {
	Kind          string    `json:"kind"`
	CredentialRef string    `json:"credential_ref"`
	DeviceID      string    `json:"device_id"`
	Environment   string    `json:"environment"`
	Reason        string    `json:"reason"`
	Error         string    `json:"error"`
	RaisedAt      time.Time `json:"raised_at"`
}

type Sink interface {
	Raise(ctx context.Context, alert Alert) error
}

// MultiSink raises the alert on every sink, even when one of them fails.
type MultiSink []Sink

func (m MultiSink) Raise(ctx context.Context, alert Alert) error {
	var errs []error
	for _, sink := range m {
		if err := sink.Raise(ctx, alert); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
