package alerts

import (
	"context"
	"fmt"
	"strings"

	"github.com/receivr-io/receivr/internal/email"
)

// EmailSink mails alerts to the operator recipients.
type EmailSink struct {
	server     email.SmtpServer
	from       string
	recipients []string
	send       func(email.SmtpServer, email.Message) error
}

func NewEmailSink(server email.SmtpServer, from string, recipients []string) *EmailSink {
	return &EmailSink{server: server, from: from, recipients: recipients, send: email.Send}
}

func (s *EmailSink) Raise(ctx context.Context, alert Alert) error {
	if len(s.recipients) == 0 {
		return nil
	}
	msg := email.Message{
		From:         s.from,
		To:           s.recipients,
		Subject:      fmt.Sprintf("[receivr %s] %s for device %s", alert.Environment, alert.Kind, alert.DeviceID),
		PlainMessage: body(alert),
		Date:         alert.RaisedAt,
	}
	if err := s.send(s.server, msg); err != nil {
		return fmt.Errorf("mailing alert: %w", err)
	}
	return nil
}

func body(alert Alert) string {
	var b strings.Builder
	fmt.Fprintf(&b, "The credential below could not be revoked automatically and must be revoked by hand.\n\n")
	fmt.Fprintf(&b, "kind:           %s\n", alert.Kind)
	fmt.Fprintf(&b, "environment:    %s\n", alert.Environment)
	fmt.Fprintf(&b, "device id:      %s\n", alert.DeviceID)
	fmt.Fprintf(&b, "credential ref: %s\n", alert.CredentialRef)
	fmt.Fprintf(&b, "reason:         %s\n", alert.Reason)
	fmt.Fprintf(&b, "error:          %s\n", alert.Error)
	fmt.Fprintf(&b, "raised at:      %s\n", alert.RaisedAt.UTC().Format("2006-01-02 15:04:05 MST"))
	return b.String()
}
