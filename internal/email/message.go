package email

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"mime/quotedprintable"
	"strings"
	"time"
)

// Message is a plain text mail.
type Message struct {
	From         string
	To           []string
	Subject      string
	PlainMessage string
	Date         time.Time
}

func (e *Message) Write(w io.Writer) error {
	date := e.Date
	if date.IsZero() {
		date = time.Now()
	}
	headers := []string{
		"From: " + e.From,
		"To: " + strings.Join(e.To, ", "),
		"Subject: " + mime.QEncoding.Encode("utf-8", e.Subject),
		"Date: " + date.Format(time.RFC1123Z),
		"MIME-Version: 1.0",
		`Content-Type: text/plain; charset="utf-8"`,
		"Content-Transfer-Encoding: quoted-printable",
	}
	if _, err := fmt.Fprintf(w, "%s\r\n\r\n", strings.Join(headers, "\r\n")); err != nil {
		return err
	}

	buf := bytes.NewBuffer(nil)
	qp := quotedprintable.NewWriter(buf)
	if _, err := qp.Write([]byte(e.PlainMessage)); err != nil {
		return err
	}
	if err := qp.Close(); err != nil {
		return err
	}
	_, err := io.Copy(w, buf)
	return err
}
