package email

import (
	"io"
	"net"
	"sync"
	"testing"

	"github.com/emersion/go-smtp"
	"github.com/stretchr/testify/require"
)

type recorded struct {
	from string
	to   []string
	data string
}

type backend struct {
	mu   sync.Mutex
	mail []recorded
}

func (b *backend) NewSession(_ *smtp.Conn) (smtp.Session, error) {
	return &session{backend: b}, nil
}

type session struct {
	backend *backend
	current recorded
}

func (s *session) Mail(from string, _ *smtp.MailOptions) error {
	s.current.from = from
	return nil
}

func (s *session) Rcpt(to string, _ *smtp.RcptOptions) error {
	s.current.to = append(s.current.to, to)
	return nil
}

func (s *session) Data(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.current.data = string(data)
	s.backend.mu.Lock()
	defer s.backend.mu.Unlock()
	s.backend.mail = append(s.backend.mail, s.current)
	return nil
}

func (s *session) Reset() {
	s.current = recorded{}
}

func (s *session) Logout() error {
	return nil
}

func TestSend(t *testing.T) {
	require := require.New(t)
	b := &backend{}
	server := smtp.NewServer(b)
	server.Domain = "localhost"

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(err)
	go func() {
		_ = server.Serve(listener)
	}()
	t.Cleanup(func() {
		_ = server.Close()
	})

	err = Send(SmtpServer{HostPort: listener.Addr().String(), Hello: "receivr.test"}, Message{
		From:         "receivr@example.com",
		To:           []string{"ops@example.com"},
		Subject:      "hello",
		PlainMessage: "hello ops",
	})
	require.NoError(err)

	b.mu.Lock()
	defer b.mu.Unlock()
	require.Len(b.mail, 1)
	require.Equal("receivr@example.com", b.mail[0].from)
	require.Equal([]string{"ops@example.com"}, b.mail[0].to)
	require.Contains(b.mail[0].data, "Subject: hello")
	require.Contains(b.mail[0].data, "hello ops")
}
