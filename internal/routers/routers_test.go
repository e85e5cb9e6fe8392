package routers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/receivr-io/receivr/internal/handlers"
	"github.com/receivr-io/receivr/internal/models"
	"github.com/receivr-io/receivr/internal/registration"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type stubRegistrar struct {
	mu       sync.Mutex
	subjects []string
}

func (s *stubRegistrar) Register(_ context.Context, subject string, request models.RegisterDevice) (*registration.Result, error) {
	s.mu.Lock()
	s.subjects = append(s.subjects, subject)
	s.mu.Unlock()
	if subject == "" {
		return nil, &registration.Error{Kind: registration.KindAuth}
	}
	return &registration.Result{
		Device: models.Device{DeviceID: request.DeviceID, SerialNumber: request.SerialNumber},
		State:  registration.StateDone,
	}, nil
}

const body = `{"device_id":"rcv-001","device_instance_id":"6f1d2b5e-8c0a-4d0e-9d7c-2f0b8a8f4c11","device_name":"Front door","serial_number":"SN-1","mac_address":"a4:cf:12:9b:00:7e","device_state":"normal"}`

func TestRouter(t *testing.T) {
	logger := zaptest.NewLogger(t).Sugar()
	registrar := &stubRegistrar{}
	r := NewAPIRouter(APIRouterOptions{
		Logger:         logger,
		Api:            handlers.NewAPI(logger, registrar, nil),
		IdentityHeader: "X-Auth-Subject",
	})

	serve := func(method, path string, headers map[string]string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		res := httptest.NewRecorder()
		r.ServeHTTP(res, req)
		return res
	}

	res := serve(http.MethodPost, "/api/devices/register", map[string]string{"X-Auth-Subject": " auth0|alice "})
	require.Equal(t, http.StatusCreated, res.Code)

	res = serve(http.MethodPost, "/api/devices/register", map[string]string{"X-Forwarded-User": "auth0|mallory"})
	require.Equal(t, http.StatusUnauthorized, res.Code)
	require.Equal(t, []string{"auth0|alice", ""}, registrar.subjects)

	require.Equal(t, http.StatusOK, serve(http.MethodGet, "/private/live", nil).Code)
	require.Equal(t, http.StatusOK, serve(http.MethodGet, "/private/ready", nil).Code)

	res = serve(http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, res.Code)
	require.Contains(t, res.Body.String(), "receivr_api_requests_total")
}

func TestLimiterCancels(t *testing.T) {
	limiter := NewLimiter(1)
	release := make(chan struct{})
	started := make(chan struct{})
	go limiter.Do(context.Background(), func() {
		close(started)
		<-release
	})
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	ran := false
	canceled := limiter.Do(ctx, func() { ran = true })
	require.True(t, canceled)
	require.False(t, ran)

	close(release)
	require.Eventually(t, func() bool {
		return !limiter.Do(context.Background(), func() {})
	}, time.Second, 5*time.Millisecond)
}
