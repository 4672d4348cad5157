// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SAVIKA Contributors

package observability

import (
	"context"
	"io"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/savika/savika/pkg/errutil"
)

func startServer(t *testing.T, ready ReadinessChecker) *Server {
	t.Helper()
	server := NewServer("127.0.0.1:0", ready)
	_, err := server.Start()
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Stop(ctx)
	})
	return server
}

func get(t *testing.T, server *Server, path string) (int, string) {
	t.Helper()
	resp, err := http.Get("http://" + server.Addr() + path)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestServer_MetricsEndpoint(t *testing.T) {
	server := startServer(t, nil)
	server.Metrics().RecordSubmission("login", "accepted")
	server.Metrics().RecordGatewayError("sign_in")
	server.Metrics().RecordAuthEvent("SIGNED_IN")

	status, body := get(t, server, "/metrics")

	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "go_goroutines")
	assert.Contains(t, body, `savika_submissions_total{flow="login",outcome="accepted"} 1`)
	assert.Contains(t, body, `savika_gateway_errors_total{operation="sign_in"} 1`)
	assert.Contains(t, body, `savika_auth_events_total{event="SIGNED_IN"} 1`)
}

func TestServer_HealthChecks(t *testing.T) {
	var ready atomic.Bool
	server := startServer(t, ready.Load)

	status, body := get(t, server, "/healthz/liveness")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok\n", body)

	status, body = get(t, server, "/healthz/readiness")
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, "not ready\n", body)

	ready.Store(true)
	status, _ = get(t, server, "/healthz/readiness")
	assert.Equal(t, http.StatusOK, status)
}

func TestServer_HealthChecksOnlyAnswerGet(t *testing.T) {
	server := startServer(t, nil)

	resp, err := http.Post("http://"+server.Addr()+"/healthz/liveness", "text/plain", nil) //nolint:noctx // test helper
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestServer_DoubleStartFails(t *testing.T) {
	server := startServer(t, nil)

	_, err := server.Start()

	errutil.AssertErrorCode(t, err, "OBSERVABILITY_ALREADY_RUNNING")
}

func TestServer_StopIdempotent(t *testing.T) {
	server := NewServer("127.0.0.1:0", nil)
	ctx := context.Background()

	assert.NoError(t, server.Stop(ctx))
	_, err := server.Start()
	require.NoError(t, err)
	assert.NoError(t, server.Stop(ctx))
	assert.NoError(t, server.Stop(ctx))
}

func TestServer_ErrorChannelReportsServeErrors(t *testing.T) {
	server := NewServer("127.0.0.1:0", nil)
	errCh, err := server.Start()
	require.NoError(t, err)
	defer func() { _ = server.Stop(context.Background()) }()

	_ = server.listener.Close()

	select {
	case serveErr := <-errCh:
		errutil.AssertErrorCode(t, serveErr, "OBSERVABILITY_SERVE_FAILED")
	case <-time.After(2 * time.Second):
		t.Fatal("serve error was not reported")
	}
}

func TestServer_ErrorChannelClosesOnNormalShutdown(t *testing.T) {
	server := NewServer("127.0.0.1:0", nil)
	errCh, err := server.Start()
	require.NoError(t, err)

	require.NoError(t, server.Stop(context.Background()))

	select {
	case err, ok := <-errCh:
		if ok {
			assert.NoError(t, err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("error channel did not close")
	}
}

func TestMetrics_Recorders(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordSubmission("registration", "weak_password")
	m.RecordSubmission("registration", "weak_password")
	m.RecordGatewayError("sign_up")
	m.RecordAuthEvent("PASSWORD_RECOVERY")

	assert.InDelta(t, 2, testutil.ToFloat64(m.SubmissionsTotal.WithLabelValues("registration", "weak_password")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.GatewayErrorsTotal.WithLabelValues("sign_up")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.AuthEventsTotal.WithLabelValues("PASSWORD_RECOVERY")), 0)
}
