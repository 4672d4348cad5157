// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SAVIKA Contributors

package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/savika/savika/internal/gateway/baas/baastest"
	"github.com/savika/savika/internal/observability"
	"github.com/savika/savika/pkg/errutil"
)

const seedYAML = `accounts:
  - email: ana@example.com
    password: Abcd123!
    full_name: Ana Lopez
`

func writeSeed(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(seedYAML), 0o600))
	return path
}

func runShellScript(t *testing.T, deps *ShellDeps, script string, args ...string) (string, error) {
	t.Helper()
	if deps == nil {
		deps = &ShellDeps{}
	}
	deps.Stdin = strings.NewReader(script)
	return execute(t, deps, nil, append([]string{"shell", "--log-level", "error"}, args...)...)
}

func TestShell_MemoryGatewayLoginAndRegister(t *testing.T) {
	dir := isolateEnv(t)
	seed := writeSeed(t, dir)

	script := strings.Join([]string{
		"whoami",
		"login ana@example.com Abcd123!",
		"wait",
		"whoami",
		"logout",
		"go register",
		"register Bo Diaz bo@example.com Abcd123! Abcd123!",
		"wait",
		"whoami",
		"quit",
		"whoami",
	}, "\n")

	output, err := runShellScript(t, nil, script, "--gateway", "memory", "--seed-file", seed)
	require.NoError(t, err)

	assert.Contains(t, output, "not signed in")
	assert.Contains(t, output, "[dashboard] ana@example.com")
	assert.Contains(t, output, "Ana Lopez <ana@example.com>")
	assert.Contains(t, output, "[register]")
	assert.Contains(t, output, "Bo Diaz <bo@example.com>")
	assert.Equal(t, 1, strings.Count(output, "not signed in"), "commands after quit must not run")
}

func TestShell_LocalRejectionsShowMessages(t *testing.T) {
	dir := isolateEnv(t)
	seed := writeSeed(t, dir)

	script := strings.Join([]string{
		"login not-an-email Abcd123!",
		"wait",
		"login ana@example.com Wrong123!",
		"wait",
		"go recovery",
		"recover ghost@example.com",
		"wait",
		"go dashboard",
		"go reset-password",
		"reset Abcd123! Abcd123!",
		"login a b c",
		"dance",
	}, "\n")

	output, err := runShellScript(t, nil, script, "--gateway", "memory", "--seed-file", seed)
	require.NoError(t, err)

	assert.Contains(t, output, "[login] Please check your credentials.")
	assert.Contains(t, output, "[login] Invalid credentials or user not found.")
	assert.Contains(t, output, "[recovery] No account is associated with this email address.")
	assert.Contains(t, output, "error: sign in first")
	assert.Contains(t, output, "ignored: reset is not available on the recovery view")
	assert.Contains(t, output, "error: login takes 2 argument(s)")
	assert.Contains(t, output, `error: unknown command "dance"`)
}

func TestShell_RecoveryPrintsCode(t *testing.T) {
	dir := isolateEnv(t)
	seed := writeSeed(t, dir)

	script := "go recovery\nrecover ana@example.com\nwait\n"
	output, err := runShellScript(t, nil, script, "--gateway", "memory", "--seed-file", seed)
	require.NoError(t, err)

	assert.Contains(t, output, "recovery code for ana@example.com: ")
	assert.Contains(t, output, "[recovery] Check your email for the password recovery code.")
}

func TestShell_StrengthCommand(t *testing.T) {
	isolateEnv(t)
	output, err := runShellScript(t, nil, "strength abc\nstrength Abcd123!\n", "--gateway", "memory")
	require.NoError(t, err)
	assert.Contains(t, output, "score 1/5 (weak)")
	assert.Contains(t, output, "score 5/5 (excellent)")
}

func TestShell_BaaSGatewayPersistsSession(t *testing.T) {
	dir := isolateEnv(t)
	srv := baastest.Start(t)
	srv.AddUser("ana@example.com", "Abcd123!", "Ana Lopez")
	sessionFile := filepath.Join(dir, "session.json")
	t.Setenv("SAVIKA_GATEWAY__ANON_KEY", baastest.AnonKey)

	args := []string{"--gateway-url", srv.URL, "--session-file", sessionFile}

	output, err := runShellScript(t, nil, "login ana@example.com Abcd123!\nwait\n", args...)
	require.NoError(t, err)
	assert.Contains(t, output, "[dashboard] ana@example.com")
	assert.FileExists(t, sessionFile)

	// A second run starts signed in from the saved session.
	output, err = runShellScript(t, nil, "whoami\nlogout\n", args...)
	require.NoError(t, err)
	assert.Contains(t, output, "Ana Lopez <ana@example.com>")
	assert.Contains(t, output, "[login]")
	assert.NoFileExists(t, sessionFile)
}

func TestShell_InvalidConfig(t *testing.T) {
	isolateEnv(t)
	_, err := runShellScript(t, nil, "", "--gateway", "baas")
	errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
}

func TestShell_ProfileDatabase(t *testing.T) {
	dir := isolateEnv(t)
	seed := writeSeed(t, dir)

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	mock.ExpectExec("INSERT INTO profiles").
		WithArgs("ana@example.com").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectClose()

	var gotURL string
	deps := &ShellDeps{
		PoolFactory: func(_ context.Context, url string) (Pool, error) {
			gotURL = url
			return mock, nil
		},
	}

	_, err = runShellScript(t, deps, "quit\n",
		"--gateway", "memory", "--seed-file", seed, "--database-url", "postgres://localhost/savika")
	require.NoError(t, err)
	assert.Equal(t, "postgres://localhost/savika", gotURL)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestShell_ProfileDatabaseConnectFailure(t *testing.T) {
	isolateEnv(t)
	deps := &ShellDeps{
		PoolFactory: func(context.Context, string) (Pool, error) {
			return nil, errors.New("connection refused")
		},
	}
	_, err := runShellScript(t, deps, "", "--gateway", "memory", "--database-url", "postgres://localhost/savika")
	errutil.AssertErrorCode(t, err, "DB_CONNECT_FAILED")
}

type fakeObservabilityServer struct {
	addr    string
	ready   observability.ReadinessChecker
	metrics *observability.Metrics
	started bool
	stopped bool
}

func (f *fakeObservabilityServer) Start() (<-chan error, error) {
	f.started = true
	ch := make(chan error)
	close(ch)
	return ch, nil
}

func (f *fakeObservabilityServer) Stop(context.Context) error {
	f.stopped = true
	return nil
}

func (f *fakeObservabilityServer) Addr() string { return f.addr }

func (f *fakeObservabilityServer) Metrics() *observability.Metrics { return f.metrics }

func TestShell_ObservabilityServer(t *testing.T) {
	dir := isolateEnv(t)
	seed := writeSeed(t, dir)

	fake := &fakeObservabilityServer{metrics: observability.NewMetrics(prometheus.NewRegistry())}
	deps := &ShellDeps{
		ObservabilityServerFactory: func(addr string, ready observability.ReadinessChecker, _ *slog.Logger) ObservabilityServer {
			fake.addr = addr
			fake.ready = ready
			return fake
		},
	}

	_, err := runShellScript(t, deps, "login ana@example.com Abcd123!\nwait\n",
		"--gateway", "memory", "--seed-file", seed, "--metrics-addr", "127.0.0.1:0")
	require.NoError(t, err)

	assert.True(t, fake.started)
	assert.True(t, fake.stopped)
	assert.Equal(t, "127.0.0.1:0", fake.addr)
	assert.True(t, fake.ready(), "ready once the shell is mounted")
}
