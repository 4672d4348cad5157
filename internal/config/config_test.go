// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SAVIKA Contributors

package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/savika/savika/internal/config"
	"github.com/savika/savika/pkg/errutil"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const sampleConfig = `
log:
  format: json
gateway:
  kind: baas
  url: https://project.example.co
  anon_key: file-key
  timeout: 3s
  retry:
    attempts: 4
    base_delay: 50ms
recovery:
  redirect_to: https://app.example.com/reset
  allowed_redirects:
    - https://app.example.com/**
`

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load(config.Source{})
	require.NoError(t, err)

	assert.Equal(t, config.Default(), cfg)
}

func TestLoad_File(t *testing.T) {
	cfg, err := config.Load(config.Source{File: writeFile(t, sampleConfig)})
	require.NoError(t, err)

	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "info", cfg.Log.Level, "unset keys keep their defaults")
	assert.Equal(t, "https://project.example.co", cfg.Gateway.URL)
	assert.Equal(t, 3*time.Second, cfg.Gateway.Timeout)
	assert.Equal(t, uint64(4), cfg.Gateway.Retry.Attempts)
	assert.Equal(t, 50*time.Millisecond, cfg.Gateway.Retry.BaseDelay)
	assert.Equal(t, []string{"https://app.example.com/**"}, cfg.Recovery.AllowedRedirects)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_MissingFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.yaml")

	_, err := config.Load(config.Source{File: missing})
	assert.NoError(t, err)

	_, err = config.Load(config.Source{File: missing, Required: true})
	errutil.AssertErrorCode(t, err, "CONFIG_LOAD_FAILED")
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv("SAVIKA_GATEWAY__ANON_KEY", "env-key")
	t.Setenv("SAVIKA_LOG__LEVEL", "debug")

	cfg, err := config.Load(config.Source{File: writeFile(t, sampleConfig)})
	require.NoError(t, err)

	assert.Equal(t, "env-key", cfg.Gateway.AnonKey)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_FlagsOverrideEverything(t *testing.T) {
	t.Setenv("SAVIKA_GATEWAY__KIND", "baas")
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("gateway", "baas", "")
	flags.String("log-format", "text", "")
	flags.String("unrelated", "x", "")
	require.NoError(t, flags.Parse([]string{"--gateway", "memory", "--unrelated", "y"}))

	cfg, err := config.Load(config.Source{File: writeFile(t, sampleConfig), Flags: flags})
	require.NoError(t, err)

	assert.Equal(t, config.GatewayMemory, cfg.Gateway.Kind)
	assert.Equal(t, "json", cfg.Log.Format, "unchanged flags do not override the file")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*config.Config)
		wantErr string
	}{
		{"baas needs url", func(c *config.Config) { c.Gateway.URL = "" }, "gateway.url is required"},
		{"baas needs key", func(c *config.Config) { c.Gateway.AnonKey = "" }, "gateway.anon_key is required"},
		{"unknown gateway", func(c *config.Config) { c.Gateway.Kind = "ldap" }, "gateway.kind must be baas or memory"},
		{"bad log format", func(c *config.Config) { c.Log.Format = "xml" }, "log.format must be json or text"},
		{"bad log level", func(c *config.Config) { c.Log.Level = "loud" }, "log.level"},
		{"redirect outside allow-list", func(c *config.Config) {
			c.Recovery.RedirectTo = "https://evil.example.net/"
			c.Recovery.AllowedRedirects = []string{"https://app.example.com/**"}
		}, "does not match recovery.allowed_redirects"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Gateway.URL = "https://project.example.co"
			cfg.Gateway.AnonKey = "key"
			tt.modify(&cfg)

			err := cfg.Validate()

			errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate_MemoryGatewayNeedsNoCredentials(t *testing.T) {
	cfg := config.Default()
	cfg.Gateway.Kind = config.GatewayMemory

	assert.NoError(t, cfg.Validate())
}
