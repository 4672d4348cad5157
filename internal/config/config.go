// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SAVIKA Contributors

// Package config loads savika configuration.
//
// Values are layered, later layers winning: built-in defaults, the YAML config
// file, SAVIKA_* environment variables, then command-line flags. Nested keys
// are separated by a double underscore in environment variables, so
// SAVIKA_GATEWAY__ANON_KEY sets gateway.anon_key.
package config

import (
	"errors"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/savika/savika/internal/logging"
	"github.com/savika/savika/internal/redirect"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "SAVIKA_"

// Gateway kinds.
const (
	GatewayBaaS   = "baas"
	GatewayMemory = "memory"
)

// Config is the complete savika configuration.
type Config struct {
	Log      LogConfig      `koanf:"log" json:"log,omitempty"`
	Metrics  MetricsConfig  `koanf:"metrics" json:"metrics,omitempty"`
	Gateway  GatewayConfig  `koanf:"gateway" json:"gateway,omitempty"`
	Recovery RecoveryConfig `koanf:"recovery" json:"recovery,omitempty"`
	Profiles ProfilesConfig `koanf:"profiles" json:"profiles,omitempty"`
	Session  SessionConfig  `koanf:"session" json:"session,omitempty"`
}

// LogConfig configures logging.
type LogConfig struct {
	Format string `koanf:"format" json:"format,omitempty" jsonschema:"enum=json,enum=text,description=Log output format"`
	Level  string `koanf:"level" json:"level,omitempty" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
}

// MetricsConfig configures the observability server.
type MetricsConfig struct {
	Addr string `koanf:"addr" json:"addr,omitempty" jsonschema:"description=Listen address for /metrics and health checks; empty disables"`
}

// GatewayConfig selects and configures the authentication provider.
type GatewayConfig struct {
	Kind     string        `koanf:"kind" json:"kind,omitempty" jsonschema:"enum=baas,enum=memory"`
	URL      string        `koanf:"url" json:"url,omitempty" jsonschema:"format=uri,description=Provider base URL"`
	AnonKey  string        `koanf:"anon_key" json:"anon_key,omitempty" jsonschema:"description=Public anonymous API key"`
	Timeout  time.Duration `koanf:"timeout" json:"timeout,omitempty"`
	Retry    RetryConfig   `koanf:"retry" json:"retry,omitempty"`
	SeedFile string        `koanf:"seed_file" json:"seed_file,omitempty" jsonschema:"description=YAML accounts loaded into the memory provider"`
}

// RetryConfig tunes provider retries.
type RetryConfig struct {
	Attempts  uint64        `koanf:"attempts" json:"attempts,omitempty" jsonschema:"maximum=10"`
	BaseDelay time.Duration `koanf:"base_delay" json:"base_delay,omitempty"`
}

// RecoveryConfig configures password recovery.
type RecoveryConfig struct {
	RedirectTo       string   `koanf:"redirect_to" json:"redirect_to,omitempty" jsonschema:"description=Where the recovery email links back to"`
	AllowedRedirects []string `koanf:"allowed_redirects" json:"allowed_redirects,omitempty" jsonschema:"description=Glob patterns redirect_to must match"`
}

// ProfilesConfig configures the profile directory.
type ProfilesConfig struct {
	DatabaseURL string `koanf:"database_url" json:"database_url,omitempty" jsonschema:"description=PostgreSQL URL; empty keeps profiles in memory"`
}

// SessionConfig configures session persistence.
type SessionConfig struct {
	File string `koanf:"file" json:"file,omitempty" jsonschema:"description=Session file; empty uses the XDG state directory"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Log:     LogConfig{Format: "text", Level: "info"},
		Gateway: GatewayConfig{
			Kind:    GatewayBaaS,
			Timeout: 10 * time.Second,
			Retry:   RetryConfig{Attempts: 2, BaseDelay: 200 * time.Millisecond},
		},
	}
}

// FlagKeys maps command-line flag names to config keys. Flags not listed here
// are ignored by Load.
var FlagKeys = map[string]string{
	"log-format":   "log.format",
	"log-level":    "log.level",
	"metrics-addr": "metrics.addr",
	"gateway":      "gateway.kind",
	"gateway-url":  "gateway.url",
	"seed-file":    "gateway.seed_file",
	"database-url": "profiles.database_url",
	"session-file": "session.file",
	"redirect-to":  "recovery.redirect_to",
}

// Source describes where Load reads from.
type Source struct {
	// File is the YAML config path. A missing file is only an error when
	// Required is set.
	File     string
	Required bool
	// Flags are applied last; only changed flags listed in FlagKeys count.
	Flags *pflag.FlagSet
}

// Load builds a Config from defaults and src.
func Load(src Source) (Config, error) {
	k := koanf.New(".")

	if src.File != "" {
		_, statErr := os.Stat(src.File)
		switch {
		case statErr == nil:
			if err := k.Load(file.Provider(src.File), yaml.Parser()); err != nil {
				return Config{}, oops.Code("CONFIG_LOAD_FAILED").With("file", src.File).Wrap(err)
			}
		case errors.Is(statErr, fs.ErrNotExist) && !src.Required:
		default:
			return Config{}, oops.Code("CONFIG_LOAD_FAILED").With("file", src.File).Wrap(statErr)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return Config{}, oops.Code("CONFIG_LOAD_FAILED").With("source", "env").Wrap(err)
	}

	if src.Flags != nil {
		provider := posflag.ProviderWithFlag(src.Flags, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := FlagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, posflag.FlagVal(src.Flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return Config{}, oops.Code("CONFIG_LOAD_FAILED").With("source", "flags").Wrap(err)
		}
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, oops.Code("CONFIG_INVALID").Wrap(err)
	}
	return cfg, nil
}

// envKey maps SAVIKA_GATEWAY__ANON_KEY to gateway.anon_key.
func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
}

// Validate checks cross-field constraints.
func (c Config) Validate() error {
	var errs []error
	if !logging.ValidFormat(c.Log.Format) {
		errs = append(errs, oops.With("field", "log.format").Errorf("log.format must be json or text, got %q", c.Log.Format))
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, oops.With("field", "log.level").Errorf("log.level %q is not a known level", c.Log.Level))
	}

	switch c.Gateway.Kind {
	case GatewayBaaS:
		if c.Gateway.URL == "" {
			errs = append(errs, oops.With("field", "gateway.url").Errorf("gateway.url is required for the baas gateway"))
		}
		if c.Gateway.AnonKey == "" {
			errs = append(errs, oops.With("field", "gateway.anon_key").Errorf("gateway.anon_key is required for the baas gateway"))
		}
	case GatewayMemory:
	default:
		errs = append(errs, oops.With("field", "gateway.kind").Errorf("gateway.kind must be baas or memory, got %q", c.Gateway.Kind))
	}
	if c.Gateway.Timeout < 0 || c.Gateway.Retry.BaseDelay < 0 {
		errs = append(errs, oops.With("field", "gateway").Errorf("gateway durations must not be negative"))
	}

	policy, err := redirect.NewPolicy(c.Recovery.AllowedRedirects)
	switch {
	case err != nil:
		errs = append(errs, err)
	case c.Recovery.RedirectTo != "" && !policy.Allowed(c.Recovery.RedirectTo):
		errs = append(errs, oops.With("field", "recovery.redirect_to").
			Errorf("recovery.redirect_to %q does not match recovery.allowed_redirects", c.Recovery.RedirectTo))
	}

	if err := errors.Join(errs...); err != nil {
		return oops.Code("CONFIG_INVALID").Hint("run 'savika config validate' on the config file").Wrap(err)
	}
	return nil
}

// RedirectPolicy compiles the recovery redirect allow-list.
func (c Config) RedirectPolicy() (*redirect.Policy, error) {
	return redirect.NewPolicy(c.Recovery.AllowedRedirects)
}
