// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"testing"
	"time"
)

func TestProtocol_IsValid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		protocol Protocol
		want     bool
	}{
		{ProtocolHTTP, true},
		{ProtocolHTTPS, true},
		{"", false},
		{"ftp", false},
		{"HTTP", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.protocol), func(t *testing.T) {
			t.Parallel()
			isValid, errs := tt.protocol.IsValid()
			if isValid != tt.want {
				t.Errorf("Protocol(%q).IsValid() = %v, want %v", tt.protocol, isValid, tt.want)
			}
			if !tt.want && (len(errs) == 0 || !errors.Is(errs[0], ErrInvalidProtocol)) {
				t.Errorf("error should wrap ErrInvalidProtocol, got: %v", errs)
			}
		})
	}
}

func TestExecutorName_IsValid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name ExecutorName
		want bool
	}{
		{ExecutorFunction, true},
		{ExecutorRequire, true},
		{"", false},
		{"eval", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.name), func(t *testing.T) {
			t.Parallel()
			isValid, errs := tt.name.IsValid()
			if isValid != tt.want {
				t.Errorf("ExecutorName(%q).IsValid() = %v, want %v", tt.name, isValid, tt.want)
			}
			if !tt.want && (len(errs) == 0 || !errors.Is(errs[0], ErrInvalidExecutorName)) {
				t.Errorf("error should wrap ErrInvalidExecutorName, got: %v", errs)
			}
		})
	}
}

func TestLogSettings_IsValid(t *testing.T) {
	t.Parallel()

	for _, l := range []LogLevel{LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError} {
		if ok, errs := l.IsValid(); !ok {
			t.Errorf("LogLevel(%q) should be valid: %v", l, errs)
		}
	}
	if _, errs := LogLevel("trace").IsValid(); len(errs) == 0 || !errors.Is(errs[0], ErrInvalidLogLevel) {
		t.Errorf("trace should wrap ErrInvalidLogLevel, got %v", errs)
	}

	for _, f := range []LogFormat{LogFormatText, LogFormatJSON, LogFormatLogfmt} {
		if ok, errs := f.IsValid(); !ok {
			t.Errorf("LogFormat(%q) should be valid: %v", f, errs)
		}
	}
	if _, errs := LogFormat("xml").IsValid(); len(errs) == 0 || !errors.Is(errs[0], ErrInvalidLogFormat) {
		t.Errorf("xml should wrap ErrInvalidLogFormat, got %v", errs)
	}
}

func TestColorScheme_IsValid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		scheme ColorScheme
		want   bool
	}{
		{ColorSchemeAuto, true},
		{ColorSchemeDark, true},
		{ColorSchemeLight, true},
		{"", false},
		{"blue", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.scheme), func(t *testing.T) {
			t.Parallel()
			isValid, errs := tt.scheme.IsValid()
			if isValid != tt.want {
				t.Errorf("ColorScheme(%q).IsValid() = %v, want %v", tt.scheme, isValid, tt.want)
			}
			if !tt.want && !errors.Is(errs[0], ErrInvalidColorScheme) {
				t.Errorf("error should wrap ErrInvalidColorScheme, got: %v", errs[0])
			}
		})
	}
}

func TestConfig_IsValid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		mutate   func(*Config)
		sentinel error
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{
			name:     "bad protocol",
			mutate:   func(c *Config) { c.Peer.Protocol = "gopher" },
			sentinel: ErrInvalidPeerConfig,
		},
		{
			name:     "negative timeout",
			mutate:   func(c *Config) { c.Peer.Timeout = -time.Second },
			sentinel: ErrInvalidPeerConfig,
		},
		{
			name:     "relative root",
			mutate:   func(c *Config) { c.Resolver.Root = "hooks" },
			sentinel: ErrInvalidAbsolutePath,
		},
		{
			name:     "relative alias",
			mutate:   func(c *Config) { c.Resolver.Aliases = map[string]string{"@ui": "ui"} },
			sentinel: ErrInvalidAbsolutePath,
		},
		{
			name:     "unknown executor",
			mutate:   func(c *Config) { c.Loader.Executor = "eval" },
			sentinel: ErrInvalidLoaderConfig,
		},
		{
			name:     "negative cache size",
			mutate:   func(c *Config) { c.Loader.CacheMaxEntries = -1 },
			sentinel: ErrInvalidLoaderConfig,
		},
		{
			name:     "bad log level",
			mutate:   func(c *Config) { c.Log.Level = "loud" },
			sentinel: ErrInvalidLogLevel,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := DefaultConfig()
			tt.mutate(cfg)

			valid, errs := cfg.IsValid()
			if tt.sentinel == nil {
				if !valid {
					t.Fatalf("expected valid config, got %v", errs)
				}
				return
			}
			if valid {
				t.Fatal("expected invalid config")
			}
			var ice *InvalidConfigError
			if !errors.As(errs[0], &ice) || !errors.Is(errs[0], ErrInvalidConfig) {
				t.Fatalf("expected *InvalidConfigError, got %T", errs[0])
			}
			found := false
			for _, fe := range ice.FieldErrors {
				if errors.Is(fe, tt.sentinel) {
					found = true
				}
			}
			if !found {
				t.Errorf("field errors %v do not wrap %v", ice.FieldErrors, tt.sentinel)
			}
		})
	}
}
