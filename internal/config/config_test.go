// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/pelletier/go-toml/v2"

	"github.com/invowk/relayhook/internal/issue"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, ConfigFileName+"."+ConfigFileExt)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

// isolated returns options that never see the user's real configuration.
func isolated(t *testing.T) LoadOptions {
	t.Helper()
	return LoadOptions{ConfigDirPath: t.TempDir(), WorkDir: t.TempDir()}
}

func TestDefaultConfig(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()

	if cfg.Peer.Protocol != ProtocolHTTP {
		t.Errorf("default protocol = %s, want http", cfg.Peer.Protocol)
	}
	if cfg.Loader.Executor != ExecutorFunction {
		t.Errorf("default executor = %s, want function", cfg.Loader.Executor)
	}
	if cfg.Loader.CacheMaxEntries != 0 {
		t.Errorf("cache should be unbounded by default, got %d", cfg.Loader.CacheMaxEntries)
	}
	if cfg.Loader.LenientTranspile {
		t.Error("lenient transpile should be off by default")
	}
	if cfg.Transpiler.Target != "es2017" {
		t.Errorf("default target = %s", cfg.Transpiler.Target)
	}
	if valid, errs := cfg.IsValid(); !valid {
		t.Errorf("defaults should validate: %v", errs)
	}
}

func TestConfigDir(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
	t.Setenv("APPDATA", `C:\AppData`)
	t.Setenv("HOME", "/tmp/home")

	dir, err := ConfigDir()
	if err != nil {
		t.Fatalf("ConfigDir() returned error: %v", err)
	}
	if filepath.Base(dir) != AppName {
		t.Errorf("ConfigDir() = %s, should end in %s", dir, AppName)
	}
}

func TestLoad_ReturnsDefaultsWhenNoConfigFile(t *testing.T) {
	t.Parallel()

	cfg, path, err := NewProvider().Load(t.Context(), isolated(t))
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if path != "" {
		t.Errorf("path = %q, want empty when only defaults apply", path)
	}
	if diff := cmp.Diff(DefaultConfig(), cfg, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_SearchOrder(t *testing.T) {
	t.Parallel()
	opts := isolated(t)

	local := writeConfig(t, opts.WorkDir, `peer: host: "local.example"`)
	cfg, path, err := NewProvider().Load(t.Context(), opts)
	if err != nil {
		t.Fatal(err)
	}
	if path != local || cfg.Peer.Host != "local.example" {
		t.Errorf("working directory config not used: path=%s host=%s", path, cfg.Peer.Host)
	}

	user := writeConfig(t, opts.ConfigDirPath, `peer: host: "user.example"`)
	cfg, path, err = NewProvider().Load(t.Context(), opts)
	if err != nil {
		t.Fatal(err)
	}
	if path != user || cfg.Peer.Host != "user.example" {
		t.Errorf("config directory should take precedence: path=%s host=%s", path, cfg.Peer.Host)
	}
}

func TestLoad_CustomPath_Valid(t *testing.T) {
	t.Parallel()
	opts := isolated(t)
	opts.ConfigFilePath = filepath.Join(t.TempDir(), "custom.cue")
	content := `
peer: {
	protocol: "https"
	host:     "peer.example"
	branch:   "feature/x"
	headers: "x-repo": "demo"
	timeout: "5s"
}
resolver: aliases: "@ui": "/hooks/ui"
loader: {
	executor:          "require"
	lenient_transpile: true
	cache_max_entries: 64
	dispose_grace:     "250ms"
}
transpiler: target: "es2020"
`
	if err := os.WriteFile(opts.ConfigFilePath, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, path, err := NewProvider().Load(t.Context(), opts)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if path != opts.ConfigFilePath {
		t.Errorf("path = %s, want %s", path, opts.ConfigFilePath)
	}

	want := DefaultConfig()
	want.Peer = PeerConfig{
		Protocol: ProtocolHTTPS,
		Host:     "peer.example",
		Branch:   "feature/x",
		Headers:  map[string]string{"x-repo": "demo"},
		Timeout:  5 * time.Second,
	}
	want.Resolver.Aliases = map[string]string{"@ui": "/hooks/ui"}
	want.Loader.Executor = ExecutorRequire
	want.Loader.LenientTranspile = true
	want.Loader.CacheMaxEntries = 64
	want.Loader.DisposeGrace = 250 * time.Millisecond
	want.Transpiler.Target = "es2020"
	if diff := cmp.Diff(want, cfg, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_CustomPath_NotFound_ReturnsError(t *testing.T) {
	t.Parallel()
	opts := isolated(t)
	opts.ConfigFilePath = "/this/path/does/not/exist/config.cue"

	_, _, err := NewProvider().Load(t.Context(), opts)
	if err == nil {
		t.Fatal("expected error for non-existent config file")
	}
	for _, want := range []string{"load configuration", opts.ConfigFilePath, "config file not found"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error should contain %q, got: %s", want, err)
		}
	}

	var ae *issue.ActionableError
	if !errors.As(err, &ae) {
		t.Fatal("expected error to be *issue.ActionableError")
	}
	if got := issue.IssueOf(err); got != issue.ConfigLoadFailedId {
		t.Errorf("IssueOf() = %v, want config-load-failed", got)
	}
	if !ae.HasSuggestions() {
		t.Error("expected ActionableError to have suggestions")
	}
}

func TestLoad_SchemaViolations(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		want    string
	}{
		{name: "syntax", content: "peer: {", want: "config.cue"},
		{name: "unknown executor", content: `loader: executor: "eval"`, want: "loader.executor"},
		{name: "unknown field", content: `peer: port: 80`, want: "peer.port"},
		{name: "bad duration", content: `peer: timeout: "soon"`, want: "peer.timeout"},
		{name: "relative alias", content: `resolver: aliases: "@ui": "ui"`, want: "resolver.aliases"},
		{name: "negative cache", content: `loader: cache_max_entries: -1`, want: "loader.cache_max_entries"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			opts := isolated(t)
			writeConfig(t, opts.ConfigDirPath, tt.content)

			_, _, err := NewProvider().Load(t.Context(), opts)
			if err == nil {
				t.Fatal("expected a validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error should mention %q, got: %v", tt.want, err)
			}
			var ae *issue.ActionableError
			if !errors.As(err, &ae) || ae.Operation != "load configuration" {
				t.Errorf("expected an actionable load error, got %T", err)
			}
		})
	}
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	opts := isolated(t)
	writeConfig(t, opts.ConfigDirPath, `peer: host: "file.example"`)
	t.Setenv("RELAYHOOK_PEER_HOST", "env.example")
	t.Setenv("RELAYHOOK_LOADER_CACHE_MAX_ENTRIES", "8")

	cfg, _, err := NewProvider().Load(t.Context(), opts)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Peer.Host != "env.example" {
		t.Errorf("peer.host = %s, want the environment value", cfg.Peer.Host)
	}
	if cfg.Loader.CacheMaxEntries != 8 {
		t.Errorf("loader.cache_max_entries = %d, want 8", cfg.Loader.CacheMaxEntries)
	}
}

func TestLoad_InvalidEnvironmentOverride(t *testing.T) {
	opts := isolated(t)
	t.Setenv("RELAYHOOK_LOADER_EXECUTOR", "eval")

	_, _, err := NewProvider().Load(t.Context(), opts)
	if !errors.Is(err, ErrInvalidExecutorName) {
		t.Errorf("expected ErrInvalidExecutorName, got %v", err)
	}
}

func TestLoad_Canceled(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	if _, _, err := NewProvider().Load(ctx, isolated(t)); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestGenerateCUE_RoundTrips(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	cfg.Peer.Host = "peer.example"
	cfg.Peer.Headers = map[string]string{"x-b": "2", "x-a": "1"}
	cfg.Resolver.Aliases = map[string]string{"@ui": "/hooks/ui/"}
	cfg.Loader.HostModules = []string{"@relay/hook-runtime", "@relay/extra"}

	opts := isolated(t)
	writeConfig(t, opts.ConfigDirPath, GenerateCUE(cfg))

	got, _, err := NewProvider().Load(t.Context(), opts)
	if err != nil {
		t.Fatalf("generated CUE should load: %v", err)
	}
	if diff := cmp.Diff(cfg, got, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestCreateDefaultConfig(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "nested", "config.cue")

	written, err := CreateDefaultConfig(path)
	if err != nil || !written {
		t.Fatalf("CreateDefaultConfig() = %v, %v", written, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `executor: "function"`) {
		t.Errorf("default file missing executor:\n%s", data)
	}

	written, err = CreateDefaultConfig(path)
	if err != nil || written {
		t.Errorf("existing file must not be overwritten: %v, %v", written, err)
	}
}

func TestFilePath(t *testing.T) {
	t.Parallel()
	opts := isolated(t)

	path, found, err := FilePath(opts)
	if err != nil {
		t.Fatal(err)
	}
	if found || path != filepath.Join(opts.ConfigDirPath, "config.cue") {
		t.Errorf("FilePath() = %s, %v", path, found)
	}
}

func TestEncodeTOML(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	cfg.Peer.Host = "peer.example"

	data, err := EncodeTOML(cfg)
	if err != nil {
		t.Fatal(err)
	}

	var decoded map[string]map[string]any
	if err := toml.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("output is not valid TOML: %v\n%s", err, data)
	}
	if decoded["peer"]["host"] != "peer.example" || decoded["peer"]["timeout"] != "30s" {
		t.Errorf("peer table = %v", decoded["peer"])
	}
	if decoded["loader"]["dispose_grace"] != "1s" {
		t.Errorf("loader table = %v", decoded["loader"])
	}
}

func TestFormatPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path []string
		want string
	}{
		{nil, ""},
		{[]string{"peer"}, "peer"},
		{[]string{"#Config", "loader", "executor"}, "loader.executor"},
		{[]string{"loader", "host_modules", "0"}, "loader.host_modules[0]"},
	}
	for _, tt := range tests {
		if got := formatPath(tt.path); got != tt.want {
			t.Errorf("formatPath(%v) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestCheckFileSize(t *testing.T) {
	t.Parallel()
	if err := checkFileSize(make([]byte, 100), 100, "config.cue"); err != nil {
		t.Errorf("data at the limit should pass: %v", err)
	}
	err := checkFileSize(make([]byte, 101), 100, "config.cue")
	if err == nil || !strings.Contains(err.Error(), "101") {
		t.Errorf("expected size error, got %v", err)
	}
}
