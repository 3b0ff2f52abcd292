// SPDX-License-Identifier: MPL-2.0

package config

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"

	"github.com/invowk/relayhook/internal/issue"
)

const (
	// AppName is the application name.
	AppName = "relayhook"
	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = "config"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "cue"
	// EnvPrefix prefixes environment overrides: RELAYHOOK_PEER_HOST sets peer.host.
	EnvPrefix = "RELAYHOOK"
)

//go:embed config_schema.cue
var configSchema string

// ConfigDir returns the relayhook configuration directory using platform-specific
// conventions: Windows uses %APPDATA%, macOS uses ~/Library/Application Support,
// and Linux/others use $XDG_CONFIG_HOME (defaulting to ~/.config).
//
//nolint:revive // ConfigDir is more descriptive than Dir for external callers
func ConfigDir() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "windows":
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, "Library", "Application Support")
	default: // Linux and others
		configDir = os.Getenv("XDG_CONFIG_HOME")
		if configDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			configDir = filepath.Join(home, ".config")
		}
	}

	return filepath.Join(configDir, AppName), nil
}

// FilePath returns the config file that Load would read for opts, and
// whether it exists.
func FilePath(opts LoadOptions) (string, bool, error) {
	if opts.ConfigFilePath != "" {
		return opts.ConfigFilePath, fileExists(opts.ConfigFilePath), nil
	}
	cfgDir, err := configDirWithOverride(opts.ConfigDirPath)
	if err != nil {
		return "", false, err
	}
	cuePath := filepath.Join(cfgDir, ConfigFileName+"."+ConfigFileExt)
	if fileExists(cuePath) {
		return cuePath, true, nil
	}
	localPath := filepath.Join(opts.WorkDir, ConfigFileName+"."+ConfigFileExt)
	if fileExists(localPath) {
		return localPath, true, nil
	}
	return cuePath, false, nil
}

// loadWithOptions performs option-driven config loading without mutating
// package-level state.
func loadWithOptions(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	v := viper.New()
	setDefaults(v, DefaultConfig())
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// A file named with --config must exist; the searched locations are optional.
	if opts.ConfigFilePath != "" && !fileExists(opts.ConfigFilePath) {
		return nil, "", issue.NewErrorContext().
			WithOperation("load configuration").
			WithResource(opts.ConfigFilePath).
			WithSuggestion("Verify the file path is correct").
			WithSuggestion("Use 'relayhook config show' to see the default configuration").
			Wrap(fmt.Errorf("config file not found: %s", opts.ConfigFilePath)).
			WithIssue(issue.ConfigLoadFailedId).
			BuildError()
	}

	resolvedPath, found, err := FilePath(opts)
	if err != nil {
		return nil, "", err
	}
	if !found {
		resolvedPath = ""
	} else if err := loadCUEIntoViper(v, resolvedPath); err != nil {
		return nil, "", issue.NewErrorContext().
			WithOperation("load configuration").
			WithResource(resolvedPath).
			WithSuggestion("Check that the file contains valid CUE syntax").
			WithSuggestion("Verify the configuration values match the expected schema").
			WithSuggestion("See 'relayhook config --help' for configuration options").
			Wrap(err).
			WithIssue(issue.ConfigLoadFailedId).
			BuildError()
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}

	// Environment overrides bypass the CUE schema, so the typed values are
	// checked again here.
	if valid, errs := cfg.IsValid(); !valid {
		return nil, "", issue.NewErrorContext().
			WithOperation("validate configuration").
			WithResource(resolvedPath).
			WithSuggestion("Check RELAYHOOK_* environment variables for typos").
			Wrap(errs[0]).
			WithIssue(issue.ConfigLoadFailedId).
			BuildError()
	}

	return &cfg, resolvedPath, nil
}

// setDefaults registers every key with viper so environment overrides apply
// to it.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("peer.protocol", d.Peer.Protocol)
	v.SetDefault("peer.host", d.Peer.Host)
	v.SetDefault("peer.branch", d.Peer.Branch)
	v.SetDefault("peer.headers", d.Peer.Headers)
	v.SetDefault("peer.timeout", d.Peer.Timeout)
	v.SetDefault("resolver.root", d.Resolver.Root)
	v.SetDefault("resolver.default_base", d.Resolver.DefaultBase)
	v.SetDefault("resolver.module_dir", d.Resolver.ModuleDir)
	v.SetDefault("resolver.aliases", d.Resolver.Aliases)
	v.SetDefault("loader.executor", d.Loader.Executor)
	v.SetDefault("loader.lenient_transpile", d.Loader.LenientTranspile)
	v.SetDefault("loader.cache_max_entries", d.Loader.CacheMaxEntries)
	v.SetDefault("loader.dispose_grace", d.Loader.DisposeGrace)
	v.SetDefault("loader.host_modules", d.Loader.HostModules)
	v.SetDefault("transpiler.target", d.Transpiler.Target)
	v.SetDefault("transpiler.jsx_factory", d.Transpiler.JSXFactory)
	v.SetDefault("transpiler.jsx_fragment", d.Transpiler.JSXFragment)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("telemetry.otlp_endpoint", d.Telemetry.OTLPEndpoint)
	v.SetDefault("telemetry.service_name", d.Telemetry.ServiceName)
	v.SetDefault("telemetry.insecure", d.Telemetry.Insecure)
	v.SetDefault("ui.color_scheme", d.UI.ColorScheme)
	v.SetDefault("ui.verbose", d.UI.Verbose)
}

// configDirWithOverride resolves the configuration directory, honoring
// explicit provider options before platform defaults.
func configDirWithOverride(configDirPath string) (string, error) {
	if configDirPath != "" {
		return configDirPath, nil
	}
	return ConfigDir()
}

// loadCUEIntoViper parses a CUE file, validates it against the #Config schema,
// and merges its contents into Viper.
func loadCUEIntoViper(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := checkFileSize(data, maxConfigFileSize, path); err != nil {
		return err
	}

	configMap, err := decodeCUE(data, path)
	if err != nil {
		return err
	}

	// Merge into Viper (preserves defaults, allows env overrides)
	if err := v.MergeConfigMap(configMap); err != nil {
		return fmt.Errorf("failed to merge config: %w", err)
	}
	return nil
}

// decodeCUE validates data against #Config and decodes it to a map.
// Concrete(false) because every field is optional.
func decodeCUE(data []byte, path string) (map[string]any, error) {
	ctx := cuecontext.New()

	schemaValue := ctx.CompileString(configSchema)
	if schemaValue.Err() != nil {
		return nil, fmt.Errorf("internal error: failed to compile config schema: %w", schemaValue.Err())
	}

	userValue := ctx.CompileBytes(data, cue.Filename(path))
	if userValue.Err() != nil {
		return nil, formatCUEError(userValue.Err(), path)
	}

	schema := schemaValue.LookupPath(cue.ParsePath("#Config"))
	unified := schema.Unify(userValue)
	if err := unified.Validate(cue.Concrete(false)); err != nil {
		return nil, formatCUEError(err, path)
	}

	var configMap map[string]any
	if err := unified.Decode(&configMap); err != nil {
		return nil, formatCUEError(err, path)
	}
	return configMap, nil
}

// fileExists checks if a file exists and is not a directory
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false
	}
	return err == nil && !info.IsDir()
}

// CreateDefaultConfig writes the default configuration to path unless a file
// already exists there. It reports whether a file was written.
func CreateDefaultConfig(path string) (bool, error) {
	if fileExists(path) {
		return false, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(GenerateCUE(DefaultConfig())), 0o644); err != nil {
		return false, fmt.Errorf("failed to write config file: %w", err)
	}
	return true, nil
}

// GenerateCUE generates a CUE representation of the configuration
func GenerateCUE(cfg *Config) string {
	var sb strings.Builder

	sb.WriteString("// relayhook configuration file\n\n")

	sb.WriteString("peer: {\n")
	fmt.Fprintf(&sb, "\tprotocol: %q\n", cfg.Peer.Protocol)
	fmt.Fprintf(&sb, "\thost: %q\n", cfg.Peer.Host)
	if cfg.Peer.Branch != "" {
		fmt.Fprintf(&sb, "\tbranch: %q\n", cfg.Peer.Branch)
	}
	writeCUEMap(&sb, "\t", "headers", cfg.Peer.Headers)
	fmt.Fprintf(&sb, "\ttimeout: %q\n", cfg.Peer.Timeout.String())
	sb.WriteString("}\n")

	sb.WriteString("\nresolver: {\n")
	fmt.Fprintf(&sb, "\troot: %q\n", cfg.Resolver.Root)
	fmt.Fprintf(&sb, "\tdefault_base: %q\n", cfg.Resolver.DefaultBase)
	fmt.Fprintf(&sb, "\tmodule_dir: %q\n", cfg.Resolver.ModuleDir)
	writeCUEMap(&sb, "\t", "aliases", cfg.Resolver.Aliases)
	sb.WriteString("}\n")

	sb.WriteString("\nloader: {\n")
	fmt.Fprintf(&sb, "\texecutor: %q\n", cfg.Loader.Executor)
	fmt.Fprintf(&sb, "\tlenient_transpile: %v\n", cfg.Loader.LenientTranspile)
	fmt.Fprintf(&sb, "\tcache_max_entries: %d\n", cfg.Loader.CacheMaxEntries)
	fmt.Fprintf(&sb, "\tdispose_grace: %q\n", cfg.Loader.DisposeGrace.String())
	sb.WriteString("\thost_modules: [")
	for i, m := range cfg.Loader.HostModules {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%q", m)
	}
	sb.WriteString("]\n")
	sb.WriteString("}\n")

	sb.WriteString("\ntranspiler: {\n")
	fmt.Fprintf(&sb, "\ttarget: %q\n", cfg.Transpiler.Target)
	fmt.Fprintf(&sb, "\tjsx_factory: %q\n", cfg.Transpiler.JSXFactory)
	fmt.Fprintf(&sb, "\tjsx_fragment: %q\n", cfg.Transpiler.JSXFragment)
	sb.WriteString("}\n")

	sb.WriteString("\nlog: {\n")
	fmt.Fprintf(&sb, "\tlevel: %q\n", cfg.Log.Level)
	fmt.Fprintf(&sb, "\tformat: %q\n", cfg.Log.Format)
	sb.WriteString("}\n")

	sb.WriteString("\ntelemetry: {\n")
	fmt.Fprintf(&sb, "\totlp_endpoint: %q\n", cfg.Telemetry.OTLPEndpoint)
	fmt.Fprintf(&sb, "\tservice_name: %q\n", cfg.Telemetry.ServiceName)
	fmt.Fprintf(&sb, "\tinsecure: %v\n", cfg.Telemetry.Insecure)
	sb.WriteString("}\n")

	sb.WriteString("\nui: {\n")
	fmt.Fprintf(&sb, "\tcolor_scheme: %q\n", cfg.UI.ColorScheme)
	fmt.Fprintf(&sb, "\tverbose: %v\n", cfg.UI.Verbose)
	sb.WriteString("}\n")

	return sb.String()
}

func writeCUEMap(sb *strings.Builder, indent, name string, m map[string]string) {
	if len(m) == 0 {
		return
	}
	fmt.Fprintf(sb, "%s%s: {\n", indent, name)
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		fmt.Fprintf(sb, "%s\t%q: %q\n", indent, k, m[k])
	}
	fmt.Fprintf(sb, "%s}\n", indent)
}

// EncodeTOML renders cfg as TOML. Durations are written as strings such as
// "30s" rather than nanosecond counts.
func EncodeTOML(cfg *Config) ([]byte, error) {
	type peer struct {
		Protocol Protocol          `toml:"protocol"`
		Host     string            `toml:"host"`
		Branch   string            `toml:"branch"`
		Headers  map[string]string `toml:"headers"`
		Timeout  string            `toml:"timeout"`
	}
	type loader struct {
		Executor         ExecutorName `toml:"executor"`
		LenientTranspile bool         `toml:"lenient_transpile"`
		CacheMaxEntries  int          `toml:"cache_max_entries"`
		DisposeGrace     string       `toml:"dispose_grace"`
		HostModules      []string     `toml:"host_modules"`
	}
	out := struct {
		Peer       peer             `toml:"peer"`
		Resolver   ResolverConfig   `toml:"resolver"`
		Loader     loader           `toml:"loader"`
		Transpiler TranspilerConfig `toml:"transpiler"`
		Log        LogConfig        `toml:"log"`
		Telemetry  TelemetryConfig  `toml:"telemetry"`
		UI         UIConfig         `toml:"ui"`
	}{
		Peer: peer{
			Protocol: cfg.Peer.Protocol,
			Host:     cfg.Peer.Host,
			Branch:   cfg.Peer.Branch,
			Headers:  cfg.Peer.Headers,
			Timeout:  cfg.Peer.Timeout.String(),
		},
		Resolver: cfg.Resolver,
		Loader: loader{
			Executor:         cfg.Loader.Executor,
			LenientTranspile: cfg.Loader.LenientTranspile,
			CacheMaxEntries:  cfg.Loader.CacheMaxEntries,
			DisposeGrace:     cfg.Loader.DisposeGrace.String(),
			HostModules:      cfg.Loader.HostModules,
		},
		Transpiler: cfg.Transpiler,
		Log:        cfg.Log,
		Telemetry:  cfg.Telemetry,
		UI:         cfg.UI,
	}

	var buf bytes.Buffer
	enc := toml.NewEncoder(&buf)
	enc.SetIndentTables(true)
	if err := enc.Encode(out); err != nil {
		return nil, fmt.Errorf("encode config as TOML: %w", err)
	}
	return buf.Bytes(), nil
}
