// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	// ProtocolHTTP fetches modules over plain HTTP.
	ProtocolHTTP Protocol = "http"
	// ProtocolHTTPS fetches modules over TLS.
	ProtocolHTTPS Protocol = "https"

	// ExecutorFunction evaluates modules as wrapped functions.
	// Defined locally to avoid coupling config to internal/runtime.
	ExecutorFunction ExecutorName = "function"
	// ExecutorRequire evaluates modules through the engine's native require.
	ExecutorRequire ExecutorName = "require"

	// LogLevelDebug logs everything including per-module steps.
	LogLevelDebug LogLevel = "debug"
	// LogLevelInfo is the default level.
	LogLevelInfo LogLevel = "info"
	// LogLevelWarn logs degradations and failures.
	LogLevelWarn LogLevel = "warn"
	// LogLevelError logs failures only.
	LogLevelError LogLevel = "error"

	// LogFormatText is human-readable output.
	LogFormatText LogFormat = "text"
	// LogFormatJSON emits one JSON object per line.
	LogFormatJSON LogFormat = "json"
	// LogFormatLogfmt emits key=value pairs.
	LogFormatLogfmt LogFormat = "logfmt"

	// ColorSchemeAuto detects the terminal color scheme automatically.
	ColorSchemeAuto ColorScheme = "auto"
	// ColorSchemeDark forces dark color scheme.
	ColorSchemeDark ColorScheme = "dark"
	// ColorSchemeLight forces light color scheme.
	ColorSchemeLight ColorScheme = "light"
)

var (
	// ErrInvalidProtocol is returned when a Protocol value is not recognized.
	ErrInvalidProtocol = errors.New("invalid protocol")
	// ErrInvalidExecutorName is returned when an ExecutorName value is not recognized.
	ErrInvalidExecutorName = errors.New("invalid executor")
	// ErrInvalidLogLevel is returned when a LogLevel value is not recognized.
	ErrInvalidLogLevel = errors.New("invalid log level")
	// ErrInvalidLogFormat is returned when a LogFormat value is not recognized.
	ErrInvalidLogFormat = errors.New("invalid log format")
	// ErrInvalidColorScheme is returned when a ColorScheme value is not recognized.
	ErrInvalidColorScheme = errors.New("invalid color scheme")
	// ErrInvalidAbsolutePath is returned when a resolver directory is not absolute.
	ErrInvalidAbsolutePath = errors.New("invalid absolute path")
	// ErrInvalidPeerConfig is the sentinel error wrapped by InvalidPeerConfigError.
	ErrInvalidPeerConfig = errors.New("invalid peer config")
	// ErrInvalidLoaderConfig is the sentinel error wrapped by InvalidLoaderConfigError.
	ErrInvalidLoaderConfig = errors.New("invalid loader config")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
)

type (
	// Protocol is the scheme used to fetch modules from the peer.
	Protocol string

	// InvalidProtocolError is returned when a Protocol value is not recognized.
	// It wraps ErrInvalidProtocol for errors.Is() compatibility.
	InvalidProtocolError struct {
		Value Protocol
	}

	// ExecutorName selects the module executor variant.
	ExecutorName string

	// InvalidExecutorNameError is returned when an ExecutorName value is not recognized.
	// It wraps ErrInvalidExecutorName for errors.Is() compatibility.
	InvalidExecutorNameError struct {
		Value ExecutorName
	}

	// LogLevel is the minimum level of the CLI logger.
	LogLevel string

	// InvalidLogLevelError is returned when a LogLevel value is not recognized.
	InvalidLogLevelError struct {
		Value LogLevel
	}

	// LogFormat is the output format of the CLI logger.
	LogFormat string

	// InvalidLogFormatError is returned when a LogFormat value is not recognized.
	InvalidLogFormatError struct {
		Value LogFormat
	}

	// ColorScheme specifies the terminal color scheme preference.
	ColorScheme string

	// InvalidColorSchemeError is returned when a ColorScheme value is not recognized.
	// It wraps ErrInvalidColorScheme for errors.Is() compatibility.
	InvalidColorSchemeError struct {
		Value ColorScheme
	}

	// AbsolutePath is a canonical module path such as "/hooks".
	// The zero value is valid and selects the built-in default.
	AbsolutePath string

	// InvalidAbsolutePathError is returned when an AbsolutePath does not start with "/".
	InvalidAbsolutePathError struct {
		Field string
		Value AbsolutePath
	}

	// InvalidPeerConfigError is returned when a PeerConfig has invalid fields.
	// It wraps ErrInvalidPeerConfig for errors.Is() compatibility and collects
	// field-level validation errors.
	InvalidPeerConfigError struct {
		FieldErrors []error
	}

	// InvalidLoaderConfigError is returned when a LoaderConfig has invalid fields.
	InvalidLoaderConfigError struct {
		FieldErrors []error
	}

	// InvalidConfigError is returned when a Config has invalid fields.
	// It wraps ErrInvalidConfig for errors.Is() compatibility and collects
	// field-level validation errors from all sub-components.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// Config holds the application configuration.
	Config struct {
		// Peer configures where modules are fetched from.
		Peer PeerConfig `json:"peer" mapstructure:"peer" toml:"peer"`
		// Resolver configures specifier resolution.
		Resolver ResolverConfig `json:"resolver" mapstructure:"resolver" toml:"resolver"`
		// Loader configures caching and execution.
		Loader LoaderConfig `json:"loader" mapstructure:"loader" toml:"loader"`
		// Transpiler configures the JSX/TypeScript transform.
		Transpiler TranspilerConfig `json:"transpiler" mapstructure:"transpiler" toml:"transpiler"`
		// Log configures the CLI logger.
		Log LogConfig `json:"log" mapstructure:"log" toml:"log"`
		// Telemetry configures OTLP trace export.
		Telemetry TelemetryConfig `json:"telemetry" mapstructure:"telemetry" toml:"telemetry"`
		// UI configures the user interface
		UI UIConfig `json:"ui" mapstructure:"ui" toml:"ui"`
	}

	// PeerConfig configures the module peer.
	PeerConfig struct {
		Protocol Protocol `json:"protocol" mapstructure:"protocol" toml:"protocol"`
		Host     string   `json:"host" mapstructure:"host" toml:"host"`
		// Branch is sent as X-Relay-Branch when set.
		Branch  string            `json:"branch" mapstructure:"branch" toml:"branch"`
		Headers map[string]string `json:"headers" mapstructure:"headers" toml:"headers"`
		Timeout time.Duration     `json:"timeout" mapstructure:"timeout" toml:"timeout"`
	}

	// ResolverConfig configures the path resolver.
	ResolverConfig struct {
		Root        AbsolutePath `json:"root" mapstructure:"root" toml:"root"`
		DefaultBase AbsolutePath `json:"default_base" mapstructure:"default_base" toml:"default_base"`
		ModuleDir   AbsolutePath `json:"module_dir" mapstructure:"module_dir" toml:"module_dir"`
		// Aliases maps "@scope" prefixes to absolute directories.
		Aliases map[string]string `json:"aliases" mapstructure:"aliases" toml:"aliases"`
	}

	// LoaderConfig configures the hook loader.
	LoaderConfig struct {
		Executor ExecutorName `json:"executor" mapstructure:"executor" toml:"executor"`
		// LenientTranspile continues with the raw source when transpiling fails.
		LenientTranspile bool `json:"lenient_transpile" mapstructure:"lenient_transpile" toml:"lenient_transpile"`
		// CacheMaxEntries bounds the module cache; zero is unbounded.
		CacheMaxEntries int `json:"cache_max_entries" mapstructure:"cache_max_entries" toml:"cache_max_entries"`
		// DisposeGrace is how long the require executor keeps a module body registered.
		DisposeGrace time.Duration `json:"dispose_grace" mapstructure:"dispose_grace" toml:"dispose_grace"`
		// HostModules are specifiers served from the execution context.
		HostModules []string `json:"host_modules" mapstructure:"host_modules" toml:"host_modules"`
	}

	// TranspilerConfig configures the transpiler adapter.
	TranspilerConfig struct {
		Target      string `json:"target" mapstructure:"target" toml:"target"`
		JSXFactory  string `json:"jsx_factory" mapstructure:"jsx_factory" toml:"jsx_factory"`
		JSXFragment string `json:"jsx_fragment" mapstructure:"jsx_fragment" toml:"jsx_fragment"`
	}

	// LogConfig configures logging.
	LogConfig struct {
		Level  LogLevel  `json:"level" mapstructure:"level" toml:"level"`
		Format LogFormat `json:"format" mapstructure:"format" toml:"format"`
	}

	// TelemetryConfig configures tracing. An empty endpoint disables export.
	TelemetryConfig struct {
		OTLPEndpoint string `json:"otlp_endpoint" mapstructure:"otlp_endpoint" toml:"otlp_endpoint"`
		ServiceName  string `json:"service_name" mapstructure:"service_name" toml:"service_name"`
		Insecure     bool   `json:"insecure" mapstructure:"insecure" toml:"insecure"`
	}

	// UIConfig configures the user interface.
	UIConfig struct {
		// ColorScheme sets the color scheme
		ColorScheme ColorScheme `json:"color_scheme" mapstructure:"color_scheme" toml:"color_scheme"`
		// Verbose enables verbose output
		Verbose bool `json:"verbose" mapstructure:"verbose" toml:"verbose"`
	}
)

// IsValid returns whether the PeerConfig has valid fields.
func (c PeerConfig) IsValid() (bool, []error) {
	var errs []error
	if valid, fieldErrs := c.Protocol.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if c.Timeout < 0 {
		errs = append(errs, fmt.Errorf("peer.timeout %s: must not be negative", c.Timeout))
	}
	if len(errs) > 0 {
		return false, []error{&InvalidPeerConfigError{FieldErrors: errs}}
	}
	return true, nil
}

// Error implements the error interface for InvalidPeerConfigError.
func (e *InvalidPeerConfigError) Error() string {
	return fmt.Sprintf("invalid peer config: %d field error(s)", len(e.FieldErrors))
}

// Unwrap returns ErrInvalidPeerConfig for errors.Is() compatibility.
func (e *InvalidPeerConfigError) Unwrap() error { return ErrInvalidPeerConfig }

// IsValid returns whether the ResolverConfig has valid fields.
func (c ResolverConfig) IsValid() (bool, []error) {
	var errs []error
	for field, p := range map[string]AbsolutePath{
		"resolver.root":         c.Root,
		"resolver.default_base": c.DefaultBase,
		"resolver.module_dir":   c.ModuleDir,
	} {
		if valid, fieldErrs := p.validate(field); !valid {
			errs = append(errs, fieldErrs...)
		}
	}
	for alias, dir := range c.Aliases {
		if valid, fieldErrs := AbsolutePath(dir).validate("resolver.aliases." + alias); !valid {
			errs = append(errs, fieldErrs...)
		}
	}
	return len(errs) == 0, errs
}

// IsValid returns whether the LoaderConfig has valid fields.
func (c LoaderConfig) IsValid() (bool, []error) {
	var errs []error
	if valid, fieldErrs := c.Executor.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if c.CacheMaxEntries < 0 {
		errs = append(errs, fmt.Errorf("loader.cache_max_entries %d: must not be negative", c.CacheMaxEntries))
	}
	if c.DisposeGrace < 0 {
		errs = append(errs, fmt.Errorf("loader.dispose_grace %s: must not be negative", c.DisposeGrace))
	}
	if len(errs) > 0 {
		return false, []error{&InvalidLoaderConfigError{FieldErrors: errs}}
	}
	return true, nil
}

// Error implements the error interface for InvalidLoaderConfigError.
func (e *InvalidLoaderConfigError) Error() string {
	return fmt.Sprintf("invalid loader config: %d field error(s)", len(e.FieldErrors))
}

// Unwrap returns ErrInvalidLoaderConfig for errors.Is() compatibility.
func (e *InvalidLoaderConfigError) Unwrap() error { return ErrInvalidLoaderConfig }

// IsValid returns whether the Config has valid fields.
// The transpiler target is checked when the adapter is built.
func (c Config) IsValid() (bool, []error) {
	var errs []error
	if valid, fieldErrs := c.Peer.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if valid, fieldErrs := c.Resolver.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if valid, fieldErrs := c.Loader.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if valid, fieldErrs := c.Log.Level.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if valid, fieldErrs := c.Log.Format.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if valid, fieldErrs := c.UI.ColorScheme.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if len(errs) > 0 {
		return false, []error{&InvalidConfigError{FieldErrors: errs}}
	}
	return true, nil
}

// Error implements the error interface for InvalidConfigError.
func (e *InvalidConfigError) Error() string {
	msgs := make([]string, 0, len(e.FieldErrors))
	for _, fe := range e.FieldErrors {
		msgs = append(msgs, fe.Error())
	}
	return fmt.Sprintf("invalid config: %s", strings.Join(msgs, "; "))
}

// Unwrap returns ErrInvalidConfig for errors.Is() compatibility.
func (e *InvalidConfigError) Unwrap() error { return ErrInvalidConfig }

// String returns the string representation of the Protocol.
func (p Protocol) String() string { return string(p) }

// IsValid returns whether the Protocol is http or https.
func (p Protocol) IsValid() (bool, []error) {
	switch p {
	case ProtocolHTTP, ProtocolHTTPS:
		return true, nil
	default:
		return false, []error{&InvalidProtocolError{Value: p}}
	}
}

// Error implements the error interface for InvalidProtocolError.
func (e *InvalidProtocolError) Error() string {
	return fmt.Sprintf("invalid protocol %q (valid: http, https)", e.Value)
}

// Unwrap returns the sentinel error for errors.Is() compatibility.
func (e *InvalidProtocolError) Unwrap() error { return ErrInvalidProtocol }

// String returns the string representation of the ExecutorName.
func (n ExecutorName) String() string { return string(n) }

// IsValid returns whether the ExecutorName names a known executor.
func (n ExecutorName) IsValid() (bool, []error) {
	switch n {
	case ExecutorFunction, ExecutorRequire:
		return true, nil
	default:
		return false, []error{&InvalidExecutorNameError{Value: n}}
	}
}

// Error implements the error interface for InvalidExecutorNameError.
func (e *InvalidExecutorNameError) Error() string {
	return fmt.Sprintf("invalid executor %q (valid: function, require)", e.Value)
}

// Unwrap returns the sentinel error for errors.Is() compatibility.
func (e *InvalidExecutorNameError) Unwrap() error { return ErrInvalidExecutorName }

// String returns the string representation of the LogLevel.
func (l LogLevel) String() string { return string(l) }

// IsValid returns whether the LogLevel is known.
func (l LogLevel) IsValid() (bool, []error) {
	switch l {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		return true, nil
	default:
		return false, []error{&InvalidLogLevelError{Value: l}}
	}
}

// Error implements the error interface for InvalidLogLevelError.
func (e *InvalidLogLevelError) Error() string {
	return fmt.Sprintf("invalid log level %q (valid: debug, info, warn, error)", e.Value)
}

// Unwrap returns the sentinel error for errors.Is() compatibility.
func (e *InvalidLogLevelError) Unwrap() error { return ErrInvalidLogLevel }

// String returns the string representation of the LogFormat.
func (f LogFormat) String() string { return string(f) }

// IsValid returns whether the LogFormat is known.
func (f LogFormat) IsValid() (bool, []error) {
	switch f {
	case LogFormatText, LogFormatJSON, LogFormatLogfmt:
		return true, nil
	default:
		return false, []error{&InvalidLogFormatError{Value: f}}
	}
}

// Error implements the error interface for InvalidLogFormatError.
func (e *InvalidLogFormatError) Error() string {
	return fmt.Sprintf("invalid log format %q (valid: text, json, logfmt)", e.Value)
}

// Unwrap returns the sentinel error for errors.Is() compatibility.
func (e *InvalidLogFormatError) Unwrap() error { return ErrInvalidLogFormat }

// String returns the string representation of the ColorScheme.
func (cs ColorScheme) String() string { return string(cs) }

// IsValid returns whether the ColorScheme is one of the defined color schemes,
// and a list of validation errors if it is not.
func (cs ColorScheme) IsValid() (bool, []error) {
	switch cs {
	case ColorSchemeAuto, ColorSchemeDark, ColorSchemeLight:
		return true, nil
	default:
		return false, []error{&InvalidColorSchemeError{Value: cs}}
	}
}

// Error implements the error interface for InvalidColorSchemeError.
func (e *InvalidColorSchemeError) Error() string {
	return fmt.Sprintf("invalid color scheme %q (valid: auto, dark, light)", e.Value)
}

// Unwrap returns the sentinel error for errors.Is() compatibility.
func (e *InvalidColorSchemeError) Unwrap() error {
	return ErrInvalidColorScheme
}

// String returns the string representation of the AbsolutePath.
func (p AbsolutePath) String() string { return string(p) }

func (p AbsolutePath) validate(field string) (bool, []error) {
	if p == "" || strings.HasPrefix(string(p), "/") {
		return true, nil
	}
	return false, []error{&InvalidAbsolutePathError{Field: field, Value: p}}
}

// Error implements the error interface for InvalidAbsolutePathError.
func (e *InvalidAbsolutePathError) Error() string {
	return fmt.Sprintf("%s %q: must start with /", e.Field, e.Value)
}

// Unwrap returns the sentinel error for errors.Is() compatibility.
func (e *InvalidAbsolutePathError) Unwrap() error { return ErrInvalidAbsolutePath }

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Peer: PeerConfig{
			Protocol: ProtocolHTTP,
			Headers:  map[string]string{},
			Timeout:  30 * time.Second,
		},
		Resolver: ResolverConfig{
			Root:        "/",
			DefaultBase: "/hooks/client/",
			ModuleDir:   "/hooks/lib/",
			Aliases:     map[string]string{},
		},
		Loader: LoaderConfig{
			Executor:     ExecutorFunction,
			DisposeGrace: time.Second,
			HostModules:  []string{"@relay/hook-runtime"},
		},
		Transpiler: TranspilerConfig{
			Target:      "es2017",
			JSXFactory:  "h",
			JSXFragment: "Fragment",
		},
		Log: LogConfig{
			Level:  LogLevelInfo,
			Format: LogFormatText,
		},
		Telemetry: TelemetryConfig{
			ServiceName: AppName,
		},
		UI: UIConfig{
			ColorScheme: ColorSchemeAuto,
		},
	}
}
