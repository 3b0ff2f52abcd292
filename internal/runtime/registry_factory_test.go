// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"errors"
	"testing"
)

func TestInitDiagnosticCode_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		code    InitDiagnosticCode
		want    bool
		wantErr bool
	}{
		{"require_executor_unavailable", CodeRequireExecutorUnavailable, true, false},
		{"empty", InitDiagnosticCode(""), false, true},
		{"unknown", InitDiagnosticCode("unknown_code"), false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.code.Validate()
			if (err == nil) != tt.want {
				t.Errorf("InitDiagnosticCode(%q).Validate() valid = %v, want %v", tt.code, err == nil, tt.want)
			}
			if tt.wantErr {
				if err == nil {
					t.Fatalf("InitDiagnosticCode(%q).Validate() returned nil, want error", tt.code)
				}
				if !errors.Is(err, ErrInvalidInitDiagnosticCode) {
					t.Errorf("error should wrap ErrInvalidInitDiagnosticCode, got: %v", err)
				}
			} else if err != nil {
				t.Errorf("InitDiagnosticCode(%q).Validate() returned unexpected error: %v", tt.code, err)
			}
		})
	}
}

func TestInitDiagnosticCode_String(t *testing.T) {
	t.Parallel()

	if got := CodeRequireExecutorUnavailable.String(); got != "require_executor_unavailable" {
		t.Errorf("CodeRequireExecutorUnavailable.String() = %q, want %q", got, "require_executor_unavailable")
	}
	if got := InitDiagnosticCode("").String(); got != "" {
		t.Errorf("InitDiagnosticCode(\"\").String() = %q, want %q", got, "")
	}
}

func TestBuildRegistry(t *testing.T) {
	t.Parallel()
	engine := newTestEngine(t)

	result := BuildRegistry(BuildRegistryOptions{Engine: engine})
	if len(result.Diagnostics) != 0 {
		t.Errorf("unexpected diagnostics: %v", result.Diagnostics)
	}
	if got := result.Registry.Available(); len(got) != 2 || got[0] != ExecutorFunction || got[1] != ExecutorRequire {
		t.Errorf("Available() = %v", got)
	}

	x, err := result.Registry.Get("")
	if err != nil {
		t.Fatalf("Get(\"\"): %v", err)
	}
	if x.Name() != DefaultExecutor || x.Injection() != InjectParams {
		t.Errorf("default executor = %s (%s)", x.Name(), x.Injection())
	}
	x, err = result.Registry.Get(ExecutorRequire)
	if err != nil {
		t.Fatalf("Get(require): %v", err)
	}
	if x.Injection() != InjectGlobalSlot {
		t.Errorf("require executor injection = %s", x.Injection())
	}
}

func TestBuildRegistry_WithoutEngine(t *testing.T) {
	t.Parallel()

	result := BuildRegistry(BuildRegistryOptions{})
	if len(result.Diagnostics) != 1 || result.Diagnostics[0].Code != CodeRequireExecutorUnavailable {
		t.Fatalf("expected one require diagnostic, got %v", result.Diagnostics)
	}
	_, err := result.Registry.Get(ExecutorRequire)
	var unknown *UnknownExecutorError
	if !errors.As(err, &unknown) {
		t.Fatalf("expected *UnknownExecutorError, got %T: %v", err, err)
	}
	if !errors.Is(err, ErrExecutorNotFound) {
		t.Error("UnknownExecutorError should unwrap to ErrExecutorNotFound")
	}
	if len(unknown.Available) != 1 || unknown.Available[0] != ExecutorFunction {
		t.Errorf("Available = %v", unknown.Available)
	}
}
