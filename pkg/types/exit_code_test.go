// SPDX-License-Identifier: MPL-2.0

package types

import (
	"errors"
	"testing"
)

func TestExitCode_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		value   ExitCode
		wantErr bool
	}{
		{name: "success", value: ExitSuccess},
		{name: "usage", value: ExitUsage},
		{name: "config", value: ExitConfig},
		{name: "upper bound", value: 255},
		{name: "negative", value: -1, wantErr: true},
		{name: "above byte", value: 256, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.value.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("ExitCode(%d).Validate() = %v, wantErr %v", tt.value, err, tt.wantErr)
			}
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidExitCode) {
					t.Errorf("error does not wrap ErrInvalidExitCode: %v", err)
				}
				var ie *InvalidExitCodeError
				if !errors.As(err, &ie) || ie.Value != tt.value {
					t.Errorf("expected *InvalidExitCodeError carrying %d, got %v", tt.value, err)
				}
			}
		})
	}
}

func TestExitCode_String(t *testing.T) {
	t.Parallel()

	tests := []struct {
		code ExitCode
		want string
	}{
		{ExitSuccess, "success"},
		{ExitFailure, "failure"},
		{ExitUsage, "usage"},
		{ExitConfig, "config"},
		{42, "42"},
	}
	for _, tt := range tests {
		if got := tt.code.String(); got != tt.want {
			t.Errorf("ExitCode(%d).String() = %q, want %q", int(tt.code), got, tt.want)
		}
		if got := tt.code.IsSuccess(); got != (tt.code == 0) {
			t.Errorf("ExitCode(%d).IsSuccess() = %v", int(tt.code), got)
		}
	}
}
