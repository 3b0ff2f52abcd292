// SPDX-License-Identifier: MPL-2.0

package telemetry

import (
	"testing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

func TestSetup_DisabledWithoutEndpoint(t *testing.T) {
	t.Parallel()

	tp, shutdown, err := Setup(t.Context(), Options{ServiceName: "relayhook"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := tp.(noop.TracerProvider); !ok {
		t.Errorf("expected a no-op provider, got %T", tp)
	}
	if err := shutdown(t.Context()); err != nil {
		t.Errorf("shutdown of a disabled provider failed: %v", err)
	}
}

func TestSetup_WithEndpoint(t *testing.T) {
	t.Parallel()

	// The gRPC client connects lazily, so no collector is needed.
	tp, shutdown, err := Setup(t.Context(), Options{
		Endpoint:    "127.0.0.1:4317",
		ServiceName: "relayhook",
		Version:     "test",
		Insecure:    true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := tp.(*sdktrace.TracerProvider); !ok {
		t.Fatalf("expected an SDK provider, got %T", tp)
	}
	_ = shutdown(t.Context())
}
