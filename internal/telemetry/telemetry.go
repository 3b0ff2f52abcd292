// SPDX-License-Identifier: MPL-2.0

// Package telemetry configures OpenTelemetry tracing for the CLI.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

type (
	// Options configures Setup.
	Options struct {
		// Endpoint is the OTLP gRPC collector address. Empty disables export.
		Endpoint    string
		ServiceName string
		Version     string
		// Insecure disables TLS towards the collector.
		Insecure bool
		// Global also installs the provider as the otel global.
		Global bool
	}

	// Shutdown flushes pending spans and stops the exporter.
	Shutdown func(context.Context) error
)

// Setup builds a tracer provider exporting to an OTLP collector.
// If Endpoint is empty, a no-op provider is returned.
func Setup(ctx context.Context, opts Options) (trace.TracerProvider, Shutdown, error) {
	if opts.Endpoint == "" {
		return noop.NewTracerProvider(), func(context.Context) error { return nil }, nil
	}

	clientOpts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(opts.Endpoint)}
	if opts.Insecure {
		clientOpts = append(clientOpts, otlptracegrpc.WithInsecure())
	}
	exp, err := otlptracegrpc.New(ctx, clientOpts...)
	if err != nil {
		return nil, nil, fmt.Errorf("create OTLP exporter for %s: %w", opts.Endpoint, err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(opts.ServiceName),
			semconv.ServiceVersion(opts.Version),
		)),
	)
	if opts.Global {
		otel.SetTracerProvider(tp)
	}
	return tp, tp.Shutdown, nil
}
