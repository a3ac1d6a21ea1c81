package telemetry

import (
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// NewTracerProviderWithExporter exposes newTracerProvider so tests in other
// packages can trace into in-memory exporters.
func NewTracerProviderWithExporter(exporter sdktrace.SpanExporter, cfg Config) (*sdktrace.TracerProvider, error) {
	return newTracerProvider(exporter, cfg)
}
