// Package trace wraps the process-global OpenTelemetry tracer so callers
// get spans without wiring a provider through every constructor. With no
// provider installed the spans are no-ops.
package trace

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/cqnguy23/azure-signalr"

// Start begins a span named name carrying the given attributes.
func Start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, name, trace.WithAttributes(attrs...))
}

// String builds a string span attribute.
func String(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// Int builds an int span attribute.
func Int(key string, value int) attribute.KeyValue {
	return attribute.Int(key, value)
}
