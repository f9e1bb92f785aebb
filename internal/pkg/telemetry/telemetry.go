// Package telemetry provides access to the OpenTelemetry tracer.
package telemetry

import (
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const tracerName = "github.com/keenai/agent-chat"

type Telemetry interface {
	Tracer() trace.Tracer
	TracerProvider() trace.TracerProvider
}

type telemetry struct {
	provider trace.TracerProvider
	tracer   trace.Tracer
}

func New(provider trace.TracerProvider) Telemetry {
	return &telemetry{provider: provider, tracer: provider.Tracer(tracerName)}
}

func NewNop() Telemetry {
	return New(noop.NewTracerProvider())
}

func (t *telemetry) Tracer() trace.Tracer {
	return t.tracer
}

func (t *telemetry) TracerProvider() trace.TracerProvider {
	return t.provider
}
