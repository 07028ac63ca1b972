// Package telemetry wraps OpenTelemetry tracing for netbus sends and
// heartbeats.
package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Span names.
const (
	SpanSend      = "netbus.send"
	SpanHeartbeat = "netbus.heartbeat"
)

// Tracer wraps an OpenTelemetry tracer with bus-specific helpers.
type Tracer struct {
	tracer trace.Tracer
}

var (
	globalTracer *Tracer
	tracerMu     sync.RWMutex
)

// SetGlobalTracer sets the global tracer instance.
func SetGlobalTracer(t *Tracer) {
	tracerMu.Lock()
	defer tracerMu.Unlock()
	globalTracer = t
}

// GetTracer returns the global tracer, or one backed by the otel global
// provider if none was set.
func GetTracer() *Tracer {
	tracerMu.RLock()
	defer tracerMu.RUnlock()
	if globalTracer == nil {
		return NewTracer("netbus")
	}
	return globalTracer
}

// NewTracer creates a tracer from the otel global provider.
func NewTracer(name string) *Tracer {
	return &Tracer{tracer: otel.Tracer(name)}
}

// NewTracerFromProvider creates a tracer from tp.
func NewTracerFromProvider(tp trace.TracerProvider, name string) *Tracer {
	return &Tracer{tracer: tp.Tracer(name)}
}

// Noop returns a tracer that records nothing.
func Noop() *Tracer {
	return &Tracer{tracer: noop.NewTracerProvider().Tracer("")}
}

// StartSpan starts a new span with the given name.
func (t *Tracer) StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, name, opts...)
}

// SendSpanOptions describes one outbound send.
type SendSpanOptions struct {
	Kind    string // "text", "bytes" or "string"
	To      string
	Command string
	Size    int
}

// StartSendSpan starts a producer span for an outbound send.
func (t *Tracer) StartSendSpan(ctx context.Context, opts SendSpanOptions) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{
		attribute.String("netbus.kind", opts.Kind),
		attribute.String("netbus.to", opts.To),
		attribute.Int("netbus.size", opts.Size),
	}
	if opts.Command != "" {
		attrs = append(attrs, attribute.String("netbus.command", opts.Command))
	}
	return t.tracer.Start(ctx, SpanSend,
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(attrs...),
	)
}

// StartHeartbeatSpan starts a span for one heartbeat tick.
func (t *Tracer) StartHeartbeatSpan(ctx context.Context, master string, seq uint64) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, SpanHeartbeat,
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("netbus.master", master),
			attribute.Int64("netbus.heartbeat.seq", int64(seq)),
		),
	)
}

// EndSpan sets the span status from err and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
