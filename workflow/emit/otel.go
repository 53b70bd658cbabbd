package emit

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OTel turns each event into a point-in-time OpenTelemetry span, for
// export to any OTLP-compatible backend. Spans are started and ended
// immediately since events represent instants, not durations.
type OTel struct {
	tracer trace.Tracer
}

// NewOTel wraps tracer (typically otel.Tracer("flowgraph")) as a Sink.
func NewOTel(tracer trace.Tracer) *OTel {
	return &OTel{tracer: tracer}
}

func (o *OTel) Emit(event Event) {
	ctx := context.Background()
	_, span := o.tracer.Start(ctx, string(event.Type))
	defer span.End()

	span.SetAttributes(
		attribute.String("flowgraph.run_id", event.RunID),
		attribute.String("flowgraph.step_name", event.StepName),
	)
	addDataAttributes(span, event.Data)

	if errMsg, ok := event.Data["error"].(string); ok {
		span.SetStatus(codes.Error, errMsg)
		span.RecordError(fmt.Errorf("%s", errMsg))
	}
}

// Flush force-flushes the active tracer provider, if it supports it
// (the SDK provider does; the global no-op provider does not).
func (o *OTel) Flush(ctx context.Context) error {
	tp := otel.GetTracerProvider()
	type flusher interface {
		ForceFlush(context.Context) error
	}
	if f, ok := tp.(flusher); ok {
		return f.ForceFlush(ctx)
	}
	return nil
}

var attrKeyOverrides = map[string]string{
	"tokens_in":  "flowgraph.model.tokens_in",
	"tokens_out": "flowgraph.model.tokens_out",
	"model":      "flowgraph.model.name",
	"duration_ms": "flowgraph.step.duration_ms",
	"status":     "flowgraph.step.status",
	"reason":     "flowgraph.step.skip_reason",
}

func addDataAttributes(span trace.Span, data map[string]any) {
	for key, value := range data {
		attrKey := key
		if mapped, ok := attrKeyOverrides[key]; ok {
			attrKey = mapped
		}
		switch v := value.(type) {
		case string:
			span.SetAttributes(attribute.String(attrKey, v))
		case int:
			span.SetAttributes(attribute.Int(attrKey, v))
		case int64:
			span.SetAttributes(attribute.Int64(attrKey, v))
		case float64:
			span.SetAttributes(attribute.Float64(attrKey, v))
		case bool:
			span.SetAttributes(attribute.Bool(attrKey, v))
		case time.Duration:
			span.SetAttributes(attribute.Int64(attrKey, int64(v/time.Millisecond)))
		default:
			span.SetAttributes(attribute.String(attrKey, fmt.Sprintf("%v", v)))
		}
	}
}
