package emit

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// InitOTel builds an OTLP-over-HTTP trace pipeline pointed at endpoint
// (host:port, no scheme) and installs it as the global tracer provider.
// It returns a Sink wired to that provider and a shutdown func the
// caller must invoke before exit to flush the final batch.
func InitOTel(ctx context.Context, endpoint string) (Sink, func(context.Context) error, error) {
	exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpoint(endpoint), otlptracehttp.WithInsecure())
	if err != nil {
		return nil, nil, fmt.Errorf("emit: creating otlp exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
	otel.SetTracerProvider(tp)

	sink := NewOTel(tp.Tracer("github.com/dshills/flowgraph"))
	return sink, tp.Shutdown, nil
}
