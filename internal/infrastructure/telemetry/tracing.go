package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the tracer used for dispensing spans
const TracerName = "dispensing-bff"

// StartSpan starts an internal span with key/value attributes.
//
//	ctx, span := telemetry.StartSpan(ctx, "dispensing.select_order", "order_id", orderID)
//	defer span.End()
func StartSpan(ctx context.Context, name string, keyValues ...any) (context.Context, trace.Span) {
	return start(ctx, name, trace.SpanKindInternal, keyValues)
}

// StartClientSpan starts a span for an outgoing backend call.
func StartClientSpan(ctx context.Context, name string, keyValues ...any) (context.Context, trace.Span) {
	return start(ctx, name, trace.SpanKindClient, keyValues)
}

func start(ctx context.Context, name string, kind trace.SpanKind, keyValues []any) (context.Context, trace.Span) {
	return otel.GetTracerProvider().Tracer(TracerName).Start(ctx, name,
		trace.WithSpanKind(kind),
		trace.WithAttributes(toAttributes(keyValues)...),
	)
}

// RecordError marks the span failed. Nil spans and errors are ignored.
func RecordError(span trace.Span, err error) {
	if span == nil || err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

func SetOK(span trace.Span) {
	if span != nil {
		span.SetStatus(codes.Ok, "")
	}
}

func toAttributes(keyValues []any) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(keyValues)/2)
	for i := 0; i+1 < len(keyValues); i += 2 {
		key, ok := keyValues[i].(string)
		if !ok {
			continue
		}
		attrs = append(attrs, toAttribute(key, keyValues[i+1]))
	}
	return attrs
}

func toAttribute(key string, value any) attribute.KeyValue {
	switch v := value.(type) {
	case string:
		return attribute.String(key, v)
	case int:
		return attribute.Int(key, v)
	case int64:
		return attribute.Int64(key, v)
	case float64:
		return attribute.Float64(key, v)
	case bool:
		return attribute.Bool(key, v)
	case []string:
		return attribute.StringSlice(key, v)
	case fmt.Stringer:
		return attribute.String(key, v.String())
	default:
		return attribute.String(key, fmt.Sprintf("%v", v))
	}
}
