package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

func TestNewProviders_Disabled(t *testing.T) {
	p, err := NewProviders(context.Background(), Config{Enabled: false}, zap.NewNop())
	require.NoError(t, err)
	assert.NotNil(t, p.Meter("test"))
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestDispensingMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer provider.Shutdown(context.Background())

	m, err := NewDispensingMetrics(provider.Meter("test"))
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordSubmission(ctx, SubmissionAccepted)
	m.RecordSubmission(ctx, SubmissionRejected)
	m.RecordExcess(ctx, 2)
	m.RecordExcess(ctx, 0)
	m.RecordGate(ctx, true)
	m.RecordFetchFailure(ctx, "historical")
	m.RecordStaleLoad(ctx)
	m.RecordReconciliation(ctx, 150*time.Millisecond)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	require.Len(t, rm.ScopeMetrics, 1)

	byName := make(map[string]metricdata.Metrics)
	for _, metric := range rm.ScopeMetrics[0].Metrics {
		byName[metric.Name] = metric
	}

	submissions, ok := byName["dispensing_submissions_total"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	assert.Len(t, submissions.DataPoints, 2)

	excess, ok := byName["dispensing_excess_detected_total"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, excess.DataPoints, 1)
	assert.Equal(t, int64(2), excess.DataPoints[0].Value)

	assert.Contains(t, byName, "dispensing_historical_reconciliation_duration")
}

func TestNewDispensingMetrics_NilMeter(t *testing.T) {
	_, err := NewDispensingMetrics(nil)
	assert.True(t, errors.Is(err, ErrMeterNil))
}

func TestSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})

	_, span := StartSpan(context.Background(), "dispensing.select_order", "order_id", "OP-1", "lots", 3, "dangling")
	SetOK(span)
	span.End()

	_, client := StartClientSpan(context.Background(), "backend.submit")
	RecordError(client, errors.New("ledger closed"))
	RecordError(client, nil)
	client.End()

	spans := recorder.Ended()
	require.Len(t, spans, 2)

	assert.Equal(t, trace.SpanKindInternal, spans[0].SpanKind())
	assert.Equal(t, codes.Ok, spans[0].Status().Code)
	assert.ElementsMatch(t, []attribute.KeyValue{
		attribute.String("order_id", "OP-1"),
		attribute.Int("lots", 3),
	}, spans[0].Attributes())

	assert.Equal(t, trace.SpanKindClient, spans[1].SpanKind())
	assert.Equal(t, codes.Error, spans[1].Status().Code)
	assert.Equal(t, "ledger closed", spans[1].Status().Description)
	require.Len(t, spans[1].Events(), 1)
}
