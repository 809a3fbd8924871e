package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Attribute keys shared by dispensing metrics.
var (
	AttrOutcome = attribute.Key("outcome")
	AttrSection = attribute.Key("section")
	AttrGate    = attribute.Key("gate")
)

// FetchDurationBuckets are bucket boundaries for backend fetches (seconds).
var FetchDurationBuckets = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}

// counter wraps an Int64Counter so call sites pass attributes variadically.
type counter struct {
	inner metric.Int64Counter
}

func newCounter(meter metric.Meter, name, description, unit string) (*counter, error) {
	c, err := meter.Int64Counter(name, metric.WithDescription(description), metric.WithUnit(unit))
	if err != nil {
		return nil, fmt.Errorf("counter %s: %w", name, err)
	}
	return &counter{inner: c}, nil
}

func (c *counter) add(ctx context.Context, n int64, attrs ...attribute.KeyValue) {
	c.inner.Add(ctx, n, metric.WithAttributes(attrs...))
}

func (c *counter) inc(ctx context.Context, attrs ...attribute.KeyValue) {
	c.add(ctx, 1, attrs...)
}

// durationHistogram records durations in seconds.
type durationHistogram struct {
	inner metric.Float64Histogram
}

func newDurationHistogram(meter metric.Meter, name, description string, buckets []float64) (*durationHistogram, error) {
	opts := []metric.Float64HistogramOption{
		metric.WithDescription(description),
		metric.WithUnit("s"),
	}
	if len(buckets) > 0 {
		opts = append(opts, metric.WithExplicitBucketBoundaries(buckets...))
	}
	h, err := meter.Float64Histogram(name, opts...)
	if err != nil {
		return nil, fmt.Errorf("histogram %s: %w", name, err)
	}
	return &durationHistogram{inner: h}, nil
}

func (h *durationHistogram) observe(ctx context.Context, d time.Duration, attrs ...attribute.KeyValue) {
	h.inner.Record(ctx, d.Seconds(), metric.WithAttributes(attrs...))
}
