package telemetry

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/metric"
)

// ErrMeterNil is returned when metrics are created without a meter.
var ErrMeterNil = errors.New("meter cannot be nil")

// SubmissionOutcome labels the result of a submission attempt.
type SubmissionOutcome string

const (
	SubmissionAccepted  SubmissionOutcome = "accepted"
	SubmissionRejected  SubmissionOutcome = "rejected"
	SubmissionInvalid   SubmissionOutcome = "invalid"
	SubmissionDuplicate SubmissionOutcome = "duplicate"
)

// DispensingMetrics records the business metrics of the dispensing workflow.
type DispensingMetrics struct {
	submissions     *counter
	excessDetected  *counter
	gateBlocked     *counter
	fetchFailures   *counter
	staleDiscarded  *counter
	reconcileLength *durationHistogram
}

// NewDispensingMetrics creates the dispensing instruments on the given meter.
func NewDispensingMetrics(meter metric.Meter) (*DispensingMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}

	m := &DispensingMetrics{}
	var err error
	if m.submissions, err = newCounter(meter, "dispensing_submissions_total", "Dispensation submission attempts", "{submissions}"); err != nil {
		return nil, err
	}
	if m.excessDetected, err = newCounter(meter, "dispensing_excess_detected_total", "Over-allocated materials found by the auditor", "{materials}"); err != nil {
		return nil, err
	}
	if m.gateBlocked, err = newCounter(meter, "dispensing_gate_decisions_total", "Authorization gate decisions with excess present", "{decisions}"); err != nil {
		return nil, err
	}
	if m.fetchFailures, err = newCounter(meter, "dispensing_fetch_failures_total", "Backend fetches recovered with a fallback", "{fetches}"); err != nil {
		return nil, err
	}
	if m.staleDiscarded, err = newCounter(meter, "dispensing_stale_loads_total", "Order loads discarded because the order changed", "{loads}"); err != nil {
		return nil, err
	}
	m.reconcileLength, err = newDurationHistogram(meter, "dispensing_historical_reconciliation_duration",
		"Duration of the historical reconciliation fan-out", FetchDurationBuckets)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// RecordSubmission counts a submission attempt.
func (m *DispensingMetrics) RecordSubmission(ctx context.Context, outcome SubmissionOutcome) {
	m.submissions.inc(ctx, AttrOutcome.String(string(outcome)))
}

// RecordExcess counts excedido materials in an audit.
func (m *DispensingMetrics) RecordExcess(ctx context.Context, count int) {
	if count <= 0 {
		return
	}
	m.excessDetected.add(ctx, int64(count))
}

// RecordGate counts a gate decision taken with excess present.
func (m *DispensingMetrics) RecordGate(ctx context.Context, blocked bool) {
	decision := "warned"
	if blocked {
		decision = "blocked"
	}
	m.gateBlocked.inc(ctx, AttrGate.String(decision))
}

// RecordFetchFailure counts a fetch recovered with a fallback.
func (m *DispensingMetrics) RecordFetchFailure(ctx context.Context, section string) {
	m.fetchFailures.inc(ctx, AttrSection.String(section))
}

// RecordStaleLoad counts a discarded order load.
func (m *DispensingMetrics) RecordStaleLoad(ctx context.Context) {
	m.staleDiscarded.inc(ctx)
}

// RecordReconciliation records the duration of a historical reconciliation.
func (m *DispensingMetrics) RecordReconciliation(ctx context.Context, d time.Duration) {
	m.reconcileLength.observe(ctx, d)
}
