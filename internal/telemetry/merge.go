package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const mergeScopeName = "github.com/lherron/roster/merge"

// MergeInstruments are the metrics recorded by the merge engine.
type MergeInstruments struct {
	operations metric.Int64Counter
	records    metric.Int64Counter
	duration   metric.Float64Histogram
}

// NewMergeInstruments registers the merge metrics on m. A nil meter uses the
// global provider.
func NewMergeInstruments(m metric.Meter) *MergeInstruments {
	if m == nil {
		m = Meter(mergeScopeName)
	}
	ops, _ := m.Int64Counter("roster.merge.operations",
		metric.WithDescription("Student merges attempted, by outcome"),
	)
	recs, _ := m.Int64Counter("roster.merge.records",
		metric.WithDescription("Dependent records touched by merges, by relation and action"),
	)
	dur, _ := m.Float64Histogram("roster.merge.duration",
		metric.WithDescription("Merge duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	return &MergeInstruments{operations: ops, records: recs, duration: dur}
}

// MergeTracerName is the instrumentation scope for merge spans.
func MergeTracerName() string {
	return mergeScopeName
}

// RecordOutcome counts one merge with its outcome and duration.
func (mi *MergeInstruments) RecordOutcome(ctx context.Context, outcome string, ms float64, dryRun bool) {
	attrs := metric.WithAttributes(
		attribute.String("outcome", outcome),
		attribute.Bool("dry_run", dryRun),
	)
	mi.operations.Add(ctx, 1, attrs)
	mi.duration.Record(ctx, ms, attrs)
}

// RecordRecords counts records transferred or discarded for one relation.
func (mi *MergeInstruments) RecordRecords(ctx context.Context, relation, action string, n int) {
	if n == 0 {
		return
	}
	mi.records.Add(ctx, int64(n), metric.WithAttributes(
		attribute.String("relation", relation),
		attribute.String("action", action),
	))
}
