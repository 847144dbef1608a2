package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricOpsTotal    = "ordmap.ops.total"
	metricOpDuration  = "ordmap.op.duration.seconds"
	metricTreeSize    = "ordmap.tree.size"
	metricTreeHeight  = "ordmap.tree.height"
	metricFixupsTotal = "ordmap.fixups.total"

	attrOp      = "op"
	attrOutcome = "outcome"
	attrCase    = "case"
)

// durationBucketBoundaries covers 50ns to 1ms: single tree operations,
// including a full verification of a large tree.
var durationBucketBoundaries = []float64{
	5e-8, 1e-7, 2.5e-7, 5e-7, 1e-6, 2.5e-6, 5e-6, 1e-5, 5e-5, 1e-4, 1e-3,
}

// TreeMetrics holds the OTel instruments describing ordered map activity.
type TreeMetrics struct {
	opsTotal    metric.Int64Counter
	opDuration  metric.Float64Histogram
	treeSize    metric.Int64Gauge
	treeHeight  metric.Int64Gauge
	fixupsTotal metric.Int64Counter
}

// NewTreeMetrics creates the tree instruments from the given meter.
func NewTreeMetrics(mt metric.Meter) (*TreeMetrics, error) {
	opsTotal, err := mt.Int64Counter(metricOpsTotal,
		metric.WithDescription("Map operations by kind and outcome"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricOpsTotal, err)
	}

	opDuration, err := mt.Float64Histogram(metricOpDuration,
		metric.WithDescription("Map operation latency in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBucketBoundaries...),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricOpDuration, err)
	}

	treeSize, err := mt.Int64Gauge(metricTreeSize,
		metric.WithDescription("Number of keys in the map"),
		metric.WithUnit("{key}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricTreeSize, err)
	}

	treeHeight, err := mt.Int64Gauge(metricTreeHeight,
		metric.WithDescription("Longest root to leaf path in nodes"),
		metric.WithUnit("{node}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricTreeHeight, err)
	}

	fixupsTotal, err := mt.Int64Counter(metricFixupsTotal,
		metric.WithDescription("Rebalancing steps by fixup case"),
		metric.WithUnit("{step}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricFixupsTotal, err)
	}

	return &TreeMetrics{
		opsTotal:    opsTotal,
		opDuration:  opDuration,
		treeSize:    treeSize,
		treeHeight:  treeHeight,
		fixupsTotal: fixupsTotal,
	}, nil
}

// RecordOp records one completed operation.
func (tm *TreeMetrics) RecordOp(ctx context.Context, op, outcome string, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String(attrOp, op),
		attribute.String(attrOutcome, outcome),
	)

	tm.opsTotal.Add(ctx, 1, attrs)
	tm.opDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordShape records the current size and height of the tree.
func (tm *TreeMetrics) RecordShape(ctx context.Context, size, height int) {
	tm.treeSize.Record(ctx, int64(size))
	tm.treeHeight.Record(ctx, int64(height))
}

// RecordFixups adds n rebalancing steps of the named case.
func (tm *TreeMetrics) RecordFixups(ctx context.Context, fixupCase string, n int64) {
	if n == 0 {
		return
	}

	tm.fixupsTotal.Add(ctx, n, metric.WithAttributes(attribute.String(attrCase, fixupCase)))
}
