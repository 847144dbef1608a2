package observability_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/Sumatoshi-tech/ordmap/pkg/observability"
)

func setupTestMeter(t *testing.T) (*observability.TreeMetrics, *sdkmetric.ManualReader) {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	tm, err := observability.NewTreeMetrics(mp.Meter("test"))
	require.NoError(t, err)

	return tm, reader
}

func collectMetrics(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()

	var rm metricdata.ResourceMetrics

	require.NoError(t, reader.Collect(context.Background(), &rm))

	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for idx := range rm.ScopeMetrics {
		for midx := range rm.ScopeMetrics[idx].Metrics {
			if rm.ScopeMetrics[idx].Metrics[midx].Name == name {
				return &rm.ScopeMetrics[idx].Metrics[midx]
			}
		}
	}

	return nil
}

func TestTreeMetrics_RecordOp(t *testing.T) {
	t.Parallel()

	tm, reader := setupTestMeter(t)
	ctx := context.Background()

	tm.RecordOp(ctx, "insert", "ok", time.Microsecond)
	tm.RecordOp(ctx, "insert", "ok", time.Microsecond)
	tm.RecordOp(ctx, "delete", "not_found", time.Microsecond)

	rm := collectMetrics(t, reader)

	opsTotal := findMetric(rm, "ordmap.ops.total")
	require.NotNil(t, opsTotal)

	sum, ok := opsTotal.Data.(metricdata.Sum[int64])
	require.True(t, ok)

	counts := map[string]int64{}
	for _, dp := range sum.DataPoints {
		op, _ := dp.Attributes.Value(attribute.Key("op"))
		counts[op.AsString()] += dp.Value
	}

	assert.Equal(t, map[string]int64{"insert": 2, "delete": 1}, counts)
	require.NotNil(t, findMetric(rm, "ordmap.op.duration.seconds"))
}

func TestTreeMetrics_RecordShape(t *testing.T) {
	t.Parallel()

	tm, reader := setupTestMeter(t)
	tm.RecordShape(context.Background(), 100, 9)

	rm := collectMetrics(t, reader)

	size := findMetric(rm, "ordmap.tree.size")
	require.NotNil(t, size)

	gauge, ok := size.Data.(metricdata.Gauge[int64])
	require.True(t, ok)
	require.Len(t, gauge.DataPoints, 1)
	assert.Equal(t, int64(100), gauge.DataPoints[0].Value)

	height := findMetric(rm, "ordmap.tree.height")
	require.NotNil(t, height)
}

func TestTreeMetrics_RecordFixupsSkipsZero(t *testing.T) {
	t.Parallel()

	tm, reader := setupTestMeter(t)
	tm.RecordFixups(context.Background(), "insert_1", 0)

	assert.Nil(t, findMetric(collectMetrics(t, reader), "ordmap.fixups.total"))

	tm.RecordFixups(context.Background(), "insert_1", 3)

	fixups := findMetric(collectMetrics(t, reader), "ordmap.fixups.total")
	require.NotNil(t, fixups)

	sum, ok := fixups.Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, sum.DataPoints, 1)
	assert.Equal(t, int64(3), sum.DataPoints[0].Value)
}
