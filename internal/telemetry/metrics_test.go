package telemetry

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := NewMetrics(mp.Meter("test"))
	require.NoError(t, err)
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func TestRecordResolve(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordResolve(ctx, "hit", 0)
	m.RecordResolve(ctx, "hit", 0)
	m.RecordResolve(ctx, "miss", 1200*time.Millisecond)

	rm := collect(t, reader)

	total := findMetric(rm, "lightcurve.resolve.total")
	require.NotNil(t, total)
	sum, ok := total.Data.(metricdata.Sum[int64])
	require.True(t, ok, "got %T", total.Data)

	byOutcome := map[string]int64{}
	for _, dp := range sum.DataPoints {
		v, _ := dp.Attributes.Value(attribute.Key("outcome"))
		byOutcome[v.AsString()] = dp.Value
	}
	assert.Equal(t, map[string]int64{"hit": 2, "miss": 1}, byOutcome)

	dur := findMetric(rm, "lightcurve.fetch.duration_ms")
	require.NotNil(t, dur)
	hist, ok := dur.Data.(metricdata.Histogram[float64])
	require.True(t, ok, "got %T", dur.Data)
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, uint64(1), hist.DataPoints[0].Count)
	assert.InDelta(t, 1200, hist.DataPoints[0].Sum, 1e-9)
}

func TestRecordRequest(t *testing.T) {
	m, reader := newTestMetrics(t)
	m.RecordRequest(context.Background(), http.MethodGet, "/lightcurve", http.StatusOK, 5*time.Millisecond)

	rm := collect(t, reader)
	total := findMetric(rm, "http.server.requests")
	require.NotNil(t, total)
	sum := total.Data.(metricdata.Sum[int64])
	require.Len(t, sum.DataPoints, 1)

	route, _ := sum.DataPoints[0].Attributes.Value(attribute.Key("http.route"))
	assert.Equal(t, "/lightcurve", route.AsString())
}

func TestPrometheusProvider(t *testing.T) {
	p, err := NewPrometheusProvider()
	require.NoError(t, err)
	defer func() { _ = p.Shutdown(context.Background()) }()

	p.Metrics.RecordResolve(context.Background(), "timeout", 60*time.Second)

	srv := httptest.NewServer(p.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "lightcurve_resolve")
	assert.Contains(t, string(body), `outcome="timeout"`)
	assert.Contains(t, string(body), "go_goroutines")
}
