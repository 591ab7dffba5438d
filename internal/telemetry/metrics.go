package telemetry

import (
	"context"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MeterName scopes every instrument this service creates.
const MeterName = "keplerhub"

// Metrics holds the service instruments. It satisfies lightcurve.Recorder.
type Metrics struct {
	resolveTotal  metric.Int64Counter
	fetchDuration metric.Float64Histogram
	requestTotal  metric.Int64Counter
	requestDur    metric.Float64Histogram
}

func NewMetrics(meter metric.Meter) (*Metrics, error) {
	resolveTotal, err := meter.Int64Counter(
		"lightcurve.resolve.total",
		metric.WithDescription("Light curve resolve calls by outcome"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	fetchDuration, err := meter.Float64Histogram(
		"lightcurve.fetch.duration_ms",
		metric.WithDescription("Archive search and download time in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	requestTotal, err := meter.Int64Counter(
		"http.server.requests",
		metric.WithDescription("HTTP requests by route and status"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	requestDur, err := meter.Float64Histogram(
		"http.server.duration_ms",
		metric.WithDescription("HTTP request duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		resolveTotal:  resolveTotal,
		fetchDuration: fetchDuration,
		requestTotal:  requestTotal,
		requestDur:    requestDur,
	}, nil
}

// RecordResolve counts one resolve call. fetch is zero when the archive was
// never contacted (cache hits, invalid names) and is then not observed.
func (m *Metrics) RecordResolve(ctx context.Context, outcome string, fetch time.Duration) {
	opt := metric.WithAttributes(attribute.String("outcome", outcome))
	m.resolveTotal.Add(ctx, 1, opt)
	if fetch > 0 {
		m.fetchDuration.Record(ctx, float64(fetch.Milliseconds()), opt)
	}
}

func (m *Metrics) RecordRequest(ctx context.Context, method, route string, status int, d time.Duration) {
	opt := metric.WithAttributes(
		attribute.String("http.method", method),
		attribute.String("http.route", route),
		attribute.String("http.status_code", strconv.Itoa(status)),
	)
	m.requestTotal.Add(ctx, 1, opt)
	m.requestDur.Record(ctx, float64(d.Milliseconds()), opt)
}
