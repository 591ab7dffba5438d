package telemetry

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Provider wires an otel MeterProvider to a private Prometheus registry.
type Provider struct {
	Registry *prometheus.Registry
	Meters   *sdkmetric.MeterProvider
	Metrics  *Metrics
}

func NewPrometheusProvider() (*Provider, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	exp, err := otelprom.New(otelprom.WithRegisterer(reg))
	if err != nil {
		return nil, fmt.Errorf("create prometheus exporter: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exp))
	m, err := NewMetrics(mp.Meter(MeterName))
	if err != nil {
		_ = mp.Shutdown(context.Background())
		return nil, fmt.Errorf("create instruments: %w", err)
	}

	return &Provider{Registry: reg, Meters: mp, Metrics: m}, nil
}

// Handler serves the registry in the Prometheus text format.
func (p *Provider) Handler() http.Handler {
	return promhttp.HandlerFor(p.Registry, promhttp.HandlerOpts{})
}

func (p *Provider) Shutdown(ctx context.Context) error {
	return p.Meters.Shutdown(ctx)
}
