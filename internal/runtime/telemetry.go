package runtime

import (
	"context"
	"fmt"
	"net/http"

	"github.com/mohammad-safakhou/quizchain/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/trace"
)

// Telemetry owns the meter provider and the registry behind /metrics.
type Telemetry struct {
	mp       *sdkmetric.MeterProvider
	registry *prometheus.Registry
	Meter    otelmetric.Meter
	Tracer   trace.Tracer
}

// SetupTelemetry wires an OpenTelemetry meter provider to a private Prometheus
// registry. When disabled the global (noop) meter and tracer are returned.
func SetupTelemetry(_ context.Context, cfg config.TelemetryConfig) (*Telemetry, error) {
	name := cfg.ServiceName
	if name == "" {
		name = "quizchain"
	}
	if !cfg.Enabled {
		return &Telemetry{Meter: otel.Meter(name), Tracer: otel.Tracer(name)}, nil
	}

	registry := prometheus.NewRegistry()
	exporter, err := promexporter.New(promexporter.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("prom exporter: %w", err)
	}
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(mp)

	return &Telemetry{
		mp:       mp,
		registry: registry,
		Meter:    mp.Meter(name),
		Tracer:   otel.Tracer(name),
	}, nil
}

// Handler serves the Prometheus exposition, or 404 when metrics are disabled.
func (t *Telemetry) Handler() http.Handler {
	if t == nil || t.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(t.registry, promhttp.HandlerOpts{})
}

// Shutdown flushes providers.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t == nil || t.mp == nil {
		return nil
	}
	if err := t.mp.Shutdown(ctx); err != nil {
		return fmt.Errorf("metric shutdown: %w", err)
	}
	return nil
}
