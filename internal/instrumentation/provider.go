// Package instrumentation wires OpenTelemetry metrics with a Prometheus
// exporter. Metrics are exposed on a dedicated metrics server, isolated from
// application traffic.
package instrumentation

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Config holds instrumentation settings.
type Config struct {
	// Enabled determines whether metrics are collected at all.
	Enabled bool

	// ServiceName identifies this service in exported metrics.
	ServiceName string

	// ServiceVersion is the build version attached to exported metrics.
	ServiceVersion string
}

// DefaultConfig returns instrumentation settings with metrics enabled.
func DefaultConfig() Config {
	return Config{
		Enabled:     true,
		ServiceName: "mailmate",
	}
}

// Provider encapsulates the OpenTelemetry meter provider.
type Provider struct {
	config        Config
	meterProvider *metric.MeterProvider
	metrics       *Metrics
	enabled       bool
}

// NewProvider creates a new OpenTelemetry provider with a Prometheus reader.
// When disabled it returns a provider whose metrics recorder is a no-op.
func NewProvider(ctx context.Context, config Config) (*Provider, error) {
	if !config.Enabled {
		return &Provider{
			config:  config,
			enabled: false,
			metrics: &Metrics{},
		}, nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(config.ServiceName),
			semconv.ServiceVersion(config.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	// The Prometheus exporter registers with the global Prometheus registry,
	// which promhttp.Handler() exposes on the metrics server.
	promExporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	provider := &Provider{
		config:  config,
		enabled: true,
		meterProvider: metric.NewMeterProvider(
			metric.WithResource(res),
			metric.WithReader(promExporter),
		),
	}

	otel.SetMeterProvider(provider.meterProvider)

	meter := provider.meterProvider.Meter(config.ServiceName)
	provider.metrics, err = NewMetrics(meter)
	if err != nil {
		_ = provider.Shutdown(ctx)
		return nil, fmt.Errorf("failed to create metrics recorder: %w", err)
	}

	return provider, nil
}

// Enabled reports whether metrics collection is active.
func (p *Provider) Enabled() bool {
	return p.enabled
}

// Metrics returns the metrics recorder. Always non-nil; recording on a
// disabled provider is a no-op.
func (p *Provider) Metrics() *Metrics {
	return p.metrics
}

// Shutdown flushes and stops the meter provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.meterProvider == nil {
		return nil
	}
	return p.meterProvider.Shutdown(ctx)
}

// resultAttr is a helper for success/error result attributes.
func resultAttr(err error) attribute.KeyValue {
	if err != nil {
		return attribute.String("result", "error")
	}
	return attribute.String("result", "success")
}
