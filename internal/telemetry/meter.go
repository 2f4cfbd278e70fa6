package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/resource"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

// SetupMeterProvider installs an SDK-backed global MeterProvider, tagged
// with a service.name resource attribute, so otel.Meter("contextstore")
// (used by OtelMetrics) actually records instruments instead of silently
// no-opping. Readers/exporters are the caller's concern (e.g. an OTLP or
// Prometheus reader appended via opts); with none, the SDK still
// aggregates in memory, which is enough for in-process counters/
// histograms to behave correctly under test.
func SetupMeterProvider(serviceName string, opts ...sdkmetric.Option) (shutdown func(context.Context) error) {
	res, err := resource.New(context.Background(), resource.WithAttributes(semconv.ServiceName(serviceName)))
	if err != nil {
		res = resource.Default()
	}
	mp := sdkmetric.NewMeterProvider(append(opts, sdkmetric.WithResource(res))...)
	otel.SetMeterProvider(mp)
	return mp.Shutdown
}
