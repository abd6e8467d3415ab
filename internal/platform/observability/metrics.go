package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/readify/api/internal/platform/auth"
)

const meterName = "github.com/readify/api/internal/platform/observability"

// NewAuthMetrics records bearer token verifications as an otel counter and latency histogram.
func NewAuthMetrics(provider metric.MeterProvider) auth.MetricsRecorder {
	if provider == nil {
		provider = noop.NewMeterProvider()
	}
	meter := provider.Meter(meterName)
	counter, err := meter.Int64Counter("auth.verifications",
		metric.WithDescription("Bearer token verification attempts"))
	if err != nil {
		counter, _ = noop.NewMeterProvider().Meter(meterName).Int64Counter("auth.verifications")
	}
	latency, err := meter.Float64Histogram("auth.verification.duration",
		metric.WithUnit("ms"),
		metric.WithDescription("Bearer token verification latency"))
	if err != nil {
		latency, _ = noop.NewMeterProvider().Meter(meterName).Float64Histogram("auth.verification.duration")
	}

	return auth.MetricsRecorderFunc(func(ctx context.Context, kind string, success bool, reason string, d time.Duration) {
		attrs := metric.WithAttributes(
			attribute.String("provider", kind),
			attribute.Bool("success", success),
			attribute.String("reason", reason),
		)
		counter.Add(ctx, 1, attrs)
		latency.Record(ctx, float64(d)/float64(time.Millisecond), attrs)
	})
}
