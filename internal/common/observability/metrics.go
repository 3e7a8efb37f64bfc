// internal/common/observability/metrics.go
package observability

import (
	"context"
	"time"

	"ops-notifications/internal/common/logger"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
)

// Observability records worker job metrics through OpenTelemetry. The exporter registers
// with the default Prometheus registry, so the values appear on /metrics.
type Observability struct {
	meterProvider *metric.MeterProvider
	jobCounter    otelmetric.Int64Counter
	jobDuration   otelmetric.Float64Histogram
	fanout        otelmetric.Int64Histogram
}

// New never fails; without an exporter every Record call is a no-op.
func New(serviceName string, log logger.Logger) *Observability {
	exporter, err := prometheus.New()
	if err != nil {
		log.Warn("failed to create Prometheus exporter", map[string]interface{}{"error": err})
		return &Observability{}
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter(serviceName)

	jobCounter, _ := meter.Int64Counter(
		"notification.jobs.processed",
		otelmetric.WithDescription("Number of notification jobs processed"),
	)

	jobDuration, _ := meter.Float64Histogram(
		"notification.jobs.duration",
		otelmetric.WithDescription("Notification job processing duration"),
		otelmetric.WithUnit("ms"),
	)

	fanout, _ := meter.Int64Histogram(
		"notification.jobs.fanout",
		otelmetric.WithDescription("Notifications persisted per job"),
	)

	return &Observability{
		meterProvider: provider,
		jobCounter:    jobCounter,
		jobDuration:   jobDuration,
		fanout:        fanout,
	}
}

func (o *Observability) RecordJobProcessed(ctx context.Context, taskType, status string) {
	if o == nil || o.jobCounter == nil {
		return
	}
	o.jobCounter.Add(ctx, 1, otelmetric.WithAttributes(
		attribute.String("task_type", taskType),
		attribute.String("status", status),
	))
}

func (o *Observability) RecordJobDuration(ctx context.Context, taskType string, duration time.Duration, status string) {
	if o == nil || o.jobDuration == nil {
		return
	}
	o.jobDuration.Record(ctx, float64(duration.Milliseconds()), otelmetric.WithAttributes(
		attribute.String("task_type", taskType),
		attribute.String("status", status),
	))
}

func (o *Observability) RecordFanout(ctx context.Context, taskType string, count int) {
	if o == nil || o.fanout == nil {
		return
	}
	o.fanout.Record(ctx, int64(count), otelmetric.WithAttributes(attribute.String("task_type", taskType)))
}

func (o *Observability) Shutdown() {
	if o == nil || o.meterProvider == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = o.meterProvider.Shutdown(ctx)
}
