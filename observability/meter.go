package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// MeterConfig configures the OpenTelemetry meter provider.
type MeterConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	Endpoint       string
	Insecure       bool
	// Interval is the metric export interval.
	Interval time.Duration
}

// InitMeter installs a global meter provider exporting over OTLP/HTTP.
// The returned provider must be shut down on exit.
func InitMeter(ctx context.Context, config MeterConfig) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(config.Endpoint),
	}
	if config.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}

	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	res, err := newResource(config.ServiceName, config.ServiceVersion, config.Environment)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	readerOpts := []sdkmetric.PeriodicReaderOption{}
	if config.Interval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(config.Interval))
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)
	return mp, nil
}

// Meter returns the service meter from the global provider.
func Meter() metric.Meter {
	return otel.Meter(tracerName)
}

// Metrics holds the job instruments.
type Metrics struct {
	jobsTotal      metric.Int64Counter
	jobDuration    metric.Float64Histogram
	notifyFailures metric.Int64Counter
	poolInUse      metric.Int64ObservableGauge
}

// NewMetrics creates the job instruments on meter. A nil meter uses the
// global one, which is a no-op until a provider is installed.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	if meter == nil {
		meter = Meter()
	}
	jobsTotal, err := meter.Int64Counter("jobs_total",
		metric.WithDescription("Transcription jobs by terminal status"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating jobs_total counter: %w", err)
	}

	jobDuration, err := meter.Float64Histogram("job_duration_seconds",
		metric.WithDescription("Wall time from upload to terminal event"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating job_duration_seconds histogram: %w", err)
	}

	notifyFailures, err := meter.Int64Counter("notify_failures_total",
		metric.WithDescription("Failed downstream deliveries by sink"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating notify_failures_total counter: %w", err)
	}

	poolInUse, err := meter.Int64ObservableGauge("engine_pool_in_use",
		metric.WithDescription("Busy engine pool slots"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating engine_pool_in_use gauge: %w", err)
	}

	return &Metrics{
		jobsTotal:      jobsTotal,
		jobDuration:    jobDuration,
		notifyFailures: notifyFailures,
		poolInUse:      poolInUse,
	}, nil
}

// RecordJob records a finished job.
func (m *Metrics) RecordJob(ctx context.Context, status, kind string, d time.Duration) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{attribute.String(AttrStatus, status)}
	if kind != "" {
		attrs = append(attrs, attribute.String(AttrErrorKind, kind))
	}
	m.jobsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.jobDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String(AttrStatus, status)))
}

// RecordNotifyFailure counts a failed delivery to sink.
func (m *Metrics) RecordNotifyFailure(ctx context.Context, sink string) {
	if m == nil {
		return
	}
	m.notifyFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("sink", sink)))
}

// ObservePool reports inUse() as engine_pool_in_use on every collection.
func (m *Metrics) ObservePool(meter metric.Meter, engine string, inUse func() int) (metric.Registration, error) {
	if meter == nil {
		meter = Meter()
	}
	attrs := metric.WithAttributes(attribute.String(AttrEngine, engine))
	return meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		o.ObserveInt64(m.poolInUse, int64(inUse()), attrs)
		return nil
	}, m.poolInUse)
}
