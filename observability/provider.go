package observability

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/kbukum/whisperserver/component"
	"github.com/kbukum/whisperserver/logger"
)

// Provider owns the tracer and meter providers as a lifecycle component.
type Provider struct {
	cfg     Config
	service string
	version string
	log     *logger.Logger

	mu     sync.Mutex
	tracer *sdktrace.TracerProvider
	meter  *sdkmetric.MeterProvider
}

var _ component.Component = (*Provider)(nil)

// NewProvider returns a Provider. Nothing is exported until Start.
func NewProvider(cfg Config, service, version string, log *logger.Logger) *Provider {
	cfg.ApplyDefaults()
	return &Provider{cfg: cfg, service: service, version: version, log: log.WithComponent("observability")}
}

// Name returns "observability".
func (p *Provider) Name() string { return "observability" }

// Start installs the global providers when enabled.
func (p *Provider) Start(ctx context.Context) error {
	if !p.cfg.Enabled {
		p.log.Debug("observability disabled")
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	tp, err := InitTracer(ctx, p.cfg.TracerConfig(p.service, p.version))
	if err != nil {
		return fmt.Errorf("observability: %w", err)
	}
	mp, err := InitMeter(ctx, p.cfg.MeterConfig(p.service, p.version))
	if err != nil {
		_ = tp.Shutdown(ctx)
		return fmt.Errorf("observability: %w", err)
	}
	p.tracer, p.meter = tp, mp
	p.log.Info("otlp exporters initialized", logger.Fields(
		"endpoint", p.cfg.Endpoint,
		"sample_rate", p.cfg.SampleRate,
		"interval", p.cfg.Interval.String(),
	))
	return nil
}

// Stop flushes and shuts down the providers.
func (p *Provider) Stop(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var errs []error
	if p.tracer != nil {
		errs = append(errs, p.tracer.Shutdown(ctx))
		p.tracer = nil
	}
	if p.meter != nil {
		errs = append(errs, p.meter.Shutdown(ctx))
		p.meter = nil
	}
	return stderrors.Join(errs...)
}

// Health is always healthy; export failures are reported by the SDK.
func (p *Provider) Health(_ context.Context) component.Health {
	return component.Health{Name: p.Name(), Status: component.StatusHealthy}
}

// Describe implements component.Describable.
func (p *Provider) Describe() component.Description {
	details := "disabled"
	if p.cfg.Enabled {
		details = "otlp http " + p.cfg.Endpoint
	}
	return component.Description{Name: "Observability", Type: "telemetry", Details: details}
}
