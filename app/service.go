// Package app assembles the whisper server from its configuration.
package app

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/metric"

	"github.com/kbukum/whisperserver/bootstrap"
	"github.com/kbukum/whisperserver/component"
	"github.com/kbukum/whisperserver/logger"
	"github.com/kbukum/whisperserver/normalize"
	"github.com/kbukum/whisperserver/normalize/ffmpeg"
	"github.com/kbukum/whisperserver/notifier"
	"github.com/kbukum/whisperserver/notifier/kafka"
	"github.com/kbukum/whisperserver/notifier/webhook"
	"github.com/kbukum/whisperserver/observability"
	"github.com/kbukum/whisperserver/pipeline"
	"github.com/kbukum/whisperserver/process"
	"github.com/kbukum/whisperserver/server"
	"github.com/kbukum/whisperserver/storage"
	"github.com/kbukum/whisperserver/transcription"
	"github.com/kbukum/whisperserver/upload"
	"github.com/kbukum/whisperserver/util"
)

// Service holds every part of a running server.
type Service struct {
	Config *Config
	Log    *logger.Logger

	Telemetry  *observability.Provider
	Metrics    *observability.Metrics
	Store      *storage.Manager
	Receiver   *upload.Receiver
	Converter  *ffmpeg.Converter
	Normalizer *normalize.Normalizer
	Engine     *transcription.Pooled
	Kafka      *kafka.Sink
	Dispatcher *notifier.Dispatcher
	Pipeline   *pipeline.Orchestrator
	Server     *server.Server

	converter  normalize.Converter
	serverComp *server.ServerComponent
	poolGauge  metric.Registration
}

// Option adjusts a Service during New. Tests use it to swap the engine or
// the converter.
type Option func(*buildOptions)

type buildOptions struct {
	engine    transcription.Engine
	converter normalize.Converter
	sinks     []notifier.Sink
}

// WithEngine replaces the configured engine.
func WithEngine(e transcription.Engine) Option {
	return func(o *buildOptions) { o.engine = e }
}

// WithConverter replaces the ffmpeg converter.
func WithConverter(c normalize.Converter) Option {
	return func(o *buildOptions) { o.converter = c }
}

// WithSinks replaces the configured notifier sinks.
func WithSinks(sinks ...notifier.Sink) Option {
	return func(o *buildOptions) { o.sinks = sinks }
}

// New builds the service. cfg must have defaults applied and be valid.
// Nothing is started and no port is bound.
func New(cfg *Config, log *logger.Logger, opts ...Option) (*Service, error) {
	var o buildOptions
	for _, opt := range opts {
		opt(&o)
	}
	if log == nil {
		log = logger.Nop()
	}

	s := &Service{Config: cfg, Log: log}
	s.Telemetry = observability.NewProvider(cfg.Observability, cfg.Name, cfg.Version, log)

	metrics, err := observability.NewMetrics(nil)
	if err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}
	s.Metrics = metrics

	if s.Store, err = storage.NewManager(cfg.Storage, log); err != nil {
		return nil, err
	}
	if s.Receiver, err = upload.NewReceiver(cfg.Upload, s.Store, log); err != nil {
		return nil, err
	}

	s.Converter = ffmpeg.New(cfg.Converter.FFmpeg, process.NewExecutor(cfg.Converter.Process), log)
	s.converter = s.Converter
	if o.converter != nil {
		s.converter = o.converter
	}
	s.Normalizer = normalize.New(cfg.Converter.Config, s.converter, log)

	engine := o.engine
	if engine == nil {
		if engine, err = newEngineRegistry(cfg.Engine, log).Create(cfg.Engine.Type); err != nil {
			return nil, err
		}
	}
	s.Engine = transcription.NewPooled(engine, cfg.Pool)
	if s.poolGauge, err = s.Metrics.ObservePool(observability.Meter(), engine.Name(), s.Engine.InUse); err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}

	sinks := o.sinks
	if sinks == nil {
		if sinks, err = s.buildSinks(); err != nil {
			return nil, err
		}
	}
	s.Dispatcher = notifier.NewDispatcher(cfg.Notifier.Config, log, sinks,
		notifier.WithFailureHook(func(sink string) {
			s.Metrics.RecordNotifyFailure(context.Background(), sink)
		}),
	)

	s.Pipeline = pipeline.New(cfg.Pipeline, s.Normalizer, s.Engine, log,
		pipeline.WithDispatcher(s.Dispatcher),
		pipeline.WithMetrics(s.Metrics),
	)

	s.Server = server.New(cfg.Server, log)
	s.Server.RegisterRoutes(server.Routes{
		Receiver:    s.Receiver,
		Runner:      s.Pipeline,
		Health:      s.health,
		UploadLimit: util.ParseSize(cfg.Upload.MaxSize, 0) + uploadSlack,
	})
	s.Server.ApplyMiddleware()
	s.serverComp = server.NewComponent(s.Server)
	return s, nil
}

// uploadSlack is the allowance for multipart framing and the username
// field on top of the audio size limit.
const uploadSlack = 64 << 10

func (s *Service) buildSinks() ([]notifier.Sink, error) {
	cfg := s.Config.Notifier
	if !cfg.Enabled {
		return nil, nil
	}
	var sinks []notifier.Sink
	if cfg.Webhook.Enabled {
		wh, err := webhook.New(cfg.Webhook)
		if err != nil {
			return nil, fmt.Errorf("webhook sink: %w", err)
		}
		sinks = append(sinks, wh)
	}
	if cfg.Kafka.Enabled {
		k, err := kafka.New(cfg.Kafka, s.Log)
		if err != nil {
			return nil, fmt.Errorf("kafka sink: %w", err)
		}
		s.Kafka = k
		sinks = append(sinks, k)
	}
	return sinks, nil
}

// Components returns the lifecycle-managed parts in start order. The
// server comes last so it stops first and the dispatcher drains after the
// last request finished.
func (s *Service) Components() []component.Component {
	comps := []component.Component{s.Telemetry, s.Store}
	if s.Kafka != nil {
		comps = append(comps, s.Kafka)
	}
	return append(comps, s.Dispatcher, s.serverComp)
}

// Check verifies the engine and the converter in use. A failure is a
// StartupError. Converters without a Check have nothing to verify.
func (s *Service) Check(ctx context.Context) error {
	if err := s.Engine.Check(ctx); err != nil {
		return err
	}
	if c, ok := s.converter.(normalize.Checker); ok {
		return c.Check(ctx)
	}
	return nil
}

// Register adds the service to app: its startup check, its components
// and the gauge cleanup.
func (s *Service) Register(a *bootstrap.App[*Config]) error {
	a.Preflight(s.Check)
	for _, c := range s.Components() {
		if err := a.RegisterComponent(c); err != nil {
			return err
		}
	}
	a.OnStop(func(context.Context) error {
		if s.poolGauge == nil {
			return nil
		}
		return s.poolGauge.Unregister()
	})
	return nil
}

// health reports every component except the server, which is up by
// definition while it answers.
func (s *Service) health(ctx context.Context) []component.Health {
	var out []component.Health
	for _, c := range s.Components() {
		if c == component.Component(s.serverComp) {
			continue
		}
		h := c.Health(ctx)
		if h.Name == "" {
			h.Name = c.Name()
		}
		out = append(out, h)
	}
	return out
}
