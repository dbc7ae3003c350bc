package pipeline

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/kbukum/whisperserver/errors"
	"github.com/kbukum/whisperserver/job"
	"github.com/kbukum/whisperserver/logger"
	"github.com/kbukum/whisperserver/notifier"
	"github.com/kbukum/whisperserver/observability"
	"github.com/kbukum/whisperserver/sse"
	"github.com/kbukum/whisperserver/transcription"
)

// CanceledMessage is sent when the request ends before the job does.
const CanceledMessage = "Transcription cancelled"

// Normalizer converts a job's audio when its format requires it.
type Normalizer interface {
	NeedsConversion(path string) bool
	Normalize(ctx context.Context, j *job.Job) (bool, error)
}

// Emitter receives the job's progress events. *sse.Stream implements it.
type Emitter interface {
	Processing(msg string) error
	Complete(text string) error
	Fail(msg string) error
	Close()
}

// Dispatcher forwards completed transcripts. *notifier.Dispatcher implements it.
type Dispatcher interface {
	Dispatch(n notifier.Notification)
}

var (
	_ Emitter    = (*sse.Stream)(nil)
	_ Dispatcher = (*notifier.Dispatcher)(nil)
)

// Config configures the orchestrator.
type Config struct {
	// ProcessingMessage is the text of the first event.
	ProcessingMessage string `yaml:"processing_message" mapstructure:"processing_message"`
	// Language is passed to the engine; empty keeps the engine default.
	Language string `yaml:"language" mapstructure:"language"`
}

// ApplyDefaults applies default values.
func (c *Config) ApplyDefaults() {
	if c.ProcessingMessage == "" {
		c.ProcessingMessage = sse.DefaultProcessingMessage
	}
}

// Orchestrator drives jobs through normalization and transcription.
type Orchestrator struct {
	cfg        Config
	normalizer Normalizer
	engine     transcription.Engine
	notify     Dispatcher
	metrics    *observability.Metrics
	log        *logger.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithDispatcher sets the notifier for completed jobs.
func WithDispatcher(d Dispatcher) Option {
	return func(o *Orchestrator) { o.notify = d }
}

// WithMetrics records job metrics on m.
func WithMetrics(m *observability.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// New creates an Orchestrator.
func New(cfg Config, normalizer Normalizer, engine transcription.Engine, log *logger.Logger, opts ...Option) *Orchestrator {
	cfg.ApplyDefaults()
	o := &Orchestrator{
		cfg:        cfg,
		normalizer: normalizer,
		engine:     engine,
		log:        log.WithComponent("pipeline"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run processes j and reports its progress on em. It returns the error
// the job failed with, or nil when it completed. Whatever the outcome, the
// job's files are removed and it ends Cleaned before Run returns. ctx is
// passed to every stage; ending it cancels the running subprocess.
func (o *Orchestrator) Run(ctx context.Context, j *job.Job, em Emitter) (err error) {
	start := time.Now()
	log := o.log.WithJob(j.ID)
	ctx, span := observability.StartSpan(ctx, observability.SpanPipelineRun,
		attribute.String(observability.AttrJobID, j.ID),
		attribute.String(observability.AttrContentType, j.ContentType),
		attribute.Int64(observability.AttrSize, j.Size),
	)

	defer func() {
		if r := recover(); r != nil {
			err = errors.Internal(fmt.Errorf("pipeline panic: %v", r))
			log.Error("pipeline panicked", logger.Fields("panic", fmt.Sprint(r), "stack", string(debug.Stack())))
		}
		o.finish(j, em, err, log)
		span.SetAttributes(attribute.String(observability.AttrStatus, string(terminalStatus(err))))
		observability.EndSpan(span, err)
		o.metrics.RecordJob(context.WithoutCancel(ctx), string(terminalStatus(err)), string(errors.KindOfError(err)), time.Since(start))
		log.Info("job finished", logger.Fields(
			logger.FieldStatus, terminalStatus(err),
			logger.FieldDuration, time.Since(start).Milliseconds(),
		))
	}()

	log.Info("job started", logger.Fields(
		"file", j.OriginalName,
		"content_type", j.ContentType,
		logger.FieldBytes, j.Size,
	))
	if perr := em.Processing(o.cfg.ProcessingMessage); perr != nil {
		return errors.Internal(perr)
	}
	return o.process(ctx, j)
}

func (o *Orchestrator) process(ctx context.Context, j *job.Job) error {
	if o.normalizer != nil && o.normalizer.NeedsConversion(j.SourcePath()) {
		if err := j.Transition(job.StatusConverting); err != nil {
			return errors.Internal(err)
		}
		if err := o.normalize(ctx, j); err != nil {
			return err
		}
	}

	if err := j.Transition(job.StatusTranscribing); err != nil {
		return errors.Internal(err)
	}
	text, err := o.transcribe(ctx, j)
	if err != nil {
		return err
	}
	if err := j.Complete(text); err != nil {
		return errors.Internal(err)
	}
	return nil
}

func (o *Orchestrator) normalize(ctx context.Context, j *job.Job) (err error) {
	ctx, span := observability.StartSpan(ctx, observability.SpanPipelineNormalize,
		attribute.String(observability.AttrJobID, j.ID))
	defer func() { observability.EndSpan(span, err) }()

	converted, err := o.normalizer.Normalize(ctx, j)
	span.SetAttributes(attribute.Bool(observability.AttrConverted, converted))
	return err
}

func (o *Orchestrator) transcribe(ctx context.Context, j *job.Job) (_ string, err error) {
	ctx, span := observability.StartSpan(ctx, observability.SpanPipelineTranscribe,
		attribute.String(observability.AttrJobID, j.ID),
		attribute.String(observability.AttrEngine, o.engine.Name()))
	defer func() { observability.EndSpan(span, err) }()

	out, err := j.Workspace().Allocate(".transcript" + transcription.OutputExt)
	if err != nil {
		return "", errors.EngineFailed("Transcription failed", err)
	}
	j.SetEnginePath(out)

	res, err := o.engine.Transcribe(ctx, transcription.Request{
		AudioPath:  j.AudioPath(),
		OutputBase: strings.TrimSuffix(out, transcription.OutputExt),
		Language:   o.cfg.Language,
	})
	if err != nil {
		return "", err
	}
	o.log.WithJob(j.ID).Debug("transcribed", logger.Fields(
		"engine", o.engine.Name(),
		logger.FieldDuration, res.Duration.Milliseconds(),
		"chars", len(res.Text),
	))
	return res.Text, nil
}

// finish emits the terminal event, notifies on success and cleans up.
func (o *Orchestrator) finish(j *job.Job, em Emitter, runErr error, log *logger.Logger) {
	if runErr == nil {
		if err := em.Complete(j.Transcript()); err != nil {
			log.Warn("complete event not sent", logger.ErrorFields("emit", err))
		}
		if o.notify != nil {
			o.notify.Dispatch(notifier.Notification{
				JobID:      j.ID,
				Username:   j.RequesterTag,
				Transcript: j.Transcript(),
			})
		}
	} else {
		if err := j.Fail(runErr); err != nil {
			log.Warn("job not marked failed", logger.ErrorFields("fail", err))
		}
		log.WithError(runErr).Warn("job failed", logger.Fields(logger.FieldKind, errors.KindOfError(runErr)))
		if err := em.Fail(FailureMessage(runErr)); err != nil {
			log.Debug("error event not sent", logger.ErrorFields("emit", err))
		}
	}
	em.Close()

	if ws := j.Workspace(); ws != nil {
		if err := ws.Cleanup(); err != nil {
			log.Error("cleanup incomplete", logger.ErrorFields("cleanup", err))
		}
	}
	if err := j.Transition(job.StatusCleaned); err != nil {
		log.Error("job not cleaned", logger.ErrorFields("transition", err))
	}
}

// FailureMessage is the client-facing text for err.
func FailureMessage(err error) string {
	if appErr, ok := errors.AsAppError(err); ok {
		return appErr.Message
	}
	if errors.KindOfError(err) == errors.KindCanceled {
		return CanceledMessage
	}
	return errors.Internal(err).Message
}

func terminalStatus(err error) job.Status {
	if err != nil {
		return job.StatusFailed
	}
	return job.StatusComplete
}
