// Package notifier forwards finished transcripts to downstream systems.
// Delivery is best-effort: it never blocks the job that produced the
// transcript and is never retried.
package notifier

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kbukum/whisperserver/component"
	"github.com/kbukum/whisperserver/errors"
	"github.com/kbukum/whisperserver/logger"
)

// Notification is what downstream systems receive for a completed job.
type Notification struct {
	JobID      string
	Username   string
	Transcript string
}

// Payload is the JSON body shared by every sink.
type Payload struct {
	Username   string `json:"username"`
	Transcript string `json:"transcript"`
}

// Payload returns the wire body of n.
func (n Notification) Payload() Payload {
	return Payload{Username: n.Username, Transcript: n.Transcript}
}

// Sink delivers a notification to one downstream system.
type Sink interface {
	Name() string
	Notify(ctx context.Context, n Notification) error
}

// Config configures the dispatcher.
type Config struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
	// Timeout bounds each delivery. It is independent of the request.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// ApplyDefaults applies default values.
func (c *Config) ApplyDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithFailureHook registers fn to be called with the sink name after a
// failed delivery. It must not block.
func WithFailureHook(fn func(sink string)) Option {
	return func(d *Dispatcher) { d.onFailure = fn }
}

// Dispatcher fans notifications out to its sinks on detached goroutines.
type Dispatcher struct {
	sinks     []Sink
	timeout   time.Duration
	log       *logger.Logger
	onFailure func(sink string)

	wg        sync.WaitGroup
	mu        sync.Mutex
	closed    bool
	delivered atomic.Int64
	failed    atomic.Int64
}

var _ component.Component = (*Dispatcher)(nil)

// NewDispatcher creates a dispatcher for sinks.
func NewDispatcher(cfg Config, log *logger.Logger, sinks []Sink, opts ...Option) *Dispatcher {
	cfg.ApplyDefaults()
	d := &Dispatcher{
		sinks:   sinks,
		timeout: cfg.Timeout,
		log:     log.WithComponent("notifier"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch starts delivery of n to every sink and returns immediately.
// After Stop it only logs that the notification was dropped.
func (d *Dispatcher) Dispatch(n Notification) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		d.log.WithJob(n.JobID).Warn("dispatcher stopped, notification dropped")
		return
	}
	d.wg.Add(len(d.sinks))
	d.mu.Unlock()

	for _, s := range d.sinks {
		go d.deliver(s, n)
	}
}

func (d *Dispatcher) deliver(s Sink, n Notification) {
	defer d.wg.Done()
	log := d.log.WithJob(n.JobID).WithFields(logger.Fields(logger.FieldSink, s.Name()))
	defer func() {
		if r := recover(); r != nil {
			d.record(s, log, errors.NotifyFailed(s.Name(), fmt.Errorf("panic: %v", r)), 0)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	start := time.Now()
	err := s.Notify(ctx, n)
	d.record(s, log, err, time.Since(start))
}

func (d *Dispatcher) record(s Sink, log *logger.Logger, err error, took time.Duration) {
	if err == nil {
		d.delivered.Add(1)
		log.Debug("notification delivered", logger.Fields(logger.FieldDuration, took.Milliseconds()))
		return
	}
	d.failed.Add(1)
	log.Warn("notification failed", logger.Fields(
		logger.FieldError, err.Error(),
		logger.FieldDuration, took.Milliseconds(),
	))
	if d.onFailure != nil {
		d.onFailure(s.Name())
	}
}

// Wait blocks until every started delivery has finished.
func (d *Dispatcher) Wait() { d.wg.Wait() }

// Delivered returns the number of successful deliveries.
func (d *Dispatcher) Delivered() int64 { return d.delivered.Load() }

// Failed returns the number of failed deliveries.
func (d *Dispatcher) Failed() int64 { return d.failed.Load() }

// Sinks returns the configured sink names.
func (d *Dispatcher) Sinks() []string {
	names := make([]string, len(d.sinks))
	for i, s := range d.sinks {
		names[i] = s.Name()
	}
	return names
}

// Name implements component.Component.
func (d *Dispatcher) Name() string { return "notifier" }

// Start implements component.Component.
func (d *Dispatcher) Start(_ context.Context) error { return nil }

// Stop refuses new notifications and waits for in-flight deliveries
// until ctx ends.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("notifier: deliveries still in flight: %w", ctx.Err())
	}
}

// Health is always healthy. Delivery is best effort, so failures show up
// in the log and the failure counter only.
func (d *Dispatcher) Health(_ context.Context) component.Health {
	return component.Health{
		Name:    d.Name(),
		Status:  component.StatusHealthy,
		Message: fmt.Sprintf("delivered=%d failed=%d", d.Delivered(), d.Failed()),
	}
}

// Describe implements component.Describable.
func (d *Dispatcher) Describe() component.Description {
	return component.Description{
		Name:    d.Name(),
		Type:    "notifier",
		Details: fmt.Sprintf("sinks=%v timeout=%s", d.Sinks(), d.timeout),
	}
}
