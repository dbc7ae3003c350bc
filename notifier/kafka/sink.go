// Package kafka publishes notifications to a Kafka topic, keyed by job id.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/kbukum/whisperserver/component"
	"github.com/kbukum/whisperserver/errors"
	"github.com/kbukum/whisperserver/logger"
	"github.com/kbukum/whisperserver/notifier"
)

// messageWriter is the part of *kafkago.Writer the sink uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Sink implements notifier.Sink and component.Component over a kafka-go Writer.
type Sink struct {
	cfg    Config
	writer messageWriter
	log    *logger.Logger

	mu     sync.RWMutex
	closed bool
}

var (
	_ notifier.Sink       = (*Sink)(nil)
	_ component.Component = (*Sink)(nil)
)

// New creates the sink. The writer connects lazily on first publish.
func New(cfg Config, log *logger.Logger) (*Sink, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("kafka sink config: %w", err)
	}
	transport, err := newTransport(&cfg)
	if err != nil {
		return nil, fmt.Errorf("kafka sink transport: %w", err)
	}
	s := &Sink{cfg: cfg, log: log.WithComponent("notifier.kafka")}
	s.writer = &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Transport:    transport,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequiredAcks(cfg.RequiredAcks),
		Compression:  resolveCompression(cfg.Compression),
		WriteTimeout: parseDuration(cfg.WriteTimeout),
		MaxAttempts:  1,
		ErrorLogger: kafkago.LoggerFunc(func(msg string, args ...interface{}) {
			s.log.Error("writer: "+fmt.Sprintf(msg, args...))
		}),
	}
	return s, nil
}

// Message builds the record published for n.
func (s *Sink) Message(n notifier.Notification) (kafkago.Message, error) {
	data, err := json.Marshal(n.Payload())
	if err != nil {
		return kafkago.Message{}, err
	}
	return kafkago.Message{
		Key:   []byte(n.JobID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "content-type", Value: []byte("application/json")},
		},
	}, nil
}

// Name returns "kafka".
func (s *Sink) Name() string { return "kafka" }

// Notify publishes n once.
func (s *Sink) Notify(ctx context.Context, n notifier.Notification) error {
	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return errors.NotifyFailed(s.Name(), fmt.Errorf("sink is closed"))
	}

	msg, err := s.Message(n)
	if err != nil {
		return errors.NotifyFailed(s.Name(), err)
	}
	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		return errors.NotifyFailed(s.Name(), err)
	}
	return nil
}

// Start implements component.Component.
func (s *Sink) Start(_ context.Context) error {
	s.log.Info("kafka sink ready", logger.Fields("brokers", s.cfg.Brokers, "topic", s.cfg.Topic))
	return nil
}

// Stop closes the writer. It is idempotent.
func (s *Sink) Stop(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.writer.Close()
}

// Health reports unhealthy once the sink is closed.
func (s *Sink) Health(_ context.Context) component.Health {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return component.Health{Name: s.Name(), Status: component.StatusUnhealthy, Message: "closed"}
	}
	return component.Health{Name: s.Name(), Status: component.StatusHealthy}
}

// Describe implements component.Describable.
func (s *Sink) Describe() component.Description {
	return component.Description{
		Name:    "Kafka sink",
		Type:    "notifier",
		Details: fmt.Sprintf("brokers=%s topic=%s", strings.Join(s.cfg.Brokers, ","), s.cfg.Topic),
	}
}
