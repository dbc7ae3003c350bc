// Package webhook delivers notifications as a JSON POST.
package webhook

import (
	"context"
	"net/http"
	"time"

	"github.com/kbukum/whisperserver/errors"
	"github.com/kbukum/whisperserver/httpclient"
	"github.com/kbukum/whisperserver/notifier"
	"github.com/kbukum/whisperserver/security"
)

// DefaultURL is the downstream meeting-notes endpoint.
const DefaultURL = "https://briefly-ai-ten.vercel.app/api/meet"

// Config configures the webhook sink.
type Config struct {
	Enabled bool                  `yaml:"enabled" mapstructure:"enabled"`
	URL     string                `yaml:"url" mapstructure:"url" validate:"omitempty,url"`
	Headers map[string]string     `yaml:"headers" mapstructure:"headers"`
	Timeout time.Duration         `yaml:"timeout" mapstructure:"timeout"`
	Auth    httpclient.AuthConfig `yaml:"auth" mapstructure:"auth"`
	TLS     security.TLSConfig    `yaml:"tls" mapstructure:"tls"`
}

// ApplyDefaults applies default values.
func (c *Config) ApplyDefaults() {
	if c.URL == "" {
		c.URL = DefaultURL
	}
	if c.Timeout <= 0 {
		c.Timeout = 15 * time.Second
	}
}

// Sink posts {"username","transcript"} to the configured URL.
type Sink struct {
	url    string
	client *httpclient.Client
}

var _ notifier.Sink = (*Sink)(nil)

// New creates the sink.
func New(cfg Config) (*Sink, error) {
	cfg.ApplyDefaults()
	hc := httpclient.Config{Timeout: cfg.Timeout, Headers: cfg.Headers, Auth: &cfg.Auth, TLS: &cfg.TLS}
	client, err := httpclient.New(hc)
	if err != nil {
		return nil, err
	}
	return &Sink{url: cfg.URL, client: client}, nil
}

// Name returns "webhook".
func (s *Sink) Name() string { return "webhook" }

// URL returns the target URL.
func (s *Sink) URL() string { return s.url }

// Notify posts n. Any non-2xx status is a failure.
func (s *Sink) Notify(ctx context.Context, n notifier.Notification) error {
	_, err := s.client.Do(ctx, httpclient.Request{
		Method: http.MethodPost,
		Path:   s.url,
		Body:   n.Payload(),
	})
	if err != nil {
		return errors.NotifyFailed(s.Name(), err)
	}
	return nil
}
