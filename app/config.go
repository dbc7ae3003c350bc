package app

import (
	"fmt"
	"slices"
	"time"

	"github.com/kbukum/whisperserver/config"
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
	"github.com/kbukum/whisperserver/transcription/openai"
	"github.com/kbukum/whisperserver/transcription/whispercpp"
	"github.com/kbukum/whisperserver/upload"
	"github.com/kbukum/whisperserver/validation"
	"github.com/kbukum/whisperserver/version"
)

// Config is the whole service configuration. It is built once at startup
// and read-only afterwards.
type Config struct {
	config.ServiceConfig `yaml:",inline" mapstructure:",squash"`

	Server        server.Config            `yaml:"server" mapstructure:"server"`
	Upload        upload.Config            `yaml:"upload" mapstructure:"upload"`
	Storage       storage.Config           `yaml:"storage" mapstructure:"storage"`
	Engine        EngineConfig             `yaml:"engine" mapstructure:"engine"`
	Converter     ConverterConfig          `yaml:"converter" mapstructure:"converter"`
	Pool          transcription.PoolConfig `yaml:"pool" mapstructure:"pool"`
	Pipeline      pipeline.Config          `yaml:"pipeline" mapstructure:"pipeline"`
	Notifier      NotifierConfig           `yaml:"notifier" mapstructure:"notifier"`
	Observability observability.Config     `yaml:"observability" mapstructure:"observability"`
}

// EngineConfig selects the transcription engine and holds the settings of
// each one. Only the selected engine's section is validated.
type EngineConfig struct {
	Type       string            `yaml:"type" mapstructure:"type"`
	WhisperCPP whispercpp.Config `yaml:"whispercpp" mapstructure:"whispercpp"`
	OpenAI     openai.Config     `yaml:"openai" mapstructure:"openai"`
	// Process applies to engines run as subprocesses.
	Process process.Config `yaml:"process" mapstructure:"process"`
}

// ConverterConfig holds the normalizer and its ffmpeg converter.
type ConverterConfig struct {
	normalize.Config `yaml:",inline" mapstructure:",squash"`
	FFmpeg           ffmpeg.Config  `yaml:"ffmpeg" mapstructure:"ffmpeg"`
	Process          process.Config `yaml:"process" mapstructure:"process"`
}

// NotifierConfig holds the dispatcher and its sinks.
type NotifierConfig struct {
	notifier.Config `yaml:",inline" mapstructure:",squash"`
	Webhook         webhook.Config `yaml:"webhook" mapstructure:"webhook"`
	Kafka           kafka.Config   `yaml:"kafka" mapstructure:"kafka"`
}

// ApplyDefaults applies defaults to every section.
func (c *Config) ApplyDefaults() {
	if c.Name == "" {
		c.Name = version.ServiceName
	}
	c.ServiceConfig.ApplyDefaults()
	c.Server.ApplyDefaults()
	c.Upload.ApplyDefaults()
	c.Storage.ApplyDefaults()

	if c.Engine.Type == "" {
		c.Engine.Type = whispercpp.Name
	}
	c.Engine.WhisperCPP.ApplyDefaults()
	c.Engine.OpenAI.ApplyDefaults()
	if c.Engine.Process.GracePeriod == 0 {
		c.Engine.Process.GracePeriod = 5 * time.Second
	}

	c.Converter.Config.ApplyDefaults()
	c.Converter.FFmpeg.ApplyDefaults()
	if c.Converter.Process.GracePeriod == 0 {
		c.Converter.Process.GracePeriod = 5 * time.Second
	}

	c.Pool.ApplyDefaults()
	if c.Pool.MaxWait == 0 {
		c.Pool.MaxWait = 10 * time.Minute
	}
	c.Pipeline.ApplyDefaults()

	c.Notifier.Config.ApplyDefaults()
	c.Notifier.Webhook.ApplyDefaults()
	c.Notifier.Kafka.ApplyDefaults()

	if c.Observability.Environment == "" {
		c.Observability.Environment = c.Environment
	}
	c.Observability.ApplyDefaults()
}

// Validate checks every section. Call ApplyDefaults first.
func (c *Config) Validate() error {
	if err := c.ServiceConfig.Validate(); err != nil {
		return err
	}
	if err := c.Server.Validate(); err != nil {
		return err
	}
	if err := c.Upload.Validate(); err != nil {
		return err
	}
	if err := c.Storage.Validate(); err != nil {
		return err
	}
	if err := c.Engine.Validate(); err != nil {
		return err
	}
	if err := validation.Validate(c.Converter.FFmpeg); err != nil {
		return fmt.Errorf("converter.ffmpeg: %w", err)
	}
	if err := validation.Validate(c.Pool); err != nil {
		return fmt.Errorf("pool: %w", err)
	}
	if c.Pool.MaxWait < 0 {
		return fmt.Errorf("pool.max_wait must not be negative")
	}
	if err := c.Notifier.Validate(); err != nil {
		return err
	}
	if err := c.Observability.Validate(); err != nil {
		return fmt.Errorf("observability: %w", err)
	}
	return nil
}

// Validate checks the engine type and the selected engine's section.
func (c *EngineConfig) Validate() error {
	if !slices.Contains(EngineNames(), c.Type) {
		return fmt.Errorf("engine.type must be one of %v (got: %s)", EngineNames(), c.Type)
	}
	var err error
	switch c.Type {
	case whispercpp.Name:
		err = validation.Validate(c.WhisperCPP)
	case openai.Name:
		err = validation.Validate(c.OpenAI)
	}
	if err != nil {
		return fmt.Errorf("engine.%s: %w", c.Type, err)
	}
	return nil
}

// Validate checks the enabled sinks.
func (c *NotifierConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Webhook.Enabled {
		if err := validation.Validate(c.Webhook); err != nil {
			return fmt.Errorf("notifier.webhook: %w", err)
		}
		if err := c.Webhook.Auth.Validate(); err != nil {
			return fmt.Errorf("notifier.webhook: %w", err)
		}
		if err := c.Webhook.TLS.Validate(); err != nil {
			return fmt.Errorf("notifier.webhook: %w", err)
		}
	}
	if err := c.Kafka.Validate(); err != nil {
		return err
	}
	return nil
}
