// Package openai serves transcription through an OpenAI-compatible audio
// API (OpenAI, Groq, or a local server exposing /v1/audio/transcriptions).
package openai

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/kbukum/whisperserver/errors"
	"github.com/kbukum/whisperserver/logger"
	"github.com/kbukum/whisperserver/transcription"
)

// Name is the registered engine name.
const Name = "openai"

// Config configures the remote engine.
type Config struct {
	APIKey string `yaml:"api_key" mapstructure:"api_key"`
	// BaseURL overrides the API root, e.g. "https://api.groq.com/openai/v1".
	BaseURL  string        `yaml:"base_url" mapstructure:"base_url" validate:"omitempty,url"`
	Model    string        `yaml:"model" mapstructure:"model"`
	Language string        `yaml:"language" mapstructure:"language"`
	Timeout  time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// ApplyDefaults applies default values.
func (c *Config) ApplyDefaults() {
	if c.Model == "" {
		c.Model = goopenai.Whisper1
	}
	if c.Timeout == 0 {
		c.Timeout = 10 * time.Minute
	}
}

// Engine implements transcription.Engine with the audio transcription API.
type Engine struct {
	cfg    Config
	client *goopenai.Client
	log    *logger.Logger
}

var _ transcription.Engine = (*Engine)(nil)

// New creates the engine.
func New(cfg Config, log *logger.Logger) *Engine {
	cfg.ApplyDefaults()
	clientConfig := goopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	clientConfig.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	return &Engine{
		cfg:    cfg,
		client: goopenai.NewClientWithConfig(clientConfig),
		log:    log.WithComponent("engine"),
	}
}

// Name returns the engine name.
func (e *Engine) Name() string { return Name }

// Check requires an API key.
func (e *Engine) Check(_ context.Context) error {
	if e.cfg.APIKey == "" {
		return errors.StartupFailed("openai api key is not configured", nil)
	}
	return nil
}

// Transcribe uploads the audio and writes the returned text to
// <OutputBase>.txt.
func (e *Engine) Transcribe(ctx context.Context, req transcription.Request) (*transcription.Result, error) {
	lang := e.cfg.Language
	if req.Language != "" {
		lang = req.Language
	}

	start := time.Now()
	resp, err := e.client.CreateTranscription(ctx, goopenai.AudioRequest{
		Model:    e.cfg.Model,
		FilePath: req.AudioPath,
		Language: lang,
	})
	d := time.Since(start)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("openai: %w", ctx.Err())
		}
		e.log.Warn("transcription request failed", logger.Fields(
			logger.FieldError, err.Error(),
			logger.FieldDuration, d.Milliseconds(),
		))
		return nil, errors.EngineFailed("Transcription failed: "+apiMessage(err), err)
	}

	if err := transcription.WriteOutput(req, resp.Text); err != nil {
		return nil, err
	}
	return &transcription.Result{Text: resp.Text, OutputPath: req.OutputPath(), Duration: d}, nil
}

// apiMessage extracts a short reason from a client error.
func apiMessage(err error) string {
	var apiErr *goopenai.APIError
	if stderrors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	var reqErr *goopenai.RequestError
	if stderrors.As(err, &reqErr) {
		return fmt.Sprintf("remote engine returned status %d", reqErr.HTTPStatusCode)
	}
	return "remote engine unavailable"
}
