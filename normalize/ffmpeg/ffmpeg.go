// Package ffmpeg implements normalize.Converter with the ffmpeg CLI.
package ffmpeg

import (
	"context"
	stderrors "errors"
	"fmt"
	"strconv"

	"github.com/kbukum/whisperserver/errors"
	"github.com/kbukum/whisperserver/logger"
	"github.com/kbukum/whisperserver/normalize"
	"github.com/kbukum/whisperserver/process"
)

// Config configures the converter.
type Config struct {
	// Binary is the ffmpeg executable, a path or a name on PATH.
	Binary     string `yaml:"binary" mapstructure:"binary"`
	SampleRate int    `yaml:"sample_rate" mapstructure:"sample_rate" validate:"gte=0"`
	Channels   int    `yaml:"channels" mapstructure:"channels" validate:"gte=0"`
}

// ApplyDefaults applies the values whisper.cpp expects.
func (c *Config) ApplyDefaults() {
	if c.Binary == "" {
		c.Binary = "ffmpeg"
	}
	if c.SampleRate == 0 {
		c.SampleRate = 16000
	}
	if c.Channels == 0 {
		c.Channels = 1
	}
}

// Converter runs ffmpeg through a process.Runner.
type Converter struct {
	cfg    Config
	runner process.Runner
	log    *logger.Logger
}

var (
	_ normalize.Converter = (*Converter)(nil)
	_ normalize.Checker   = (*Converter)(nil)
)

// New creates a Converter.
func New(cfg Config, runner process.Runner, log *logger.Logger) *Converter {
	cfg.ApplyDefaults()
	return &Converter{cfg: cfg, runner: runner, log: log.WithComponent("normalizer")}
}

// Check verifies the ffmpeg executable is present.
func (c *Converter) Check(_ context.Context) error {
	if _, err := process.CheckExecutable(c.cfg.Binary); err != nil {
		return errors.StartupFailed("ffmpeg not found at "+c.cfg.Binary, err)
	}
	return nil
}

// Args builds the ffmpeg arguments converting in to PCM WAV at out.
func (c *Converter) Args(in, out string) []string {
	return []string{
		"-hide_banner", "-nostdin", "-y",
		"-i", in,
		"-vn",
		"-ac", strconv.Itoa(c.cfg.Channels),
		"-ar", strconv.Itoa(c.cfg.SampleRate),
		"-c:a", "pcm_s16le",
		out,
	}
}

// Convert runs ffmpeg. A nonzero exit is a conversion failure; a canceled
// ctx is returned as such.
func (c *Converter) Convert(ctx context.Context, in, out string) error {
	_, err := c.runner.Run(ctx, process.Command{Binary: c.cfg.Binary, Args: c.Args(in, out)})
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return fmt.Errorf("ffmpeg: %w", err)
	}
	var exitErr *process.ExitError
	if stderrors.As(err, &exitErr) {
		c.log.Warn("ffmpeg failed", logger.Fields("exit_code", exitErr.ExitCode, "stderr", exitErr.Stderr))
	}
	return errors.ConversionFailed(err)
}
