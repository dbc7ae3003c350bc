// Package whispercpp runs the whisper.cpp command-line tool as a
// transcription engine.
package whispercpp

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/kbukum/whisperserver/errors"
	"github.com/kbukum/whisperserver/logger"
	"github.com/kbukum/whisperserver/process"
	"github.com/kbukum/whisperserver/transcription"
)

// Name is the registered engine name.
const Name = "whispercpp"

// binaryInDir is where a whisper.cpp checkout puts the CLI after a cmake build.
const binaryInDir = "build/bin/whisper-cli"

// Config configures the whisper.cpp engine.
type Config struct {
	// Dir is a whisper.cpp checkout. When Binary is empty the executable
	// is taken from Dir/build/bin/whisper-cli.
	Dir string `yaml:"dir" mapstructure:"dir"`
	// Binary is the whisper-cli executable, a path or a name on PATH.
	Binary string `yaml:"binary" mapstructure:"binary"`
	// Model is the ggml model file.
	Model string `yaml:"model" mapstructure:"model" validate:"required"`
	// Threads is passed as -t when positive.
	Threads int `yaml:"threads" mapstructure:"threads" validate:"gte=0"`
	// Language is passed as -l unless the request sets one.
	Language string `yaml:"language" mapstructure:"language"`
	// ExtraArgs are appended after the generated arguments.
	ExtraArgs []string `yaml:"extra_args" mapstructure:"extra_args"`
}

// ApplyDefaults resolves Binary from Dir.
func (c *Config) ApplyDefaults() {
	if c.Binary != "" {
		return
	}
	if c.Dir != "" {
		c.Binary = filepath.Join(c.Dir, binaryInDir)
		return
	}
	c.Binary = "whisper-cli"
}

// Engine implements transcription.Engine with whisper-cli.
type Engine struct {
	cfg    Config
	runner process.Runner
	log    *logger.Logger
}

var _ transcription.Engine = (*Engine)(nil)

// New creates the engine. runner is usually a *process.Executor.
func New(cfg Config, runner process.Runner, log *logger.Logger) *Engine {
	cfg.ApplyDefaults()
	return &Engine{cfg: cfg, runner: runner, log: log.WithComponent("engine")}
}

// Name returns the engine name.
func (e *Engine) Name() string { return Name }

// Binary returns the resolved executable.
func (e *Engine) Binary() string { return e.cfg.Binary }

// Check verifies the executable and the model exist.
func (e *Engine) Check(_ context.Context) error {
	if _, err := process.CheckExecutable(e.cfg.Binary); err != nil {
		return errors.StartupFailed("whisper executable not found at "+e.cfg.Binary, err)
	}
	if e.cfg.Model == "" {
		return errors.StartupFailed("whisper model path is not configured", nil)
	}
	info, err := os.Stat(e.cfg.Model)
	if err != nil {
		return errors.StartupFailed("whisper model not found at "+e.cfg.Model, err)
	}
	if info.IsDir() {
		return errors.StartupFailed("whisper model "+e.cfg.Model+" is a directory", nil)
	}
	return nil
}

// Args builds the whisper-cli arguments for req.
func (e *Engine) Args(req transcription.Request) []string {
	args := []string{
		"-m", e.cfg.Model,
		"-f", req.AudioPath,
		"-of", req.OutputBase,
		"-otxt",
		"-np",
	}
	lang := e.cfg.Language
	if req.Language != "" {
		lang = req.Language
	}
	if lang != "" {
		args = append(args, "-l", lang)
	}
	if e.cfg.Threads > 0 {
		args = append(args, "-t", strconv.Itoa(e.cfg.Threads))
	}
	return append(args, e.cfg.ExtraArgs...)
}

// Transcribe runs whisper-cli and reads <OutputBase>.txt.
func (e *Engine) Transcribe(ctx context.Context, req transcription.Request) (*transcription.Result, error) {
	start := time.Now()
	res, err := e.runner.Run(ctx, process.Command{Binary: e.cfg.Binary, Args: e.Args(req)})
	if err != nil {
		return nil, e.runError(ctx, err)
	}

	text, err := transcription.ReadOutput(req)
	if err != nil {
		return nil, err
	}
	d := time.Since(start)
	if res != nil && res.Duration > 0 {
		d = res.Duration
	}
	e.log.Debug("whisper-cli finished", logger.Fields(
		logger.FieldDuration, d.Milliseconds(),
		logger.FieldBytes, len(text),
	))
	return &transcription.Result{Text: text, OutputPath: req.OutputPath(), Duration: d}, nil
}

func (e *Engine) runError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("whispercpp: %w", err)
	}
	var exitErr *process.ExitError
	if stderrors.As(err, &exitErr) {
		e.log.Warn("whisper-cli failed", logger.Fields(
			"exit_code", exitErr.ExitCode,
			"stderr", exitErr.Stderr,
		))
		return errors.EngineFailed(fmt.Sprintf("Transcription failed: whisper-cli exited with code %d", exitErr.ExitCode), err)
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return errors.EngineFailed("Transcription timed out", err)
	}
	return errors.EngineFailed("Transcription failed: could not run whisper-cli", err)
}
