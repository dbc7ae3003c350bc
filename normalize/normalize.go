// Package normalize converts uploads the engine cannot read into 16 kHz
// mono PCM WAV.
package normalize

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kbukum/whisperserver/errors"
	"github.com/kbukum/whisperserver/job"
	"github.com/kbukum/whisperserver/logger"
)

// Suffix is appended to the job id to name the converted file.
const Suffix = ".16k.wav"

// Converter turns the audio at in into engine-ready audio at out.
type Converter interface {
	Convert(ctx context.Context, in, out string) error
}

// ConverterFunc adapts a function to Converter.
type ConverterFunc func(ctx context.Context, in, out string) error

func (f ConverterFunc) Convert(ctx context.Context, in, out string) error { return f(ctx, in, out) }

// Checker is implemented by converters that depend on an external tool
// and can verify it before the first job.
type Checker interface {
	Check(ctx context.Context) error
}

// Config selects which uploads are converted.
type Config struct {
	// Extensions trigger conversion, matched case-insensitively against
	// the stored file name. Defaults to [".webm"].
	Extensions []string `yaml:"extensions" mapstructure:"extensions"`
}

// ApplyDefaults applies default values.
func (c *Config) ApplyDefaults() {
	if len(c.Extensions) == 0 {
		c.Extensions = []string{".webm"}
	}
}

// Normalizer decides whether a job needs conversion and runs it.
type Normalizer struct {
	converter  Converter
	extensions map[string]bool
	log        *logger.Logger
}

// New creates a Normalizer.
func New(cfg Config, converter Converter, log *logger.Logger) *Normalizer {
	cfg.ApplyDefaults()
	exts := make(map[string]bool, len(cfg.Extensions))
	for _, e := range cfg.Extensions {
		exts[strings.ToLower(e)] = true
	}
	return &Normalizer{converter: converter, extensions: exts, log: log.WithComponent("normalizer")}
}

// NeedsConversion reports whether the file at path is converted. The
// decision uses the extension only.
func (n *Normalizer) NeedsConversion(path string) bool {
	return n.extensions[strings.ToLower(filepath.Ext(path))]
}

// Normalize converts the job's source when needed and records the output
// as the job's normalized path. It reports whether a conversion ran. The
// output path belongs to the job workspace before the converter starts; the
// source is left untouched.
func (n *Normalizer) Normalize(ctx context.Context, j *job.Job) (bool, error) {
	src := j.SourcePath()
	if !n.NeedsConversion(src) {
		return false, nil
	}

	out, err := j.Workspace().Allocate(Suffix)
	if err != nil {
		return true, errors.ConversionFailed(err)
	}
	if err := j.SetNormalizedPath(out); err != nil {
		return true, errors.ConversionFailed(err)
	}

	start := time.Now()
	if err := n.converter.Convert(ctx, src, out); err != nil {
		if ctx.Err() != nil {
			return true, err
		}
		if _, ok := errors.AsAppError(err); ok {
			return true, err
		}
		return true, errors.ConversionFailed(err)
	}

	info, err := os.Stat(out)
	switch {
	case err != nil:
		return true, errors.ConversionFailed(err).WithDetail("reason", "converter produced no output")
	case info.Size() == 0:
		return true, errors.ConversionFailed(nil).WithDetail("reason", "converter produced an empty file")
	}

	n.log.WithJob(j.ID).Debug("audio converted", logger.Fields(
		logger.FieldDuration, time.Since(start).Milliseconds(),
		logger.FieldBytes, info.Size(),
	))
	return true, nil
}
