package transcription

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/kbukum/whisperserver/errors"
	"github.com/kbukum/whisperserver/resilience"
)

// PoolConfig bounds concurrent engine runs.
type PoolConfig struct {
	// Size is the number of engine runs allowed at once.
	Size int `yaml:"size" mapstructure:"size" validate:"gte=0"`
	// MaxWait is how long a job waits for a free slot. Zero fails at once
	// when the pool is full.
	MaxWait time.Duration `yaml:"max_wait" mapstructure:"max_wait"`
}

// ApplyDefaults applies default values.
func (c *PoolConfig) ApplyDefaults() {
	if c.Size <= 0 {
		c.Size = 1
	}
}

// Pooled runs an engine on a bounded worker pool. When ctx ends the caller
// still waits for the engine to return, so its output file exists or not
// by the time the job workspace is cleaned up.
type Pooled struct {
	engine   Engine
	bulkhead *resilience.Bulkhead
}

var _ Engine = (*Pooled)(nil)

// NewPooled wraps engine with a pool sized by cfg.
func NewPooled(engine Engine, cfg PoolConfig) *Pooled {
	cfg.ApplyDefaults()
	return &Pooled{
		engine: engine,
		bulkhead: resilience.NewBulkhead(resilience.BulkheadConfig{
			Name:          "engine." + engine.Name(),
			MaxConcurrent: cfg.Size,
			MaxWait:       cfg.MaxWait,
		}),
	}
}

// Name returns the wrapped engine's name.
func (p *Pooled) Name() string { return p.engine.Name() }

// Check delegates to the wrapped engine.
func (p *Pooled) Check(ctx context.Context) error { return p.engine.Check(ctx) }

// Transcribe runs the wrapped engine on a pool slot. A pool that stays
// full past MaxWait yields an EngineBusy error.
func (p *Pooled) Transcribe(ctx context.Context, req Request) (*Result, error) {
	res, err := resilience.ExecuteWithResult(p.bulkhead, ctx, func(ctx context.Context) (*Result, error) {
		return p.engine.Transcribe(ctx, req)
	})
	if stderrors.Is(err, resilience.ErrBulkheadFull) || stderrors.Is(err, resilience.ErrBulkheadTimeout) {
		return nil, errors.EngineBusy().WithCause(err)
	}
	return res, err
}

// InUse returns the number of busy slots.
func (p *Pooled) InUse() int { return p.bulkhead.InUse() }

// Size returns the pool capacity.
func (p *Pooled) Size() int { return p.bulkhead.MaxConcurrent() }
