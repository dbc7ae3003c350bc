package process

import (
	"context"
	"time"
)

// Config holds defaults applied to every command run by an Executor.
type Config struct {
	// GracePeriod is the default grace period between SIGTERM and SIGKILL.
	GracePeriod time.Duration `yaml:"grace_period,omitempty" mapstructure:"grace_period"`
	// Timeout bounds each execution. Zero means no timeout.
	Timeout time.Duration `yaml:"timeout,omitempty" mapstructure:"timeout"`
}

// Executor is the default Runner, applying Config to each command.
type Executor struct {
	config Config
}

var _ Runner = (*Executor)(nil)

// NewExecutor creates a new Executor.
func NewExecutor(cfg Config) *Executor {
	return &Executor{config: cfg}
}

// Run executes a command, applying executor-level defaults.
func (e *Executor) Run(ctx context.Context, cmd Command) (*Result, error) {
	if cmd.GracePeriod == 0 && e.config.GracePeriod > 0 {
		cmd.GracePeriod = e.config.GracePeriod
	}
	if e.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.config.Timeout)
		defer cancel()
	}
	return Run(ctx, cmd)
}
