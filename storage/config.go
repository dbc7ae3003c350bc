package storage

import (
	"fmt"
	"time"
)

// Config configures the temp storage manager.
type Config struct {
	// Dir holds all job files. Created at startup if missing.
	Dir string `yaml:"dir" mapstructure:"dir"`
	// SweepAge is the age after which files left behind by a previous
	// process are removed at startup. Zero disables the sweep.
	SweepAge time.Duration `yaml:"sweep_age" mapstructure:"sweep_age"`
}

// ApplyDefaults applies default values.
func (c *Config) ApplyDefaults() {
	if c.Dir == "" {
		c.Dir = "uploads"
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Dir == "" {
		return fmt.Errorf("storage.dir is required")
	}
	if c.SweepAge < 0 {
		return fmt.Errorf("storage.sweep_age must not be negative")
	}
	return nil
}
