// Package cascade implements the displacement engine: it applies the payment
// matchers across a whole batch while honoring the one-payment-per-invoice
// invariant, letting a strictly better match evict a weaker existing one and
// re-queuing whatever was displaced, under depth, cycle and wall-clock bounds.
package cascade

import (
	"fmt"
	"time"
)

// Config bounds a displacement run.
type Config struct {
	// MaxDepth stops runaway propagation: an eviction chain deeper than this
	// halts without erroring.
	MaxDepth int `json:"max_depth"`

	// Timeout is the wall-clock budget for a whole run, checked between
	// queue pops.
	Timeout time.Duration `json:"timeout"`
}

// DefaultConfig returns the production defaults.
func DefaultConfig() *Config {
	return &Config{
		MaxDepth: 10,
		Timeout:  30 * time.Second,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.MaxDepth <= 0 {
		return fmt.Errorf("max depth must be positive: %d", c.MaxDepth)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive: %s", c.Timeout)
	}
	return nil
}

// Clone creates a copy of the configuration.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}
