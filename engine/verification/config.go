package verification

import (
	"fmt"
	"time"
)

// Config holds the tunables of the consensus policy and the engine's intake
// queues.
type Config struct {
	// MinSimulators is the number of simulator results required before a
	// decision is computed outside the grace window.
	MinSimulators int
	// RiskThreshold is the aggregate risk score at or above which an intent
	// is blocked.
	RiskThreshold float64
	// VetoCeiling is the per-result risk score at or above which a single
	// non-approving result vetoes an otherwise passing average.
	VetoCeiling uint8
	// MaxVerificationWindow bounds how far in the future a deadline may lie.
	MaxVerificationWindow time.Duration
	// GraceFraction is the final fraction of the verification window during
	// which a decision may be computed from fewer than MinSimulators results.
	GraceFraction float64
	// QueueCapacity bounds the engine's event intake queues.
	QueueCapacity int
}

// DefaultConfig returns the default consensus policy.
func DefaultConfig() Config {
	return Config{
		MinSimulators:         2,
		RiskThreshold:         50,
		VetoCeiling:           90,
		MaxVerificationWindow: 5 * time.Minute,
		GraceFraction:         0.1,
		QueueCapacity:         1000,
	}
}

// Validate checks the config for internal consistency.
func (c Config) Validate() error {
	if c.MinSimulators < 1 {
		return fmt.Errorf("min simulators must be at least 1, got %d", c.MinSimulators)
	}
	if c.RiskThreshold <= 0 || c.RiskThreshold > 100 {
		return fmt.Errorf("risk threshold must be in (0,100], got %v", c.RiskThreshold)
	}
	if c.MaxVerificationWindow <= 0 {
		return fmt.Errorf("max verification window must be positive, got %v", c.MaxVerificationWindow)
	}
	if c.GraceFraction <= 0 || c.GraceFraction >= 1 {
		return fmt.Errorf("grace fraction must be in (0,1), got %v", c.GraceFraction)
	}
	if c.QueueCapacity < 1 {
		return fmt.Errorf("queue capacity must be positive, got %d", c.QueueCapacity)
	}
	return nil
}

// OptionFunc mutates the config at construction time.
type OptionFunc func(*Config)

// WithMinSimulators overrides the simulator quorum.
func WithMinSimulators(n int) OptionFunc {
	return func(cfg *Config) {
		cfg.MinSimulators = n
	}
}

// WithRiskThreshold overrides the blocking threshold.
func WithRiskThreshold(threshold float64) OptionFunc {
	return func(cfg *Config) {
		cfg.RiskThreshold = threshold
	}
}

// WithVetoCeiling overrides the single-result veto ceiling.
func WithVetoCeiling(ceiling uint8) OptionFunc {
	return func(cfg *Config) {
		cfg.VetoCeiling = ceiling
	}
}

// WithMaxVerificationWindow overrides the maximum verification window.
func WithMaxVerificationWindow(window time.Duration) OptionFunc {
	return func(cfg *Config) {
		cfg.MaxVerificationWindow = window
	}
}

// WithGraceFraction overrides the grace fraction of the window.
func WithGraceFraction(fraction float64) OptionFunc {
	return func(cfg *Config) {
		cfg.GraceFraction = fraction
	}
}

// WithQueueCapacity overrides the intake queue capacity.
func WithQueueCapacity(capacity int) OptionFunc {
	return func(cfg *Config) {
		cfg.QueueCapacity = capacity
	}
}
