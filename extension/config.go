package extension

import "time"

// Config holds the Bond extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.bond" or "bond" keys).
type Config struct {
	// DisableMigrate prevents ledger migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// MaxAttempts bounds the tries per item and wake (default: 3).
	MaxAttempts int `json:"max_attempts" mapstructure:"max_attempts" yaml:"max_attempts"`

	// BackoffStep is the linear backoff unit between attempts (default: 300s).
	BackoffStep time.Duration `json:"backoff_step" mapstructure:"backoff_step" yaml:"backoff_step"`

	// HookTimeout bounds each plugin hook call (default: 5s).
	HookTimeout time.Duration `json:"hook_timeout" mapstructure:"hook_timeout" yaml:"hook_timeout"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 3,
		BackoffStep: 300 * time.Second,
		HookTimeout: 5 * time.Second,
	}
}
