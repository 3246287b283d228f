package extension

import (
	"time"

	"github.com/xraph/bond"
	"github.com/xraph/bond/plugin"
	"github.com/xraph/bond/remote"
	"github.com/xraph/bond/store"
)

// Option configures the Bond Forge extension.
type Option func(*Extension)

// WithStore sets the local ledger backend.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithRemote sets the remote ledger client.
func WithRemote(c remote.Client) Option {
	return func(e *Extension) {
		e.remote = c
	}
}

// WithItems appends reconciliation items.
func WithItems(items ...bond.Item) Option {
	return func(e *Extension) {
		e.bondOpts = append(e.bondOpts, bond.WithItems(items...))
	}
}

// WithEngineOption passes a bond.Option through to the underlying engine.
func WithEngineOption(opt bond.Option) Option {
	return func(e *Extension) {
		e.bondOpts = append(e.bondOpts, opt)
	}
}

// WithPlugin registers a bond plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.bondOpts = append(e.bondOpts, bond.WithPlugin(p))
	}
}

// WithConfig sets the Forge extension configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extension) { e.config = cfg }
}

// WithDisableMigrate prevents ledger migration on start.
func WithDisableMigrate() Option {
	return func(e *Extension) { e.config.DisableMigrate = true }
}

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}

// WithMaxAttempts sets the number of tries per item and wake.
func WithMaxAttempts(n int) Option {
	return func(e *Extension) { e.config.MaxAttempts = n }
}

// WithBackoffStep sets the linear backoff unit.
func WithBackoffStep(d time.Duration) Option {
	return func(e *Extension) { e.config.BackoffStep = d }
}

// WithHookTimeout bounds each plugin hook call.
func WithHookTimeout(d time.Duration) Option {
	return func(e *Extension) { e.config.HookTimeout = d }
}
