// Package extension provides the Forge extension adapter for Bond.
//
// It implements the forge.Extension interface to integrate the
// reconciliation engine into a Forge application with DI registration
// and lifecycle management.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.bond" or "bond" keys.
package extension

import (
	"context"
	"errors"

	"github.com/xraph/forge"
	"github.com/xraph/vessel"

	"github.com/xraph/bond"
	"github.com/xraph/bond/remote"
	remotememory "github.com/xraph/bond/remote/memory"
	"github.com/xraph/bond/store"
	"github.com/xraph/bond/store/memory"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "bond"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Energy reading reconciliation between a local and a remote ledger"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts Bond as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config   Config
	engine   *bond.Engine
	store    store.Store
	remote   remote.Client
	bondOpts []bond.Option
}

// New creates a new Bond Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Engine returns the underlying engine.
// This is nil until Register is called.
func (e *Extension) Engine() *bond.Engine { return e.engine }

// Register implements [forge.Extension]. It loads configuration,
// builds the engine, and registers it in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	// In-memory backends unless provided programmatically.
	if e.store == nil {
		e.store = memory.New()
	}
	if e.remote == nil {
		e.remote = remotememory.New()
	}

	e.engine = bond.New(e.buildEngineOpts()...)

	return vessel.Provide(fapp.Container(), func() (*bond.Engine, error) {
		return e.engine, nil
	})
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.engine == nil {
		return errors.New("bond: extension not initialized")
	}

	if !e.config.DisableMigrate {
		if err := e.engine.Start(ctx); err != nil {
			return err
		}
	}

	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(_ context.Context) error {
	if e.engine != nil {
		if err := e.engine.Stop(); err != nil {
			e.MarkStopped()
			return err
		}
	}
	e.MarkStopped()
	return nil
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.store == nil {
		return errors.New("bond: store not initialized")
	}
	return e.store.Ping(ctx)
}

// buildEngineOpts constructs bond.Option values from the resolved config.
func (e *Extension) buildEngineOpts() []bond.Option {
	opts := make([]bond.Option, 0, len(e.bondOpts)+4)

	opts = append(opts,
		bond.WithStore(e.store),
		bond.WithRemote(e.remote),
		bond.WithRetryPolicy(bond.RetryPolicy{
			MaxAttempts: e.config.MaxAttempts,
			Delay:       bond.LinearDelay(e.config.BackoffStep),
		}),
		bond.WithHookTimeout(e.config.HookTimeout),
	)

	// Pass-through options go last so they win.
	opts = append(opts, e.bondOpts...)

	return opts
}

// --- Config Loading (mirrors grove/shield extension pattern) ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("bond: configuration is required but not found in config files; " +
				"ensure 'extensions.bond' or 'bond' key exists in your config")
		}
		e.config = e.mergeWithDefaults(programmaticConfig)
	} else {
		e.config = e.mergeConfigurations(fileConfig, programmaticConfig)
	}

	e.Logger().Debug("bond: configuration loaded",
		forge.F("disable_migrate", e.config.DisableMigrate),
		forge.F("max_attempts", e.config.MaxAttempts),
		forge.F("backoff_step", e.config.BackoffStep),
		forge.F("hook_timeout", e.config.HookTimeout),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()
	var cfg Config

	for _, key := range []string{"extensions.bond", "bond"} {
		if !cm.IsSet(key) {
			continue
		}
		if err := cm.Bind(key, &cfg); err == nil {
			e.Logger().Debug("bond: loaded config from file",
				forge.F("key", key),
			)
			return cfg, true
		}
		e.Logger().Warn("bond: failed to bind config",
			forge.F("key", key),
			forge.F("error", "bind failed"),
		)
	}

	return Config{}, false
}

// mergeWithDefaults fills zero-valued fields with defaults.
func (e *Extension) mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = defaults.MaxAttempts
	}
	if cfg.BackoffStep == 0 {
		cfg.BackoffStep = defaults.BackoffStep
	}
	if cfg.HookTimeout == 0 {
		cfg.HookTimeout = defaults.HookTimeout
	}
	return cfg
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML takes precedence; programmatic values fill gaps.
func (e *Extension) mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	if programmaticConfig.DisableMigrate {
		yamlConfig.DisableMigrate = true
	}
	if yamlConfig.MaxAttempts == 0 && programmaticConfig.MaxAttempts != 0 {
		yamlConfig.MaxAttempts = programmaticConfig.MaxAttempts
	}
	if yamlConfig.BackoffStep == 0 && programmaticConfig.BackoffStep != 0 {
		yamlConfig.BackoffStep = programmaticConfig.BackoffStep
	}
	if yamlConfig.HookTimeout == 0 && programmaticConfig.HookTimeout != 0 {
		yamlConfig.HookTimeout = programmaticConfig.HookTimeout
	}
	return e.mergeWithDefaults(yamlConfig)
}
