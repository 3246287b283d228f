package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/xraph/bond/chain"
	"github.com/xraph/bond/id"
	"github.com/xraph/bond/remote"
)

// DefaultHookTimeout bounds a single hook call.
const DefaultHookTimeout = 5 * time.Second

// Registry manages all registered plugins and provides efficient dispatch.
// It uses type-cached discovery so emitting never type-asserts.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger
	timeout time.Duration

	// Type-cached plugin lists for efficient dispatch
	onInit                []OnInit
	onShutdown            []OnShutdown
	onCycleStarted        []OnCycleStarted
	onCycleCompleted      []OnCycleCompleted
	onAttemptFailed       []OnAttemptFailed
	onReadingAppended     []OnReadingAppended
	onReadingMinted       []OnReadingMinted
	onRemoteStateObserved []OnRemoteStateObserved
	onItemReconciled      []OnItemReconciled
	onItemAbandoned       []OnItemAbandoned
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger:  slog.Default(),
		timeout: DefaultHookTimeout,
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// WithTimeout overrides DefaultHookTimeout.
// Non-positive durations are ignored.
func (r *Registry) WithTimeout(d time.Duration) *Registry {
	if d > 0 {
		r.timeout = d
	}
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Check for duplicate
	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	// Type-switch to cache interfaces
	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := p.(OnCycleStarted); ok {
		r.onCycleStarted = append(r.onCycleStarted, v)
	}
	if v, ok := p.(OnCycleCompleted); ok {
		r.onCycleCompleted = append(r.onCycleCompleted, v)
	}
	if v, ok := p.(OnAttemptFailed); ok {
		r.onAttemptFailed = append(r.onAttemptFailed, v)
	}
	if v, ok := p.(OnReadingAppended); ok {
		r.onReadingAppended = append(r.onReadingAppended, v)
	}
	if v, ok := p.(OnReadingMinted); ok {
		r.onReadingMinted = append(r.onReadingMinted, v)
	}
	if v, ok := p.(OnRemoteStateObserved); ok {
		r.onRemoteStateObserved = append(r.onRemoteStateObserved, v)
	}
	if v, ok := p.(OnItemReconciled); ok {
		r.onItemReconciled = append(r.onItemReconciled, v)
	}
	if v, ok := p.(OnItemAbandoned); ok {
		r.onItemAbandoned = append(r.onItemAbandoned, v)
	}

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"interfaces", Interfaces(p),
	)

	return nil
}

// Interfaces returns the hook interfaces implemented by p.
func Interfaces(p Plugin) []string {
	var interfaces []string
	v := reflect.TypeOf(p)

	checkInterface := func(iface reflect.Type, name string) {
		if v.Implements(iface) {
			interfaces = append(interfaces, name)
		}
	}

	checkInterface(reflect.TypeOf((*OnInit)(nil)).Elem(), "OnInit")
	checkInterface(reflect.TypeOf((*OnShutdown)(nil)).Elem(), "OnShutdown")
	checkInterface(reflect.TypeOf((*OnCycleStarted)(nil)).Elem(), "OnCycleStarted")
	checkInterface(reflect.TypeOf((*OnCycleCompleted)(nil)).Elem(), "OnCycleCompleted")
	checkInterface(reflect.TypeOf((*OnAttemptFailed)(nil)).Elem(), "OnAttemptFailed")
	checkInterface(reflect.TypeOf((*OnReadingAppended)(nil)).Elem(), "OnReadingAppended")
	checkInterface(reflect.TypeOf((*OnReadingMinted)(nil)).Elem(), "OnReadingMinted")
	checkInterface(reflect.TypeOf((*OnRemoteStateObserved)(nil)).Elem(), "OnRemoteStateObserved")
	checkInterface(reflect.TypeOf((*OnItemReconciled)(nil)).Elem(), "OnItemReconciled")
	checkInterface(reflect.TypeOf((*OnItemAbandoned)(nil)).Elem(), "OnItemAbandoned")

	return interfaces
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, engine any) {
	r.mu.RLock()
	plugins := r.onInit
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func(ctx context.Context) error {
			return p.OnInit(ctx, engine)
		}); err != nil {
			r.logger.Warn("plugin OnInit failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	r.mu.RLock()
	plugins := r.onShutdown
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func(ctx context.Context) error {
			return p.OnShutdown(ctx)
		}); err != nil {
			r.logger.Warn("plugin OnShutdown failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitCycleStarted emits a cycle started event.
func (r *Registry) EmitCycleStarted(ctx context.Context, cycleID id.CycleID, categories []string, items int) {
	r.mu.RLock()
	plugins := r.onCycleStarted
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func(ctx context.Context) error {
			return p.OnCycleStarted(ctx, cycleID, categories, items)
		}); err != nil {
			r.logger.Warn("plugin OnCycleStarted failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitCycleCompleted emits a cycle completed event.
func (r *Registry) EmitCycleCompleted(ctx context.Context, cycleID id.CycleID, reconciled, abandoned int, elapsed time.Duration) {
	r.mu.RLock()
	plugins := r.onCycleCompleted
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func(ctx context.Context) error {
			return p.OnCycleCompleted(ctx, cycleID, reconciled, abandoned, elapsed)
		}); err != nil {
			r.logger.Warn("plugin OnCycleCompleted failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitAttemptFailed emits an attempt failed event.
func (r *Registry) EmitAttemptFailed(ctx context.Context, subj Subject, attempt int, step string, err error) {
	r.mu.RLock()
	plugins := r.onAttemptFailed
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func(ctx context.Context) error {
			return p.OnAttemptFailed(ctx, subj, attempt, step, err)
		}); err != nil {
			r.logger.Warn("plugin OnAttemptFailed failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitReadingAppended emits a reading appended event.
func (r *Registry) EmitReadingAppended(ctx context.Context, subj Subject, rec *chain.Record) {
	r.mu.RLock()
	plugins := r.onReadingAppended
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func(ctx context.Context) error {
			return p.OnReadingAppended(ctx, subj, rec)
		}); err != nil {
			r.logger.Warn("plugin OnReadingAppended failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitReadingMinted emits a reading minted event.
func (r *Registry) EmitReadingMinted(ctx context.Context, subj Subject, rec *chain.Record, receipt *remote.Receipt) {
	r.mu.RLock()
	plugins := r.onReadingMinted
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func(ctx context.Context) error {
			return p.OnReadingMinted(ctx, subj, rec, receipt)
		}); err != nil {
			r.logger.Warn("plugin OnReadingMinted failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitRemoteStateObserved emits the post-mint remote state.
func (r *Registry) EmitRemoteStateObserved(ctx context.Context, subj Subject, state *remote.State) {
	r.mu.RLock()
	plugins := r.onRemoteStateObserved
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func(ctx context.Context) error {
			return p.OnRemoteStateObserved(ctx, subj, state)
		}); err != nil {
			r.logger.Warn("plugin OnRemoteStateObserved failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitItemReconciled emits an item reconciled event.
func (r *Registry) EmitItemReconciled(ctx context.Context, subj Subject, attempts int, elapsed time.Duration) {
	r.mu.RLock()
	plugins := r.onItemReconciled
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func(ctx context.Context) error {
			return p.OnItemReconciled(ctx, subj, attempts, elapsed)
		}); err != nil {
			r.logger.Warn("plugin OnItemReconciled failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitItemAbandoned emits an item abandoned event.
func (r *Registry) EmitItemAbandoned(ctx context.Context, subj Subject, attempts int, lastErr error) {
	r.mu.RLock()
	plugins := r.onItemAbandoned
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func(ctx context.Context) error {
			return p.OnItemAbandoned(ctx, subj, attempts, lastErr)
		}); err != nil {
			r.logger.Warn("plugin OnItemAbandoned failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// callWithTimeout calls a plugin function with a timeout.
// Plugins should never block the reconciliation pipeline.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func(context.Context) error) error {
	hctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	done := make(chan error, 1)

	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- fmt.Errorf("plugin panic: %s: %v", pluginName, rec)
			}
		}()
		done <- fn(hctx)
	}()

	select {
	case err := <-done:
		return err
	case <-hctx.Done():
		if err := ctx.Err(); err != nil {
			return err
		}
		return fmt.Errorf("plugin timeout: %s", pluginName)
	}
}
