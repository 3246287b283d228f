// Package plugin provides the hook system for bond.
// Plugins observe the reconciliation pipeline; they never change its outcome.
package plugin

import (
	"context"
	"time"

	"github.com/xraph/bond/chain"
	"github.com/xraph/bond/id"
	"github.com/xraph/bond/remote"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// Subject identifies the configured item an event belongs to.
type Subject struct {
	Item     string
	Kind     string
	Category string
	Origin   string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the engine starts.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, engine any) error
}

// OnShutdown is called when the engine stops.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Cycle hooks
// ──────────────────────────────────────────────────

// OnCycleStarted is called when a wake event starts a cycle.
type OnCycleStarted interface {
	Plugin
	OnCycleStarted(ctx context.Context, cycleID id.CycleID, categories []string, items int) error
}

// OnCycleCompleted is called after every selected item was processed.
type OnCycleCompleted interface {
	Plugin
	OnCycleCompleted(ctx context.Context, cycleID id.CycleID, reconciled, abandoned int, elapsed time.Duration) error
}

// ──────────────────────────────────────────────────
// Item hooks
// ──────────────────────────────────────────────────

// OnAttemptFailed is called when one attempt for an item fails at a step.
type OnAttemptFailed interface {
	Plugin
	OnAttemptFailed(ctx context.Context, subj Subject, attempt int, step string, err error) error
}

// OnReadingAppended is called once a reading is durable in the local ledger.
type OnReadingAppended interface {
	Plugin
	OnReadingAppended(ctx context.Context, subj Subject, rec *chain.Record) error
}

// OnReadingMinted is called when the remote ledger accepted a reading.
type OnReadingMinted interface {
	Plugin
	OnReadingMinted(ctx context.Context, subj Subject, rec *chain.Record, receipt *remote.Receipt) error
}

// OnRemoteStateObserved is called with the remote state read after a mint.
type OnRemoteStateObserved interface {
	Plugin
	OnRemoteStateObserved(ctx context.Context, subj Subject, state *remote.State) error
}

// OnItemReconciled is called when an item completed within its retry budget.
type OnItemReconciled interface {
	Plugin
	OnItemReconciled(ctx context.Context, subj Subject, attempts int, elapsed time.Duration) error
}

// OnItemAbandoned is called when an item exhausted its retry budget.
type OnItemAbandoned interface {
	Plugin
	OnItemAbandoned(ctx context.Context, subj Subject, attempts int, lastErr error) error
}
