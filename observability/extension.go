// Package observability provides a metrics plugin for bond that records
// pipeline event counts through a MetricFactory.
package observability

import (
	"context"
	"time"

	"github.com/xraph/bond/chain"
	"github.com/xraph/bond/id"
	"github.com/xraph/bond/plugin"
	"github.com/xraph/bond/remote"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin            = (*MetricsExtension)(nil)
	_ plugin.OnInit            = (*MetricsExtension)(nil)
	_ plugin.OnCycleStarted    = (*MetricsExtension)(nil)
	_ plugin.OnCycleCompleted  = (*MetricsExtension)(nil)
	_ plugin.OnAttemptFailed   = (*MetricsExtension)(nil)
	_ plugin.OnReadingAppended = (*MetricsExtension)(nil)
	_ plugin.OnReadingMinted   = (*MetricsExtension)(nil)
	_ plugin.OnItemReconciled  = (*MetricsExtension)(nil)
	_ plugin.OnItemAbandoned   = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records pipeline metrics.
// Register it as a bond plugin to track reconciliation outcomes.
type MetricsExtension struct {
	factory MetricFactory

	// Cycle metrics
	CyclesStarted   Counter
	CyclesCompleted Counter
	CycleItems      Histogram
	CycleLatency    Histogram

	// Attempt metrics
	AttemptFailures   Counter
	SourceFailures    Counter
	LedgerFailures    Counter
	RemoteFailures    Counter
	AttemptsPerItem   Histogram
	ItemLatency       Histogram
	ItemsReconciled   Counter
	ItemsAbandoned    Counter
	ReadingsAppended  Counter
	ReadingsMinted    Counter
	MintedEnergy      Counter
	UnconfirmedMints  Counter
	PluginInitialized Counter
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
// Use app.Metrics() in forge extensions or NewPrometheusFactory standalone.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		// Cycle metrics
		CyclesStarted:   factory.Counter("bond.cycle.started"),
		CyclesCompleted: factory.Counter("bond.cycle.completed"),
		CycleItems:      factory.Histogram("bond.cycle.items"),
		CycleLatency:    factory.Histogram("bond.cycle.latency_ms"),

		// Attempt metrics
		AttemptFailures: factory.Counter("bond.attempt.failures"),
		SourceFailures:  factory.Counter("bond.attempt.failures.source"),
		LedgerFailures:  factory.Counter("bond.attempt.failures.ledger"),
		RemoteFailures:  factory.Counter("bond.attempt.failures.remote"),
		AttemptsPerItem: factory.Histogram("bond.item.attempts"),
		ItemLatency:     factory.Histogram("bond.item.latency_ms"),

		// Outcome metrics
		ItemsReconciled:   factory.Counter("bond.item.reconciled"),
		ItemsAbandoned:    factory.Counter("bond.item.abandoned"),
		ReadingsAppended:  factory.Counter("bond.reading.appended"),
		ReadingsMinted:    factory.Counter("bond.reading.minted"),
		MintedEnergy:      factory.Counter("bond.reading.minted.energy_centi"),
		UnconfirmedMints:  factory.Counter("bond.reading.minted.unconfirmed"),
		PluginInitialized: factory.Counter("bond.plugin.initialized"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ any) error {
	m.PluginInitialized.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Cycle hooks
// ──────────────────────────────────────────────────

// OnCycleStarted implements plugin.OnCycleStarted.
func (m *MetricsExtension) OnCycleStarted(_ context.Context, _ id.CycleID, _ []string, items int) error {
	m.CyclesStarted.Inc()
	m.CycleItems.Observe(float64(items))
	return nil
}

// OnCycleCompleted implements plugin.OnCycleCompleted.
func (m *MetricsExtension) OnCycleCompleted(_ context.Context, _ id.CycleID, _, _ int, elapsed time.Duration) error {
	m.CyclesCompleted.Inc()
	m.CycleLatency.Observe(float64(elapsed.Milliseconds()))
	return nil
}

// ──────────────────────────────────────────────────
// Item hooks
// ──────────────────────────────────────────────────

// OnAttemptFailed implements plugin.OnAttemptFailed.
func (m *MetricsExtension) OnAttemptFailed(_ context.Context, _ plugin.Subject, _ int, step string, _ error) error {
	m.AttemptFailures.Inc()
	switch step {
	case "read_source":
		m.SourceFailures.Inc()
	case "fetch_local_hash", "append_local":
		m.LedgerFailures.Inc()
	case "fetch_remote_state", "mint_remote":
		m.RemoteFailures.Inc()
	}
	return nil
}

// OnReadingAppended implements plugin.OnReadingAppended.
func (m *MetricsExtension) OnReadingAppended(_ context.Context, _ plugin.Subject, _ *chain.Record) error {
	m.ReadingsAppended.Inc()
	return nil
}

// OnReadingMinted implements plugin.OnReadingMinted.
func (m *MetricsExtension) OnReadingMinted(_ context.Context, _ plugin.Subject, rec *chain.Record, receipt *remote.Receipt) error {
	m.ReadingsMinted.Inc()
	if rec != nil && rec.Payload != nil {
		m.MintedEnergy.Add(float64(rec.Payload.AccumulatedEnergy))
	}
	if receipt != nil && receipt.Status != remote.StatusConfirmed {
		m.UnconfirmedMints.Inc()
	}
	return nil
}

// OnItemReconciled implements plugin.OnItemReconciled.
func (m *MetricsExtension) OnItemReconciled(_ context.Context, _ plugin.Subject, attempts int, elapsed time.Duration) error {
	m.ItemsReconciled.Inc()
	m.AttemptsPerItem.Observe(float64(attempts))
	m.ItemLatency.Observe(float64(elapsed.Milliseconds()))
	return nil
}

// OnItemAbandoned implements plugin.OnItemAbandoned.
func (m *MetricsExtension) OnItemAbandoned(_ context.Context, _ plugin.Subject, attempts int, _ error) error {
	m.ItemsAbandoned.Inc()
	m.AttemptsPerItem.Observe(float64(attempts))
	return nil
}
