// Package audithook bridges bond pipeline events to an audit trail backend.
//
// It defines a local Recorder interface so the package does not depend on
// any particular audit store. Callers inject a RecorderFunc adapter at
// wiring time.
package audithook

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/xraph/bond/chain"
	"github.com/xraph/bond/id"
	"github.com/xraph/bond/plugin"
	"github.com/xraph/bond/remote"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin            = (*Extension)(nil)
	_ plugin.OnInit            = (*Extension)(nil)
	_ plugin.OnShutdown        = (*Extension)(nil)
	_ plugin.OnCycleStarted    = (*Extension)(nil)
	_ plugin.OnCycleCompleted  = (*Extension)(nil)
	_ plugin.OnAttemptFailed   = (*Extension)(nil)
	_ plugin.OnReadingAppended = (*Extension)(nil)
	_ plugin.OnReadingMinted   = (*Extension)(nil)
	_ plugin.OnItemReconciled  = (*Extension)(nil)
	_ plugin.OnItemAbandoned   = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is one audit trail entry.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// SlogRecorder writes audit events as structured log lines.
func SlogRecorder(logger *slog.Logger) Recorder {
	return RecorderFunc(func(ctx context.Context, ev *AuditEvent) error {
		level := slog.LevelInfo
		switch ev.Severity {
		case SeverityWarning:
			level = slog.LevelWarn
		case SeverityError, SeverityCritical:
			level = slog.LevelError
		}
		attrs := []any{
			"action", ev.Action,
			"resource", ev.Resource,
			"resource_id", ev.ResourceID,
			"outcome", ev.Outcome,
		}
		for k, v := range ev.Metadata {
			attrs = append(attrs, k, v)
		}
		logger.Log(ctx, level, "audit", attrs...)
		return nil
	})
}

// Extension bridges pipeline events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit implements plugin.OnInit.
func (e *Extension) OnInit(ctx context.Context, _ any) error {
	return e.record(ctx, ActionEngineStarted, SeverityInfo, OutcomeSuccess,
		ResourceEngine, "", CategoryLifecycle, nil,
	)
}

// OnShutdown implements plugin.OnShutdown.
func (e *Extension) OnShutdown(ctx context.Context) error {
	return e.record(ctx, ActionEngineStopped, SeverityInfo, OutcomeSuccess,
		ResourceEngine, "", CategoryLifecycle, nil,
	)
}

// ──────────────────────────────────────────────────
// Cycle hooks
// ──────────────────────────────────────────────────

// OnCycleStarted implements plugin.OnCycleStarted.
func (e *Extension) OnCycleStarted(ctx context.Context, cycleID id.CycleID, categories []string, items int) error {
	return e.record(ctx, ActionCycleStarted, SeverityInfo, OutcomeSuccess,
		ResourceCycle, cycleID.String(), CategoryPipeline, nil,
		"categories", strings.Join(categories, ","),
		"items", items,
	)
}

// OnCycleCompleted implements plugin.OnCycleCompleted.
func (e *Extension) OnCycleCompleted(ctx context.Context, cycleID id.CycleID, reconciled, abandoned int, elapsed time.Duration) error {
	outcome, severity := OutcomeSuccess, SeverityInfo
	if abandoned > 0 {
		outcome, severity = OutcomePartial, SeverityWarning
		if reconciled == 0 {
			outcome = OutcomeFailure
		}
	}
	return e.record(ctx, ActionCycleCompleted, severity, outcome,
		ResourceCycle, cycleID.String(), CategoryPipeline, nil,
		"reconciled", reconciled,
		"abandoned", abandoned,
		"elapsed_ms", elapsed.Milliseconds(),
	)
}

// ──────────────────────────────────────────────────
// Item hooks
// ──────────────────────────────────────────────────

// OnAttemptFailed implements plugin.OnAttemptFailed.
func (e *Extension) OnAttemptFailed(ctx context.Context, subj plugin.Subject, attempt int, step string, err error) error {
	return e.record(ctx, ActionAttemptFailed, SeverityWarning, OutcomeFailure,
		ResourceItem, subj.Item, CategoryPipeline, err,
		"kind", subj.Kind,
		"category", subj.Category,
		"attempt", attempt,
		"step", step,
	)
}

// OnReadingAppended implements plugin.OnReadingAppended.
func (e *Extension) OnReadingAppended(ctx context.Context, subj plugin.Subject, rec *chain.Record) error {
	return e.record(ctx, ActionReadingAppended, SeverityInfo, OutcomeSuccess,
		ResourceRecord, rec.ID.String(), CategoryLedger, nil,
		"item", subj.Item,
		"ledger", rec.Ledger,
		"sequence", rec.Sequence,
		"content_hash", rec.ContentHash.String(),
		"ref", rec.Ref,
	)
}

// OnReadingMinted implements plugin.OnReadingMinted.
func (e *Extension) OnReadingMinted(ctx context.Context, subj plugin.Subject, rec *chain.Record, receipt *remote.Receipt) error {
	return e.record(ctx, ActionReadingMinted, SeverityInfo, OutcomeSuccess,
		ResourceMint, receipt.TransactionID, CategoryRemote, nil,
		"item", subj.Item,
		"origin", subj.Origin,
		"record_id", rec.ID.String(),
		"block_number", receipt.BlockNumber,
		"status", string(receipt.Status),
	)
}

// OnItemReconciled implements plugin.OnItemReconciled.
func (e *Extension) OnItemReconciled(ctx context.Context, subj plugin.Subject, attempts int, elapsed time.Duration) error {
	return e.record(ctx, ActionItemReconciled, SeverityInfo, OutcomeSuccess,
		ResourceItem, subj.Item, CategoryPipeline, nil,
		"attempts", attempts,
		"elapsed_ms", elapsed.Milliseconds(),
	)
}

// OnItemAbandoned implements plugin.OnItemAbandoned.
func (e *Extension) OnItemAbandoned(ctx context.Context, subj plugin.Subject, attempts int, lastErr error) error {
	return e.record(ctx, ActionItemAbandoned, SeverityError, OutcomeFailure,
		ResourceItem, subj.Item, CategoryPipeline, lastErr,
		"kind", subj.Kind,
		"origin", subj.Origin,
		"attempts", attempts,
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
