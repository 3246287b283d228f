package audithook_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	audithook "github.com/xraph/bond/audit_hook"
	"github.com/xraph/bond/chain"
	"github.com/xraph/bond/id"
	"github.com/xraph/bond/plugin"
	"github.com/xraph/bond/remote"
)

type memRecorder struct {
	mu     sync.Mutex
	events []*audithook.AuditEvent
}

func (r *memRecorder) Record(_ context.Context, ev *audithook.AuditEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

var subj = plugin.Subject{Item: "rooftop", Kind: "production", Category: "hourly", Origin: "b1"}

func TestRecordsPipelineEvents(t *testing.T) {
	rec := &memRecorder{}
	ext := audithook.New(rec)
	ctx := context.Background()

	record := &chain.Record{ID: id.NewRecordID(), Ledger: "production", Sequence: 7, ContentHash: "ab"}
	receipt := &remote.Receipt{BlockNumber: 12, TransactionID: "0xabc", Status: remote.StatusConfirmed}

	_ = ext.OnReadingAppended(ctx, subj, record)
	_ = ext.OnReadingMinted(ctx, subj, record, receipt)
	_ = ext.OnItemAbandoned(ctx, subj, 3, errors.New("gateway down"))

	if len(rec.events) != 3 {
		t.Fatalf("events = %d", len(rec.events))
	}
	appended := rec.events[0]
	if appended.Action != audithook.ActionReadingAppended || appended.ResourceID != record.ID.String() || appended.Metadata["sequence"] != int64(7) {
		t.Errorf("appended = %+v", appended)
	}
	minted := rec.events[1]
	if minted.ResourceID != "0xabc" || minted.Metadata["block_number"] != int64(12) {
		t.Errorf("minted = %+v", minted)
	}
	abandoned := rec.events[2]
	if abandoned.Outcome != audithook.OutcomeFailure || abandoned.Reason != "gateway down" || abandoned.Severity != audithook.SeverityError {
		t.Errorf("abandoned = %+v", abandoned)
	}
}

func TestCycleOutcome(t *testing.T) {
	tests := []struct {
		name                  string
		reconciled, abandoned int
		want                  string
	}{
		{"all reconciled", 3, 0, audithook.OutcomeSuccess},
		{"some abandoned", 2, 1, audithook.OutcomePartial},
		{"all abandoned", 0, 2, audithook.OutcomeFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &memRecorder{}
			_ = audithook.New(rec).OnCycleCompleted(context.Background(), id.NewCycleID(), tt.reconciled, tt.abandoned, time.Second)
			if rec.events[0].Outcome != tt.want {
				t.Errorf("outcome = %s, want %s", rec.events[0].Outcome, tt.want)
			}
		})
	}
}

func TestActionFilters(t *testing.T) {
	ctx := context.Background()

	rec := &memRecorder{}
	ext := audithook.New(rec, audithook.WithEnabledActions(audithook.ActionItemAbandoned))
	_ = ext.OnInit(ctx, nil)
	_ = ext.OnItemAbandoned(ctx, subj, 3, nil)
	if len(rec.events) != 1 || rec.events[0].Action != audithook.ActionItemAbandoned {
		t.Errorf("enabled filter recorded %+v", rec.events)
	}

	rec = &memRecorder{}
	ext = audithook.New(rec, audithook.WithDisabledActions(audithook.ActionAttemptFailed))
	_ = ext.OnAttemptFailed(ctx, subj, 1, "read_source", errors.New("x"))
	_ = ext.OnShutdown(ctx)
	if len(rec.events) != 1 || rec.events[0].Action != audithook.ActionEngineStopped {
		t.Errorf("disabled filter recorded %+v", rec.events)
	}
}

func TestSlogRecorder(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	ext := audithook.New(audithook.SlogRecorder(logger))

	_ = ext.OnAttemptFailed(context.Background(), subj, 2, "mint_remote", errors.New("503"))

	out := buf.String()
	for _, want := range []string{"level=WARN", "action=attempt.failed", "step=mint_remote", "resource_id=rooftop"} {
		if !strings.Contains(out, want) {
			t.Errorf("log line missing %s: %s", want, out)
		}
	}
}
