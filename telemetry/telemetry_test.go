package telemetry_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/xraph/bond/chain"
	"github.com/xraph/bond/plugin"
	"github.com/xraph/bond/remote"
	"github.com/xraph/bond/telemetry"
)

type fakeWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

var subj = plugin.Subject{Item: "rooftop", Kind: "production", Category: "hourly", Origin: "site-b1"}

func decode(t *testing.T, msg kafka.Message) telemetry.Event {
	t.Helper()
	var ev telemetry.Event
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return ev
}

func TestPublishesPipelineEvents(t *testing.T) {
	w := &fakeWriter{}
	at := time.Date(2024, 5, 1, 10, 1, 0, 0, time.UTC)
	p := telemetry.New(w, telemetry.WithClock(func() time.Time { return at }))
	ctx := context.Background()

	rec := &chain.Record{Sequence: 4, ContentHash: chain.Hash("ab12")}
	receipt := &remote.Receipt{BlockNumber: 99, TransactionID: "0xfeed", Status: remote.StatusConfirmed}

	if err := p.OnReadingMinted(ctx, subj, rec, receipt); err != nil {
		t.Fatal(err)
	}
	if err := p.OnRemoteStateObserved(ctx, subj, &remote.State{Raw: json.RawMessage(`{"block":99}`)}); err != nil {
		t.Fatal(err)
	}
	if err := p.OnItemAbandoned(ctx, subj, 3, errors.New("gateway down")); err != nil {
		t.Fatal(err)
	}

	if len(w.msgs) != 3 {
		t.Fatalf("messages = %d", len(w.msgs))
	}

	minted := decode(t, w.msgs[0])
	if minted.Type != telemetry.EventMinted || minted.BlockNumber != 99 || minted.Sequence != 4 || minted.ContentHash != "ab12" {
		t.Errorf("minted = %+v", minted)
	}
	if string(w.msgs[0].Key) != "site-b1" || !w.msgs[0].Time.Equal(at) {
		t.Errorf("key = %q, time = %s", w.msgs[0].Key, w.msgs[0].Time)
	}

	state := decode(t, w.msgs[1])
	if state.Type != telemetry.EventRemoteState || string(state.State) != `{"block":99}` {
		t.Errorf("state = %+v", state)
	}

	abandoned := decode(t, w.msgs[2])
	if abandoned.Type != telemetry.EventItemAbandoned || abandoned.Attempts != 3 || abandoned.Error != "gateway down" {
		t.Errorf("abandoned = %+v", abandoned)
	}

	if err := p.OnShutdown(ctx); err != nil || !w.closed {
		t.Error("writer not closed on shutdown")
	}
}

func TestPublishErrorIsReturned(t *testing.T) {
	w := &fakeWriter{err: errors.New("no leader")}
	p := telemetry.New(w)
	if err := p.OnItemAbandoned(context.Background(), subj, 3, nil); err == nil {
		t.Error("expected publish error")
	}
}
