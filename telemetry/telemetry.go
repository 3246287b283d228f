// Package telemetry publishes pipeline outcomes to Kafka: one message per
// mint, per post-mint remote state and per abandoned item.
package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/xraph/bond/chain"
	"github.com/xraph/bond/plugin"
	"github.com/xraph/bond/remote"
)

// Event types.
const (
	EventMinted        = "reading.minted"
	EventRemoteState   = "remote.state"
	EventItemAbandoned = "item.abandoned"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin                = (*Publisher)(nil)
	_ plugin.OnReadingMinted       = (*Publisher)(nil)
	_ plugin.OnRemoteStateObserved = (*Publisher)(nil)
	_ plugin.OnItemAbandoned       = (*Publisher)(nil)
	_ plugin.OnShutdown            = (*Publisher)(nil)
)

// Writer is the subset of *kafka.Writer the publisher needs.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Event is the message value.
type Event struct {
	Type          string          `json:"type"`
	Item          string          `json:"item"`
	Kind          string          `json:"kind"`
	Category      string          `json:"category"`
	Origin        string          `json:"origin"`
	Sequence      int64           `json:"sequence,omitempty"`
	ContentHash   string          `json:"content_hash,omitempty"`
	Energy        int64           `json:"accumulated_energy,omitempty"`
	BlockNumber   int64           `json:"block_number,omitempty"`
	TransactionID string          `json:"transaction_id,omitempty"`
	State         json.RawMessage `json:"state,omitempty"`
	Attempts      int             `json:"attempts,omitempty"`
	Error         string          `json:"error,omitempty"`
	At            time.Time       `json:"at"`
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Publisher) { p.logger = l }
}

// WithClock sets the clock stamped on events.
func WithClock(now func() time.Time) Option {
	return func(p *Publisher) { p.now = now }
}

// Publisher is a plugin that writes events to Kafka.
type Publisher struct {
	w      Writer
	now    func() time.Time
	logger *slog.Logger
}

// New creates a publisher over w.
func New(w Writer, opts ...Option) *Publisher {
	p := &Publisher{w: w, now: time.Now, logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NewKafka creates a publisher writing to topic on brokers.
func NewKafka(brokers []string, topic string, opts ...Option) *Publisher {
	return New(&kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}, opts...)
}

// Name implements plugin.Plugin.
func (p *Publisher) Name() string { return "telemetry" }

// OnReadingMinted implements plugin.OnReadingMinted.
func (p *Publisher) OnReadingMinted(ctx context.Context, subj plugin.Subject, rec *chain.Record, receipt *remote.Receipt) error {
	ev := p.event(EventMinted, subj)
	ev.Sequence = rec.Sequence
	ev.ContentHash = rec.ContentHash.String()
	if rec.Payload != nil {
		ev.Energy = int64(rec.Payload.AccumulatedEnergy)
	}
	ev.BlockNumber = receipt.BlockNumber
	ev.TransactionID = receipt.TransactionID
	return p.publish(ctx, ev)
}

// OnRemoteStateObserved implements plugin.OnRemoteStateObserved.
func (p *Publisher) OnRemoteStateObserved(ctx context.Context, subj plugin.Subject, state *remote.State) error {
	ev := p.event(EventRemoteState, subj)
	if state != nil {
		ev.State = state.Raw
	}
	return p.publish(ctx, ev)
}

// OnItemAbandoned implements plugin.OnItemAbandoned.
func (p *Publisher) OnItemAbandoned(ctx context.Context, subj plugin.Subject, attempts int, lastErr error) error {
	ev := p.event(EventItemAbandoned, subj)
	ev.Attempts = attempts
	if lastErr != nil {
		ev.Error = lastErr.Error()
	}
	return p.publish(ctx, ev)
}

// OnShutdown implements plugin.OnShutdown.
func (p *Publisher) OnShutdown(_ context.Context) error {
	return p.w.Close()
}

func (p *Publisher) event(typ string, subj plugin.Subject) Event {
	return Event{
		Type:     typ,
		Item:     subj.Item,
		Kind:     subj.Kind,
		Category: subj.Category,
		Origin:   subj.Origin,
		At:       p.now().UTC(),
	}
}

func (p *Publisher) publish(ctx context.Context, ev Event) error {
	value, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("telemetry: encode %s: %w", ev.Type, err)
	}
	msg := kafka.Message{
		Key:   []byte(ev.Origin),
		Value: value,
		Time:  ev.At,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(ev.Type)},
		},
	}
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("telemetry: publish %s: %w", ev.Type, err)
	}
	p.logger.Debug("telemetry published", "type", ev.Type, "item", ev.Item)
	return nil
}
