// Package memory provides an in-process store.Store for tests and dry runs.
// Nothing survives the process.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/xraph/bond/chain"
	"github.com/xraph/bond/reading"
	"github.com/xraph/bond/store"
)

// compile-time interface check
var _ store.Store = (*Store)(nil)

// Store keeps every ledger as a slice of records.
type Store struct {
	mu      sync.RWMutex
	ledgers map[string][]*chain.Record
	closed  bool
	now     func() time.Time
}

// New creates an empty memory store.
func New() *Store {
	return &Store{
		ledgers: make(map[string][]*chain.Record),
		now:     time.Now,
	}
}

// WithClock overrides the time source used for AppendedAt.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) LastHash(_ context.Context, ledger string) (chain.Hash, error) {
	if err := store.ValidateName(ledger); err != nil {
		return "", err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return "", store.ErrClosed
	}
	records := s.ledgers[ledger]
	if len(records) == 0 {
		return chain.Genesis, nil
	}
	return records[len(records)-1].ContentHash, nil
}

func (s *Store) Append(_ context.Context, ledger string, r *reading.EnergyReading) (*chain.Record, error) {
	if err := store.ValidateName(ledger); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, store.ErrClosed
	}

	var last *chain.Record
	if records := s.ledgers[ledger]; len(records) > 0 {
		last = records[len(records)-1]
	}
	rec, err := chain.Next(ledger, last, r, s.now())
	if err != nil {
		return nil, err
	}
	rec.Ref = "memory://" + ledger + "/" + rec.ID.String()

	stored := rec.Clone()
	s.ledgers[ledger] = append(s.ledgers[ledger], stored)
	return rec, nil
}

func (s *Store) Records(_ context.Context, ledger string) ([]*chain.Record, error) {
	if err := store.ValidateName(ledger); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, store.ErrClosed
	}
	records := s.ledgers[ledger]
	out := make([]*chain.Record, len(records))
	for i, r := range records {
		out[i] = r.Clone()
	}
	return out, nil
}

// Migrate is a no-op for the memory store.
func (s *Store) Migrate(_ context.Context) error { return nil }

// Ping always succeeds until the store is closed.
func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return store.ErrClosed
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
