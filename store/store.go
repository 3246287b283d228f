// Package store defines the persistence contract for bond's local ledgers.
//
// A Store holds any number of named, independent hash chains (bond uses
// "production" and "consumption"). Backends persist records; the linkage is
// computed by the chain package so every backend hashes identically.
package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/xraph/bond/chain"
	"github.com/xraph/bond/reading"
	"github.com/xraph/bond/types"
)

var (
	// ErrCorrupt is returned when a persisted chain fails verification.
	ErrCorrupt = errors.New("store: ledger chain is corrupt")

	// ErrConflict is returned when another writer appended the same sequence.
	// Ledgers are single-writer; seeing this means that rule was broken.
	ErrConflict = errors.New("store: concurrent append detected")

	// ErrInvalidLedger is returned for an empty or malformed ledger name.
	ErrInvalidLedger = errors.New("store: invalid ledger name")

	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("store: closed")
)

// Ledger is the two-operation contract the reconciliation pipeline needs.
type Ledger interface {
	// LastHash returns the content hash of the newest record, or
	// chain.Genesis when the ledger is empty. It never mutates state.
	LastHash(ctx context.Context) (chain.Hash, error)

	// Append durably persists r on top of the current head and returns the
	// new record. A failed Append leaves no visible trace.
	Append(ctx context.Context, r *reading.EnergyReading) (*chain.Record, error)
}

// Store is the unified storage interface for all bond ledgers.
type Store interface {
	// Ledger methods
	LastHash(ctx context.Context, ledger string) (chain.Hash, error)
	Append(ctx context.Context, ledger string, r *reading.EnergyReading) (*chain.Record, error)
	Records(ctx context.Context, ledger string) ([]*chain.Record, error)

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// Bind narrows s to a single named ledger.
func Bind(s Store, ledger string) Ledger {
	return &bound{s: s, name: ledger}
}

type bound struct {
	s    Store
	name string
}

func (b *bound) LastHash(ctx context.Context) (chain.Hash, error) {
	return b.s.LastHash(ctx, b.name)
}

func (b *bound) Append(ctx context.Context, r *reading.EnergyReading) (*chain.Record, error) {
	return b.s.Append(ctx, b.name, r)
}

var ledgerName = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,62}$`)

// ValidateName checks that a ledger name is safe to use as a directory,
// table key or collection value.
func ValidateName(name string) error {
	if !ledgerName.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidLedger, name)
	}
	return nil
}

// Verify loads a ledger and checks its linkage.
func Verify(ctx context.Context, s Store, ledger string) (*chain.Report, error) {
	records, err := s.Records(ctx, ledger)
	if err != nil {
		return nil, err
	}
	report, err := chain.Verify(records)
	if err != nil {
		return report, fmt.Errorf("%w: %s: %w", ErrCorrupt, ledger, err)
	}
	return report, nil
}

// Totaler is implemented by backends that can sum a ledger's energy without
// loading every record.
type Totaler interface {
	TotalEnergy(ctx context.Context, ledger string) (types.Energy, error)
}

// TotalEnergy sums the accumulated energy of every record in ledger.
func TotalEnergy(ctx context.Context, s Store, ledger string) (types.Energy, error) {
	if t, ok := s.(Totaler); ok {
		return t.TotalEnergy(ctx, ledger)
	}
	records, err := s.Records(ctx, ledger)
	if err != nil {
		return 0, err
	}
	var total types.Energy
	for _, r := range records {
		total += r.Payload.AccumulatedEnergy
	}
	return total, nil
}
