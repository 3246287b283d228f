// Package storetest is a conformance suite every store.Store backend runs
// from its own tests.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/xraph/bond/chain"
	"github.com/xraph/bond/reading"
	"github.com/xraph/bond/store"
	"github.com/xraph/bond/types"
)

// Factory returns a fresh, migrated store for one subtest.
type Factory func(t *testing.T) store.Store

// Reading returns a deterministic reading whose energy is kwh.
func Reading(kwh float64) *reading.EnergyReading {
	at := time.Date(2024, 5, 1, 10, 1, 0, 0, time.UTC)
	return reading.New(reading.UnknownDevice(), at, []byte(`{"sites":[]}`), types.MustCanonicalize(kwh), at)
}

// Run exercises the ledger contract against the store returned by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("EmptyLedgerIsGenesis", func(t *testing.T) {
		s := newStore(t)
		h, err := s.LastHash(context.Background(), "production")
		if err != nil {
			t.Fatalf("LastHash: %v", err)
		}
		if h != chain.Genesis {
			t.Errorf("expected genesis, got %s", h)
		}
	})

	t.Run("AppendChainsRecords", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		const n = 5
		var appended []*chain.Record
		for k := 1; k <= n; k++ {
			rec, err := s.Append(ctx, "production", Reading(float64(k)*1.25))
			if err != nil {
				t.Fatalf("Append #%d: %v", k, err)
			}
			if rec.Sequence != int64(k) {
				t.Errorf("record %d: sequence %d", k, rec.Sequence)
			}
			want := chain.Genesis
			if k > 1 {
				want = appended[k-2].ContentHash
			}
			if rec.PrevHash != want {
				t.Errorf("record %d: prev %s, want %s", k, rec.PrevHash.Short(), want.Short())
			}

			last, err := s.LastHash(ctx, "production")
			if err != nil {
				t.Fatalf("LastHash: %v", err)
			}
			if last != rec.ContentHash {
				t.Errorf("after append %d: LastHash %s, want %s", k, last.Short(), rec.ContentHash.Short())
			}
			appended = append(appended, rec)
		}

		records, err := s.Records(ctx, "production")
		if err != nil {
			t.Fatalf("Records: %v", err)
		}
		if len(records) != n {
			t.Fatalf("expected %d records, got %d", n, len(records))
		}
		for i, r := range records {
			if r.ContentHash != appended[i].ContentHash {
				t.Errorf("record %d: stored hash differs from returned hash", i+1)
			}
			if !r.Payload.Equal(appended[i].Payload) {
				t.Errorf("record %d: payload changed in storage", i+1)
			}
		}
		if _, err := store.Verify(ctx, s, "production"); err != nil {
			t.Errorf("Verify: %v", err)
		}
	})

	t.Run("LastHashIsIdempotent", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		if _, err := s.Append(ctx, "consumption", Reading(3)); err != nil {
			t.Fatal(err)
		}
		first, _ := s.LastHash(ctx, "consumption")
		for i := 0; i < 3; i++ {
			again, err := s.LastHash(ctx, "consumption")
			if err != nil {
				t.Fatal(err)
			}
			if again != first {
				t.Fatalf("LastHash changed without an append: %s -> %s", first, again)
			}
		}
	})

	t.Run("LedgersAreIndependent", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		if _, err := s.Append(ctx, "production", Reading(1)); err != nil {
			t.Fatal(err)
		}
		h, err := s.LastHash(ctx, "consumption")
		if err != nil {
			t.Fatal(err)
		}
		if h != chain.Genesis {
			t.Error("append to production leaked into consumption")
		}
		rec, err := s.Append(ctx, "consumption", Reading(2))
		if err != nil {
			t.Fatal(err)
		}
		if rec.Sequence != 1 || rec.PrevHash != chain.Genesis {
			t.Errorf("consumption did not start a new chain: %+v", rec)
		}
	})

	t.Run("RejectsBadInput", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		if _, err := s.LastHash(ctx, "../etc"); !errors.Is(err, store.ErrInvalidLedger) {
			t.Errorf("expected ErrInvalidLedger, got %v", err)
		}
		if _, err := s.Append(ctx, "production", nil); err == nil {
			t.Error("expected error appending nil reading")
		}
		h, _ := s.LastHash(ctx, "production")
		if h != chain.Genesis {
			t.Error("failed append changed the head")
		}
	})

	t.Run("Ping", func(t *testing.T) {
		if err := newStore(t).Ping(context.Background()); err != nil {
			t.Errorf("Ping: %v", err)
		}
	})
}
