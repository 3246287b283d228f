package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/sqlitedriver"

	"github.com/xraph/bond/chain"
	"github.com/xraph/bond/store"
	"github.com/xraph/bond/store/sqlite"
	"github.com/xraph/bond/store/storetest"
)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	ctx := context.Background()

	drv := sqlitedriver.New()
	if err := drv.Open(ctx, filepath.Join(t.TempDir(), "bond.db")); err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db, err := grove.Open(drv)
	if err != nil {
		t.Fatalf("grove.Open: %v", err)
	}

	s := sqlite.New(db)
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		return newStore(t)
	})
}

func TestMigrateIsIdempotent(t *testing.T) {
	s := newStore(t)
	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}
}

func TestSameReadingInBothLedgers(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	prod, err := s.Append(ctx, "production", storetest.Reading(7))
	if err != nil {
		t.Fatal(err)
	}
	cons, err := s.Append(ctx, "consumption", storetest.Reading(7))
	if err != nil {
		t.Fatalf("identical genesis record in a second ledger: %v", err)
	}
	if prod.ContentHash != cons.ContentHash {
		t.Errorf("hashes differ for the same payload on genesis: %s / %s", prod.ContentHash.Short(), cons.ContentHash.Short())
	}
}

func TestRecordsSurviveReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	dsn := filepath.Join(dir, "bond.db")

	open := func() *sqlite.Store {
		drv := sqlitedriver.New()
		if err := drv.Open(ctx, dsn); err != nil {
			t.Fatal(err)
		}
		db, err := grove.Open(drv)
		if err != nil {
			t.Fatal(err)
		}
		s := sqlite.New(db)
		if err := s.Migrate(ctx); err != nil {
			t.Fatal(err)
		}
		return s
	}

	s := open()
	var last *chain.Record
	for _, kwh := range []float64{1.5, 2.25, 3} {
		rec, err := s.Append(ctx, "production", storetest.Reading(kwh))
		if err != nil {
			t.Fatal(err)
		}
		last = rec
	}
	_ = s.Close()

	s = open()
	defer s.Close() //nolint:errcheck // test cleanup

	report, err := store.Verify(ctx, s, "production")
	if err != nil {
		t.Fatalf("Verify after reopen: %v", err)
	}
	if report.Records != 3 || report.LastHash != last.ContentHash {
		t.Errorf("report = %+v, want 3 records ending at %s", report, last.ContentHash.Short())
	}
}
