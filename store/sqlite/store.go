package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/sqlitedriver"
	_ "github.com/xraph/grove/drivers/sqlitedriver/sqlitemigrate" // registers the sqlite migration executor
	"github.com/xraph/grove/migrate"

	"github.com/xraph/bond/chain"
	"github.com/xraph/bond/reading"
	bondstore "github.com/xraph/bond/store"
)

// compile-time interface check
var _ bondstore.Store = (*Store)(nil)

// Store implements store.Store using SQLite via Grove ORM.
type Store struct {
	db  *grove.DB
	sdb *sqlitedriver.SqliteDB
}

// New creates a new SQLite store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		sdb: sqlitedriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.sdb)
	if err != nil {
		return fmt.Errorf("bond/sqlite: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("bond/sqlite: migration failed: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Ledger Store ====================

func (s *Store) LastHash(ctx context.Context, ledger string) (chain.Hash, error) {
	last, err := s.head(ctx, ledger)
	if err != nil {
		return "", err
	}
	if last == nil {
		return chain.Genesis, nil
	}
	return chain.Hash(last.ContentHash), nil
}

func (s *Store) Append(ctx context.Context, ledger string, r *reading.EnergyReading) (*chain.Record, error) {
	last, err := s.head(ctx, ledger)
	if err != nil {
		return nil, err
	}

	var prev *chain.Record
	if last != nil {
		if prev, err = fromRecordModel(last); err != nil {
			return nil, err
		}
	}
	rec, err := chain.Next(ledger, prev, r, now())
	if err != nil {
		return nil, fmt.Errorf("bond/sqlite: append %s: %w", ledger, err)
	}

	m, err := toRecordModel(rec)
	if err != nil {
		return nil, err
	}
	if _, err := s.sdb.NewInsert(m).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("bond/sqlite: append %s #%d: %w", ledger, rec.Sequence, bondstore.ErrConflict)
		}
		return nil, fmt.Errorf("bond/sqlite: append %s #%d: %w", ledger, rec.Sequence, err)
	}
	rec.Ref = fmt.Sprintf("sqlite://bond_records/%s", m.ID)
	return rec, nil
}

func (s *Store) Records(ctx context.Context, ledger string) ([]*chain.Record, error) {
	if err := bondstore.ValidateName(ledger); err != nil {
		return nil, err
	}
	var models []recordModel
	err := s.sdb.NewSelect(&models).
		Where("ledger = ?", ledger).
		OrderExpr("sequence ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("bond/sqlite: list %s: %w", ledger, err)
	}

	result := make([]*chain.Record, len(models))
	for i := range models {
		r, err := fromRecordModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = r
	}
	return result, nil
}

// head returns the newest row of ledger, or nil when it is empty.
func (s *Store) head(ctx context.Context, ledger string) (*recordModel, error) {
	if err := bondstore.ValidateName(ledger); err != nil {
		return nil, err
	}
	m := new(recordModel)
	err := s.sdb.NewSelect(m).
		Where("ledger = ?", ledger).
		OrderExpr("sequence DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, nil //nolint:nilnil // empty ledger
		}
		return nil, fmt.Errorf("bond/sqlite: head %s: %w", ledger, err)
	}
	return m, nil
}

// ==================== Helpers ====================

func now() time.Time {
	return time.Now().UTC()
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
