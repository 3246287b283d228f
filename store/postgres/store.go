package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/pgdriver"
	_ "github.com/xraph/grove/drivers/pgdriver/pgmigrate" // registers the pg migration executor
	"github.com/xraph/grove/migrate"

	"github.com/xraph/bond/chain"
	"github.com/xraph/bond/reading"
	bondstore "github.com/xraph/bond/store"
	"github.com/xraph/bond/types"
)

// compile-time interface check
var _ bondstore.Store = (*Store)(nil)

// Store implements store.Store using PostgreSQL via Grove ORM.
type Store struct {
	db *grove.DB
	pg *pgdriver.PgDB
}

// New creates a new PostgreSQL store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db: db,
		pg: pgdriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.pg)
	if err != nil {
		return fmt.Errorf("bond/postgres: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("bond/postgres: migration failed: %w", err)
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
		return nil, fmt.Errorf("bond/postgres: append %s: %w", ledger, err)
	}

	m, err := toRecordModel(rec)
	if err != nil {
		return nil, err
	}
	if _, err := s.pg.NewInsert(m).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("bond/postgres: append %s #%d: %w", ledger, rec.Sequence, bondstore.ErrConflict)
		}
		return nil, fmt.Errorf("bond/postgres: append %s #%d: %w", ledger, rec.Sequence, err)
	}
	rec.Ref = "postgres://bond_records/" + m.ID
	return rec, nil
}

func (s *Store) Records(ctx context.Context, ledger string) ([]*chain.Record, error) {
	if err := bondstore.ValidateName(ledger); err != nil {
		return nil, err
	}
	var models []recordModel
	err := s.pg.NewSelect(&models).
		Where("ledger = $1", ledger).
		OrderExpr("sequence ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("bond/postgres: list %s: %w", ledger, err)
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

// TotalEnergy sums accumulated_energy over every record of ledger.
func (s *Store) TotalEnergy(ctx context.Context, ledger string) (types.Energy, error) {
	var total int64
	err := s.pg.NewRaw(`
		SELECT COALESCE(SUM(accumulated_energy), 0) FROM bond_records
		WHERE ledger = $1
	`, ledger).Scan(ctx, &total)
	if err != nil {
		return 0, fmt.Errorf("bond/postgres: total %s: %w", ledger, err)
	}
	return types.Energy(total), nil
}

// head returns the newest row of ledger, or nil when it is empty.
func (s *Store) head(ctx context.Context, ledger string) (*recordModel, error) {
	if err := bondstore.ValidateName(ledger); err != nil {
		return nil, err
	}
	m := new(recordModel)
	err := s.pg.NewSelect(m).
		Where("ledger = $1", ledger).
		OrderExpr("sequence DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, nil //nolint:nilnil // empty ledger
		}
		return nil, fmt.Errorf("bond/postgres: head %s: %w", ledger, err)
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

// isUniqueViolation matches SQLSTATE 23505.
func isUniqueViolation(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "23505") || strings.Contains(msg, "duplicate key value")
}
