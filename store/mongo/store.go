package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	"github.com/xraph/bond/chain"
	"github.com/xraph/bond/reading"
	bondstore "github.com/xraph/bond/store"
)

// Collection name constants.
const (
	colRecords = "bond_records"
)

// compile-time interface check
var _ bondstore.Store = (*Store)(nil)

// Store implements store.Store using MongoDB via Grove ORM.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		mdb: mongodriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates indexes for all bond collections.
func (s *Store) Migrate(ctx context.Context) error {
	indexes := migrationIndexes()

	for col, models := range indexes {
		if len(models) == 0 {
			continue
		}
		_, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("bond/mongo: migrate %s indexes: %w", col, err)
		}
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
	rec, err := chain.Next(ledger, prev, r, time.Now())
	if err != nil {
		return nil, fmt.Errorf("bond/mongo: append %s: %w", ledger, err)
	}

	m, err := toRecordModel(rec)
	if err != nil {
		return nil, err
	}
	if _, err := s.mdb.NewInsert(m).Exec(ctx); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("bond/mongo: append %s #%d: %w", ledger, rec.Sequence, bondstore.ErrConflict)
		}
		return nil, fmt.Errorf("bond/mongo: append %s #%d: %w", ledger, rec.Sequence, err)
	}
	rec.Ref = colRecords + "/" + m.ID
	return rec, nil
}

func (s *Store) Records(ctx context.Context, ledger string) ([]*chain.Record, error) {
	if err := bondstore.ValidateName(ledger); err != nil {
		return nil, err
	}
	var models []recordModel
	err := s.mdb.NewFind(&models).
		Filter(bson.M{"ledger": ledger}).
		Sort(bson.D{{Key: "sequence", Value: 1}}).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("bond/mongo: list %s: %w", ledger, err)
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

// head returns the newest document of ledger, or nil when it is empty.
func (s *Store) head(ctx context.Context, ledger string) (*recordModel, error) {
	if err := bondstore.ValidateName(ledger); err != nil {
		return nil, err
	}
	var m recordModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"ledger": ledger}).
		Sort(bson.D{{Key: "sequence", Value: -1}}).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, nil //nolint:nilnil // empty ledger
		}
		return nil, fmt.Errorf("bond/mongo: head %s: %w", ledger, err)
	}
	return &m, nil
}

func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for all bond collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colRecords: {
			{
				Keys:    bson.D{{Key: "ledger", Value: 1}, {Key: "sequence", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{
				Keys:    bson.D{{Key: "ledger", Value: 1}, {Key: "content_hash", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "ledger", Value: 1}, {Key: "measured_at", Value: -1}}},
		},
	}
}
