package postgres

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the bond store.
var Migrations = migrate.NewGroup("bond")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_bond_records",
			Version: "20240601000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS bond_records (
    id                 TEXT PRIMARY KEY,
    ledger             TEXT NOT NULL,
    sequence           BIGINT NOT NULL,
    prev_hash          TEXT NOT NULL,
    content_hash       TEXT NOT NULL,
    payload            JSONB NOT NULL,
    accumulated_energy BIGINT NOT NULL DEFAULT 0,
    measured_at        TIMESTAMPTZ NOT NULL,
    appended_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    CONSTRAINT bond_records_sequence_positive CHECK (sequence > 0)
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_bond_records_ledger_seq ON bond_records (ledger, sequence);
CREATE UNIQUE INDEX IF NOT EXISTS idx_bond_records_hash ON bond_records (ledger, content_hash);
CREATE INDEX IF NOT EXISTS idx_bond_records_measured ON bond_records (ledger, measured_at DESC);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS bond_records`)
				return err
			},
		},
	)
}
