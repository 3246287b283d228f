package postgres

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/bond/chain"
	"github.com/xraph/bond/id"
	"github.com/xraph/bond/reading"
)

type recordModel struct {
	grove.BaseModel `grove:"table:bond_records"`

	ID                string          `grove:"id,pk"`
	Ledger            string          `grove:"ledger"`
	Sequence          int64           `grove:"sequence"`
	PrevHash          string          `grove:"prev_hash"`
	ContentHash       string          `grove:"content_hash"`
	Payload           json.RawMessage `grove:"payload,type:jsonb"`
	AccumulatedEnergy int64           `grove:"accumulated_energy"`
	MeasuredAt        time.Time       `grove:"measured_at"`
	AppendedAt        time.Time       `grove:"appended_at"`
}

func toRecordModel(r *chain.Record) (*recordModel, error) {
	payload, err := r.Payload.Canonical()
	if err != nil {
		return nil, err
	}
	return &recordModel{
		ID:                r.ID.String(),
		Ledger:            r.Ledger,
		Sequence:          r.Sequence,
		PrevHash:          r.PrevHash.String(),
		ContentHash:       r.ContentHash.String(),
		Payload:           payload,
		AccumulatedEnergy: int64(r.Payload.AccumulatedEnergy),
		MeasuredAt:        r.Payload.MeasurementTimestamp,
		AppendedAt:        r.AppendedAt,
	}, nil
}

// fromRecordModel decodes a row. JSONB does not keep key order or spacing,
// which is fine: the hash is recomputed from the decoded struct, not from
// the stored bytes.
func fromRecordModel(m *recordModel) (*chain.Record, error) {
	recID, err := id.ParseRecordID(m.ID)
	if err != nil {
		return nil, err
	}
	var payload reading.EnergyReading
	if err := json.Unmarshal(m.Payload, &payload); err != nil {
		return nil, fmt.Errorf("bond/postgres: decode payload of %s #%d: %w", m.Ledger, m.Sequence, err)
	}
	return &chain.Record{
		ID:          recID,
		Ledger:      m.Ledger,
		Sequence:    m.Sequence,
		PrevHash:    chain.Hash(m.PrevHash),
		ContentHash: chain.Hash(m.ContentHash),
		Payload:     &payload,
		AppendedAt:  m.AppendedAt.UTC(),
		Ref:         "postgres://bond_records/" + m.ID,
	}, nil
}
