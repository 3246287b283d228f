package sqlite

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

	ID                string    `grove:"id,pk"`
	Ledger            string    `grove:"ledger"`
	Sequence          int64     `grove:"sequence"`
	PrevHash          string    `grove:"prev_hash"`
	ContentHash       string    `grove:"content_hash"`
	Payload           string    `grove:"payload"`
	AccumulatedEnergy int64     `grove:"accumulated_energy"`
	MeasuredAt        time.Time `grove:"measured_at"`
	AppendedAt        time.Time `grove:"appended_at"`
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
		Payload:           string(payload),
		AccumulatedEnergy: int64(r.Payload.AccumulatedEnergy),
		MeasuredAt:        r.Payload.MeasurementTimestamp,
		AppendedAt:        r.AppendedAt,
	}, nil
}

func fromRecordModel(m *recordModel) (*chain.Record, error) {
	recID, err := id.ParseRecordID(m.ID)
	if err != nil {
		return nil, err
	}
	var payload reading.EnergyReading
	if err := json.Unmarshal([]byte(m.Payload), &payload); err != nil {
		return nil, fmt.Errorf("bond/sqlite: decode payload of %s #%d: %w", m.Ledger, m.Sequence, err)
	}
	return &chain.Record{
		ID:          recID,
		Ledger:      m.Ledger,
		Sequence:    m.Sequence,
		PrevHash:    chain.Hash(m.PrevHash),
		ContentHash: chain.Hash(m.ContentHash),
		Payload:     &payload,
		AppendedAt:  m.AppendedAt.UTC(),
		Ref:         fmt.Sprintf("sqlite://bond_records/%s", m.ID),
	}, nil
}
