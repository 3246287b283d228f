package mongo

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/bond/chain"
	"github.com/xraph/bond/id"
	"github.com/xraph/bond/reading"
)

// recordModel keeps the payload as its canonical JSON string so the stored
// bytes are exactly the ones that were hashed.
type recordModel struct {
	grove.BaseModel `grove:"table:bond_records"`

	ID                string    `grove:"id,pk"              bson:"_id"`
	Ledger            string    `grove:"ledger"             bson:"ledger"`
	Sequence          int64     `grove:"sequence"           bson:"sequence"`
	PrevHash          string    `grove:"prev_hash"          bson:"prev_hash"`
	ContentHash       string    `grove:"content_hash"       bson:"content_hash"`
	Payload           string    `grove:"payload"            bson:"payload"`
	AccumulatedEnergy int64     `grove:"accumulated_energy" bson:"accumulated_energy"`
	MeasuredAt        time.Time `grove:"measured_at"        bson:"measured_at"`
	AppendedAt        time.Time `grove:"appended_at"        bson:"appended_at"`
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
		return nil, fmt.Errorf("bond/mongo: decode payload of %s #%d: %w", m.Ledger, m.Sequence, err)
	}
	return &chain.Record{
		ID:          recID,
		Ledger:      m.Ledger,
		Sequence:    m.Sequence,
		PrevHash:    chain.Hash(m.PrevHash),
		ContentHash: chain.Hash(m.ContentHash),
		Payload:     &payload,
		AppendedAt:  m.AppendedAt.UTC(),
		Ref:         colRecords + "/" + m.ID,
	}, nil
}
