// Package reading defines the canonical energy reading every source produces
// and every ledger stores.
package reading

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/bond/id"
	"github.com/xraph/bond/types"
)

// Unknown is the placeholder for device metadata an upstream omits.
const Unknown = "Unknown"

// Geolocation is a WGS84 latitude/longitude pair.
type Geolocation struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Device describes the meter that produced a reading.
type Device struct {
	Manufacturer string      `json:"manufacturer"`
	Model        string      `json:"model"`
	SerialNumber string      `json:"serial_number"`
	Geolocation  Geolocation `json:"geolocation"`
}

// UnknownDevice returns the device used when the upstream has no metadata.
func UnknownDevice() Device {
	return Device{
		Manufacturer: Unknown,
		Model:        Unknown,
		SerialNumber: Unknown,
	}
}

// EnergyReading is one measurement interval as reported by a source.
//
// AccumulatedEnergy is always the canonical fixed-point value; the float the
// upstream sent only survives inside RawSourcePayload.
type EnergyReading struct {
	ID                   id.ReadingID `json:"id"`
	Device               Device       `json:"device"`
	AccessTimestamp      time.Time    `json:"access_timestamp"`
	RawSourcePayload     []byte       `json:"raw_source_payload"`
	AccumulatedEnergy    types.Energy `json:"accumulated_energy"`
	MeasurementTimestamp time.Time    `json:"measurement_timestamp"`
}

// New builds a reading with a fresh ID. The measurement timestamp is stored
// in UTC and the access timestamp keeps the caller's offset.
func New(device Device, accessedAt time.Time, raw []byte, energy types.Energy, measuredAt time.Time) *EnergyReading {
	return &EnergyReading{
		ID:                   id.NewReadingID(),
		Device:               device,
		AccessTimestamp:      accessedAt.Round(0),
		RawSourcePayload:     raw,
		AccumulatedEnergy:    energy,
		MeasurementTimestamp: measuredAt.Round(0).UTC(),
	}
}

// Validate checks the fields a ledger relies on.
func (r *EnergyReading) Validate() error {
	var errs []error
	if r.AccessTimestamp.IsZero() {
		errs = append(errs, errors.New("access_timestamp is required"))
	}
	if r.MeasurementTimestamp.IsZero() {
		errs = append(errs, errors.New("measurement_timestamp is required"))
	} else if _, off := r.MeasurementTimestamp.Zone(); off != 0 {
		errs = append(errs, errors.New("measurement_timestamp must be UTC"))
	}
	if r.AccumulatedEnergy.IsNegative() {
		errs = append(errs, fmt.Errorf("accumulated_energy %s is negative", r.AccumulatedEnergy))
	}
	if len(errs) > 0 {
		return fmt.Errorf("reading: invalid: %w", errors.Join(errs...))
	}
	return nil
}

// Canonical returns the serialization that is hashed into the ledger.
// Field order is fixed by the struct definition, so the output is stable
// across encode/decode round trips.
func (r *EnergyReading) Canonical() ([]byte, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("reading: canonical encode: %w", err)
	}
	return data, nil
}

// Equal reports whether two readings carry the same canonical content.
func (r *EnergyReading) Equal(other *EnergyReading) bool {
	if r == nil || other == nil {
		return r == other
	}
	a, errA := r.Canonical()
	b, errB := other.Canonical()
	return errA == nil && errB == nil && string(a) == string(b)
}
