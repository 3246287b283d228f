package reading_test

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/xraph/bond/reading"
	"github.com/xraph/bond/types"
)

func sample() *reading.EnergyReading {
	loc := time.FixedZone("SGT", 8*3600)
	return reading.New(
		reading.UnknownDevice(),
		time.Date(2018, 3, 26, 17, 25, 0, 0, loc),
		[]byte(`{"sites":[]}`),
		types.MustCanonicalize(875.409090909),
		time.Date(2018, 3, 26, 17, 21, 20, 0, loc),
	)
}

func TestUnknownDevice(t *testing.T) {
	d := reading.UnknownDevice()
	if d.Manufacturer != "Unknown" || d.Model != "Unknown" || d.SerialNumber != "Unknown" {
		t.Errorf("unexpected device: %+v", d)
	}
	if d.Geolocation != (reading.Geolocation{}) {
		t.Errorf("expected (0,0) geolocation, got %+v", d.Geolocation)
	}
}

func TestNewNormalizesTimestamps(t *testing.T) {
	r := sample()
	if r.ID.IsNil() {
		t.Fatal("expected reading ID")
	}
	if r.MeasurementTimestamp.Location() != time.UTC {
		t.Errorf("measurement timestamp not UTC: %v", r.MeasurementTimestamp)
	}
	if got := r.MeasurementTimestamp.Format(time.RFC3339); got != "2018-03-26T09:21:20Z" {
		t.Errorf("measurement timestamp = %s", got)
	}
	if got := r.AccessTimestamp.Format(time.RFC3339); !strings.HasSuffix(got, "+08:00") {
		t.Errorf("access timestamp lost its offset: %s", got)
	}
	if r.AccumulatedEnergy != 87540 {
		t.Errorf("energy = %d", r.AccumulatedEnergy)
	}
}

func TestValidate(t *testing.T) {
	if err := sample().Validate(); err != nil {
		t.Fatalf("valid reading rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(r *reading.EnergyReading)
	}{
		{"missing access", func(r *reading.EnergyReading) { r.AccessTimestamp = time.Time{} }},
		{"missing measurement", func(r *reading.EnergyReading) { r.MeasurementTimestamp = time.Time{} }},
		{"non-UTC measurement", func(r *reading.EnergyReading) {
			r.MeasurementTimestamp = r.MeasurementTimestamp.In(time.FixedZone("X", 3600))
		}},
		{"negative energy", func(r *reading.EnergyReading) { r.AccumulatedEnergy = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := sample()
			tt.mutate(r)
			if err := r.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestCanonicalStableAcrossRoundTrip(t *testing.T) {
	r := sample()
	first, err := r.Canonical()
	if err != nil {
		t.Fatal(err)
	}

	var decoded reading.EnergyReading
	if err := json.Unmarshal(first, &decoded); err != nil {
		t.Fatal(err)
	}
	second, err := decoded.Canonical()
	if err != nil {
		t.Fatal(err)
	}
	if string(first) != string(second) {
		t.Errorf("canonical form changed:\n%s\n%s", first, second)
	}
	if !r.Equal(&decoded) {
		t.Error("Equal reported a difference after round trip")
	}
	if !strings.Contains(string(first), `"accumulated_energy":87540`) {
		t.Errorf("energy not an integer in %s", first)
	}
}
