package chain_test

import (
	"errors"
	"testing"
	"time"

	"github.com/xraph/bond/chain"
	"github.com/xraph/bond/reading"
	"github.com/xraph/bond/types"
)

func newReading(kwh float64) *reading.EnergyReading {
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	return reading.New(reading.UnknownDevice(), at, nil, types.MustCanonicalize(kwh), at)
}

func build(t *testing.T, n int) []*chain.Record {
	t.Helper()
	var (
		out  []*chain.Record
		last *chain.Record
	)
	for i := 0; i < n; i++ {
		r, err := chain.Next("production", last, newReading(float64(i)+0.5), time.Now())
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		out = append(out, r)
		last = r
	}
	return out
}

func TestComputeHashDeterministic(t *testing.T) {
	r := newReading(875.409090909)
	a, err := chain.ComputeHash(chain.Genesis, r)
	if err != nil {
		t.Fatal(err)
	}
	b, _ := chain.ComputeHash(chain.Genesis, r)
	if a != b {
		t.Errorf("hash not deterministic: %s != %s", a, b)
	}
	if _, err := chain.ParseHash(a.String()); err != nil {
		t.Errorf("hash is not a valid digest: %v", err)
	}

	other, _ := chain.ComputeHash(a, r)
	if other == a {
		t.Error("prev hash does not contribute to content hash")
	}

	if _, err := chain.ComputeHash(chain.Genesis, nil); !errors.Is(err, chain.ErrNilPayload) {
		t.Errorf("expected ErrNilPayload, got %v", err)
	}
}

func TestNextLinksRecords(t *testing.T) {
	records := build(t, 4)
	for k, r := range records {
		if r.Sequence != int64(k+1) {
			t.Errorf("record %d: sequence %d", k, r.Sequence)
		}
		want := chain.Genesis
		if k > 0 {
			want = records[k-1].ContentHash
		}
		if r.PrevHash != want {
			t.Errorf("record %d: prev %s, want %s", k, r.PrevHash.Short(), want.Short())
		}
	}
	if !records[0].PrevHash.IsGenesis() {
		t.Error("first record must link to genesis")
	}
}

func TestVerify(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		records := build(t, 3)
		report, err := chain.Verify(records)
		if err != nil {
			t.Fatalf("Verify: %v", err)
		}
		if report.Records != 3 || report.LastSequence != 3 || report.LastHash != records[2].ContentHash {
			t.Errorf("unexpected report: %+v", report)
		}
	})

	t.Run("empty", func(t *testing.T) {
		report, err := chain.Verify(nil)
		if err != nil || report.LastHash != chain.Genesis {
			t.Errorf("empty chain: %+v, %v", report, err)
		}
	})

	tests := []struct {
		name   string
		tamper func([]*chain.Record)
		want   error
	}{
		{"payload edited", func(r []*chain.Record) { r[1].Payload.AccumulatedEnergy++ }, chain.ErrHashMismatch},
		{"link broken", func(r []*chain.Record) { r[2].PrevHash = chain.Genesis }, chain.ErrBrokenLink},
		{"sequence gap", func(r []*chain.Record) { r[1].Sequence = 5 }, chain.ErrSequenceGap},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records := build(t, 3)
			tt.tamper(records)
			report, err := chain.Verify(records)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			if report.Records >= 3 {
				t.Errorf("report should stop before the bad record: %+v", report)
			}
		})
	}
}

func TestParseHash(t *testing.T) {
	if _, err := chain.ParseHash("abc"); err == nil {
		t.Error("short hash accepted")
	}
	if h, err := chain.ParseHash(string(chain.Genesis)); err != nil || !h.IsGenesis() {
		t.Errorf("genesis not parsed: %v", err)
	}
}
