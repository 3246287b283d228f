package id_test

import (
	"strings"
	"testing"

	"github.com/xraph/bond/id"
)

var constructors = []struct {
	name    string
	newFn   func() id.ID
	parseFn func(string) (id.ID, error)
	prefix  string
}{
	{"RecordID", id.NewRecordID, id.ParseRecordID, "rec_"},
	{"ReadingID", id.NewReadingID, id.ParseReadingID, "rdg_"},
	{"CycleID", id.NewCycleID, id.ParseCycleID, "cyc_"},
	{"WakeID", id.NewWakeID, id.ParseWakeID, "wake_"},
	{"MintID", id.NewMintID, id.ParseMintID, "mint_"},
}

func TestConstructors(t *testing.T) {
	for _, tt := range constructors {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.newFn().String()
			if !strings.HasPrefix(got, tt.prefix) {
				t.Errorf("expected prefix %q, got %q", tt.prefix, got)
			}
		})
	}
}

func TestParseRoundTrip(t *testing.T) {
	for _, tt := range constructors {
		t.Run(tt.name, func(t *testing.T) {
			original := tt.newFn()
			parsed, err := tt.parseFn(original.String())
			if err != nil {
				t.Fatalf("parse failed: %v", err)
			}
			if parsed.String() != original.String() {
				t.Errorf("round-trip mismatch: %q != %q", parsed.String(), original.String())
			}
		})
	}
}

func TestCrossTypeRejection(t *testing.T) {
	for i, tt := range constructors {
		other := constructors[(i+1)%len(constructors)]
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.parseFn(other.newFn().String()); err == nil {
				t.Errorf("%s parser accepted a %s", tt.name, other.name)
			}
		})
	}
}

func TestParseWithPrefix(t *testing.T) {
	i := id.NewRecordID()
	if _, err := id.ParseWithPrefix(i.String(), id.PrefixRecord); err != nil {
		t.Fatalf("ParseWithPrefix failed: %v", err)
	}
	if _, err := id.ParseWithPrefix(i.String(), id.PrefixReading); err == nil {
		t.Error("expected error for wrong prefix")
	}
	if _, err := id.Parse(""); err == nil {
		t.Error("expected error for empty string")
	}
}

func TestNilID(t *testing.T) {
	var i id.ID
	if !i.IsNil() {
		t.Error("zero-value ID should be nil")
	}
	if i.String() != "" || i.Prefix() != "" {
		t.Errorf("expected empty nil ID, got %q", i.String())
	}
}

func TestMarshalUnmarshalText(t *testing.T) {
	original := id.NewReadingID()
	data, err := original.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText failed: %v", err)
	}

	var restored id.ID
	if err := restored.UnmarshalText(data); err != nil {
		t.Fatalf("UnmarshalText failed: %v", err)
	}
	if restored.String() != original.String() {
		t.Errorf("mismatch: %q != %q", restored.String(), original.String())
	}

	var empty id.ID
	if err := empty.UnmarshalText(nil); err != nil || !empty.IsNil() {
		t.Errorf("empty text should decode to nil ID, err=%v", err)
	}
}

func TestValueScan(t *testing.T) {
	original := id.NewCycleID()
	val, err := original.Value()
	if err != nil {
		t.Fatalf("Value failed: %v", err)
	}

	var scanned id.ID
	if err := scanned.Scan(val); err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if scanned.String() != original.String() {
		t.Errorf("mismatch: %q != %q", scanned.String(), original.String())
	}

	var nilID id.ID
	if v, _ := nilID.Value(); v != nil {
		t.Errorf("expected nil value for nil ID, got %v", v)
	}
}

func TestSortable(t *testing.T) {
	a := id.NewRecordID()
	b := id.NewRecordID()
	if a.String() == b.String() {
		t.Fatalf("two consecutive NewRecordID() calls returned the same ID: %q", a.String())
	}
	if a.String() > b.String() {
		t.Errorf("record IDs not K-sortable: %q > %q", a, b)
	}
}
