package types

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
)

func TestCanonicalize(t *testing.T) {
	tests := []struct {
		name  string
		input float64
		want  Energy
	}{
		{"truncates past second decimal", 875.409090909, 87540},
		{"whole number", 12.0, 1200},
		{"zero", 0, 0},
		{"one decimal", 3.5, 350},
		{"two decimals exact", 0.29, 29},
		{"just below next cent", 1.999, 199},
		{"negative truncates toward zero", -3.999, -399},
		{"large", 123456789.987, 12345678998},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Canonicalize(tt.input)
			if err != nil {
				t.Fatalf("Canonicalize(%v): %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("Canonicalize(%v) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestCanonicalizeRejectsNonFinite(t *testing.T) {
	for _, f := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		if _, err := Canonicalize(f); !errors.Is(err, ErrNotFinite) {
			t.Errorf("Canonicalize(%v): expected ErrNotFinite, got %v", f, err)
		}
	}
	if _, err := Canonicalize(1e300); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("Canonicalize(1e300): expected ErrOutOfRange, got %v", err)
	}
}

func TestParseEnergy(t *testing.T) {
	got, err := ParseEnergy("875.409090909")
	if err != nil {
		t.Fatalf("ParseEnergy: %v", err)
	}
	if got != 87540 {
		t.Errorf("ParseEnergy = %d, want 87540", got)
	}
	if _, err := ParseEnergy("watts"); err == nil {
		t.Error("expected error for non-numeric input")
	}
}

func TestEnergyString(t *testing.T) {
	tests := []struct {
		e    Energy
		want string
	}{
		{87540, "875.40"},
		{1200, "12.00"},
		{5, "0.05"},
		{-399, "-3.99"},
		{0, "0.00"},
	}
	for _, tt := range tests {
		if got := tt.e.String(); got != tt.want {
			t.Errorf("Energy(%d).String() = %q, want %q", int64(tt.e), got, tt.want)
		}
	}
}

func TestEnergyJSONIsInteger(t *testing.T) {
	data, err := json.Marshal(struct {
		E Energy `json:"e"`
	}{E: 87540})
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"e":87540}` {
		t.Errorf("got %s", data)
	}
}

func TestSum(t *testing.T) {
	if got := Sum(100, 250, MustCanonicalize(1.5)); got != 500 {
		t.Errorf("Sum = %d, want 500", got)
	}
	if got := Sum(); !got.IsZero() {
		t.Errorf("empty Sum = %d", got)
	}
}
