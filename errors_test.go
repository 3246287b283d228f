package bond_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/xraph/bond"
	"github.com/xraph/bond/store"
)

func TestErrorHelpers(t *testing.T) {
	srcErr := &bond.DataSourceError{Item: "solar", Err: bond.ErrEmptyResponse}
	ledgerErr := &bond.LedgerError{Kind: bond.Production, Op: "append", Err: errors.New("disk full")}
	remoteErr := &bond.RemoteLedgerError{Origin: "b1", Op: "mint", Err: errors.New("503")}
	cfgErr := &bond.ConfigurationError{Field: "items[0].kind", Message: "unknown"}
	corrupt := &bond.LedgerError{Kind: bond.Production, Op: "last_hash", Err: fmt.Errorf("%w: production", store.ErrCorrupt)}

	tests := []struct {
		name      string
		err       error
		source    bool
		ledger    bool
		remote    bool
		config    bool
	}{
		{"source", srcErr, true, false, false, false},
		{"ledger", ledgerErr, false, true, false, false},
		{"remote", remoteErr, false, false, true, false},
		{"config", cfgErr, false, false, false, true},
		{"corrupt ledger", corrupt, false, true, false, false},
		{"wrapped in step", &bond.StepError{Item: "solar", Step: bond.StepMint, Err: remoteErr}, false, false, true, false},
		{"nil", nil, false, false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := bond.IsDataSourceError(tt.err); got != tt.source {
				t.Errorf("IsDataSourceError = %v", got)
			}
			if got := bond.IsLedgerError(tt.err); got != tt.ledger {
				t.Errorf("IsLedgerError = %v", got)
			}
			if got := bond.IsRemoteError(tt.err); got != tt.remote {
				t.Errorf("IsRemoteError = %v", got)
			}
			if got := bond.IsConfigurationError(tt.err); got != tt.config {
				t.Errorf("IsConfigurationError = %v", got)
			}
		})
	}

	if !errors.Is(corrupt, store.ErrCorrupt) {
		t.Error("LedgerError does not unwrap to store.ErrCorrupt")
	}
	if !errors.Is(srcErr, bond.ErrEmptyResponse) {
		t.Error("DataSourceError does not unwrap to ErrEmptyResponse")
	}
}

func TestMultiError(t *testing.T) {
	var m bond.MultiError
	if m.ErrOrNil() != nil || m.First() != nil {
		t.Fatal("empty MultiError should be nil")
	}
	m.Add(nil)
	m.Add(bond.ErrNoSource)
	if m.Error() != bond.ErrNoSource.Error() {
		t.Errorf("Error() = %q", m.Error())
	}
	m.Add(bond.ErrNoLedger)
	if m.Error() != "bond: 2 errors occurred" {
		t.Errorf("Error() = %q", m.Error())
	}
	if !errors.Is(m.ErrOrNil(), bond.ErrNoLedger) {
		t.Error("MultiError does not unwrap its members")
	}
}

func TestRetryPolicy(t *testing.T) {
	p := bond.DefaultRetryPolicy()
	if p.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d", p.MaxAttempts)
	}
	for i, want := range []int{0, 300, 600} {
		if got := p.Delay(i).Seconds(); int(got) != want {
			t.Errorf("Delay(%d) = %vs, want %ds", i, got, want)
		}
	}
	if err := (bond.RetryPolicy{MaxAttempts: 2}).Validate(); !bond.IsConfigurationError(err) {
		t.Errorf("expected configuration error for missing delay, got %v", err)
	}
}
