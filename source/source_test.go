package source_test

import (
	"context"
	"errors"
	"testing"

	"github.com/xraph/bond/chain"
	"github.com/xraph/bond/reading"
	"github.com/xraph/bond/source"
)

func TestFuncReceivesContext(t *testing.T) {
	var seen source.Context
	f := source.Func(func(_ context.Context, rc source.Context) (*reading.EnergyReading, error) {
		seen = rc
		return nil, source.ErrEmptyResponse
	})

	_, err := f.ReadState(context.Background(), source.Context{LastLocalHash: chain.Genesis})
	if !errors.Is(err, source.ErrEmptyResponse) {
		t.Errorf("expected ErrEmptyResponse, got %v", err)
	}
	if seen.LastLocalHash != chain.Genesis {
		t.Errorf("context not forwarded: %+v", seen)
	}
	if got := source.Name(f); got != "custom" {
		t.Errorf("Name = %q", got)
	}
}
