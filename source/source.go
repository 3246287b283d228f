// Package source defines the capability every upstream meter adapter
// implements: turn the latest completed measurement interval into a
// canonical reading.
//
// Sources do not retry. A failed read is reported once and the pipeline
// decides what happens next.
package source

import (
	"context"
	"errors"

	"github.com/xraph/bond/chain"
	"github.com/xraph/bond/reading"
	"github.com/xraph/bond/remote"
)

// ErrEmptyResponse is returned when the upstream answered but had no entry
// for the configured site or device.
var ErrEmptyResponse = errors.New("bond: empty response from data source")

// Context is what the pipeline knows before a read. Sources may use it to
// detect gaps; none are required to.
type Context struct {
	LastLocalHash   chain.Hash
	LastRemoteState *remote.State
}

// Source reads one reading from an upstream meter.
type Source interface {
	ReadState(ctx context.Context, rc Context) (*reading.EnergyReading, error)
}

// Func adapts a plain function to Source.
type Func func(ctx context.Context, rc Context) (*reading.EnergyReading, error)

// ReadState calls f.
func (f Func) ReadState(ctx context.Context, rc Context) (*reading.EnergyReading, error) {
	return f(ctx, rc)
}

// Named is implemented by sources that can describe themselves in logs.
type Named interface {
	SourceName() string
}

// Name returns the source's self-description, or "custom".
func Name(s Source) string {
	if n, ok := s.(Named); ok {
		return n.SourceName()
	}
	return "custom"
}
