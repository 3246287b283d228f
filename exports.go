package bond

import (
	"github.com/xraph/bond/chain"
	"github.com/xraph/bond/reading"
	"github.com/xraph/bond/types"
)

// Re-export common types so callers rarely need the leaf packages.

// Energy is re-exported from the types package.
type Energy = types.Energy

// Reading is re-exported from the reading package.
type Reading = reading.EnergyReading

// Device is re-exported from the reading package.
type Device = reading.Device

// Hash is re-exported from the chain package.
type Hash = chain.Hash

// Record is re-exported from the chain package.
type Record = chain.Record

// Genesis is the previous hash of the first record in every ledger.
const Genesis = chain.Genesis

// Re-export constructors
var (
	Canonicalize     = types.Canonicalize
	MustCanonicalize = types.MustCanonicalize
	NewReading       = reading.New
	UnknownDevice    = reading.UnknownDevice
)
