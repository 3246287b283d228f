package bond

import "github.com/xraph/bond/id"

// ID is the primary identifier type for all bond entities.
type ID = id.ID

// Prefix identifies the entity type encoded in a TypeID.
type Prefix = id.Prefix

// CycleID identifies one RunCycle invocation.
type CycleID = id.CycleID
