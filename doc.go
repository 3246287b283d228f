// Package bond reconciles metered energy readings between a local
// tamper-evident ledger and a remote distributed ledger.
//
// Bond is designed as a library. The Engine pulls a reading from each
// configured item's data source, appends it to a hash-chained local ledger,
// then mints it on the remote ledger. It provides:
//
//   - Separate production and consumption hash chains (file, memory, SQL or Mongo backed)
//   - Bounded linear-backoff retry per item, isolated from sibling items
//   - A daily wake plan that drives hourly and full reconciliation cycles
//   - Lifecycle hooks for metrics, audit trails and Kafka telemetry
//
// # Quick Start
//
//	eng := bond.New(
//	    bond.WithStore(file.New("./ledger")),
//	    bond.WithRemote(gateway.New(remoteURL, gateway.WithToken(token))),
//	    bond.WithItems(bond.Item{
//	        Name:     "rooftop",
//	        Kind:     bond.Production,
//	        Category: bond.Hourly,
//	        Origin:   "building-1",
//	        Source:   spgroup.New(feedURL, "rooftop"),
//	    }),
//	)
//	if err := eng.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer eng.Stop()
//
//	// One pass over the rest of today.
//	err := schedule.New(eng.WakePlan(time.Now())).Run(ctx)
//
// # Energy values
//
// Accumulated energy is stored as a fixed-point integer in hundredths:
// Canonicalize renders a float to two decimal digits, truncating, and
// drops the separator, so 875.409090909 becomes 87540.
//
// # Failure semantics
//
// An item attempt runs fetch_local_hash, fetch_remote_state, read_source,
// append_local, mint_remote and verify in order. A failed attempt is retried
// after attempt×300s, at most three times. A record appended before a failed
// mint stays in the local ledger; the two ledgers are not kept consistent
// after a partial failure.
package bond
