// Package registry is the keyed run-state machine for triage runs: one
// record per dataset item trigger, exclusive check-and-create so at most one
// run is in flight per item, and durable terminal outcomes for idempotent
// re-trigger queries. Persistence is SQLite on local disk.
package registry
