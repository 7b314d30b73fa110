// Package store provides SQLite-backed durable storage for pipeline runs.
//
// The store is an append-only run log. Each row keeps the run's outcome
// together with the JSON documents needed to inspect or replay it: the
// oracle's ir_dict, the final IR, the verifier report and the trace.
//
// # Ordering
//
// Runs carry a logical sequence number assigned on insert. Every listing
// is ordered by seq ASC, id ASC COLLATE BINARY, never by wall time, so
// listings are identical across machines and replays.
//
// # Idempotency
//
// Run IDs are UUIDv7 strings. Writing a run whose ID already exists is a
// no-op that reports the stored sequence number.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
