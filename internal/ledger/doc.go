// Package ledger implements the participation ledger: a durable keyed store
// mapping (meeting occurrence, participant) pairs to participation records.
//
// The storage key is derived deterministically from the lowercased
// participant email and a sanitized occurrence id, which makes every write an
// idempotent upsert: redelivered webhooks and re-run backfills converge on
// the same single record per pair. The existence check used for
// authorization is an O(1) point lookup and never scans.
//
// Two implementations are provided: NATSStore on JetStream key-value buckets
// for production, and MemStore for tests and local development.
package ledger
