package ledger

import (
	"context"
	"time"
)

// Batch and paging bounds imposed by the underlying store.
const (
	// UpsertBatchCeiling is the maximum number of records committed per
	// chunk. Chunks commit independently; a crash loses at most one chunk,
	// and re-running the same write is a no-op thanks to deterministic keys.
	UpsertBatchCeiling = 500

	// DeleteBatchSize bounds each deletion pass of DeleteOlderThan so the
	// sweeper makes forward progress in bounded chunks.
	DeleteBatchSize = 100

	// DefaultQueryLimit caps query results when the caller does not specify
	// a limit.
	DefaultQueryLimit = 50

	// MaxQueryLimit is the hard cap on query results.
	MaxQueryLimit = 100
)

// Store is the participation ledger: a durable keyed store of participation
// records and standing access rules.
//
// Exists is the authorization check and must be a point lookup, never a scan.
type Store interface {
	// UpsertBatch writes records idempotently, chunking transparently to
	// respect the per-batch ceiling. Partial success across chunks is
	// acceptable under a crash; callers retry the whole write.
	UpsertBatch(ctx context.Context, records []Record) error

	// Exists reports whether a record exists for the (occurrence,
	// participant) pair. O(1) point lookup by the deterministic key.
	Exists(ctx context.Context, occurrenceID, email string) (bool, error)

	// Get returns the record for the (occurrence, participant) pair, or a
	// NotFound error.
	Get(ctx context.Context, occurrenceID, email string) (*Record, error)

	// QueryByParticipant returns occurrences the participant attended within
	// the inclusive range, newest first, deduplicated by occurrence, capped
	// at limit.
	QueryByParticipant(ctx context.Context, email string, from, to time.Time, limit int) ([]Record, error)

	// QueryAll returns occurrences within the inclusive range irrespective
	// of participant, newest first, deduplicated by occurrence, capped at
	// limit. Privileged; callers must already be authorized.
	QueryAll(ctx context.Context, from, to time.Time, limit int) ([]Record, error)

	// DeleteOlderThan bulk-deletes records whose start time falls before
	// cutoff, in bounded batches until exhausted, and returns the count
	// deleted. Idempotent no-op once nothing remains.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error)

	// Revoke deletes a single record, refusing unless its provenance is
	// revocable (preregistration or manual-grant).
	Revoke(ctx context.Context, occurrenceID, email string) error

	// PutRule stores a standing access rule.
	PutRule(ctx context.Context, rule AccessRule) error

	// DeleteRule removes a standing access rule. Missing rules are a no-op.
	DeleteRule(ctx context.Context, meetingID, email string) error

	// RulesForMeeting returns the standing rules for a meeting id.
	RulesForMeeting(ctx context.Context, meetingID string) ([]AccessRule, error)

	// ListRules returns all standing rules.
	ListRules(ctx context.Context) ([]AccessRule, error)
}

// chunkRecords splits records into slices of at most size elements.
func chunkRecords(records []Record, size int) [][]Record {
	if size <= 0 {
		size = UpsertBatchCeiling
	}
	var chunks [][]Record
	for len(records) > 0 {
		n := size
		if len(records) < n {
			n = len(records)
		}
		chunks = append(chunks, records[:n])
		records = records[n:]
	}
	return chunks
}

// clampLimit applies the default and maximum query limits.
func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultQueryLimit
	}
	if limit > MaxQueryLimit {
		return MaxQueryLimit
	}
	return limit
}

// inRange reports whether t falls within the inclusive [from, to] range.
// Zero bounds are open.
func inRange(t, from, to time.Time) bool {
	if !from.IsZero() && t.Before(from) {
		return false
	}
	if !to.IsZero() && t.After(to) {
		return false
	}
	return true
}
