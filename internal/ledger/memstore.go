package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/meetbridge/meetbridge/internal/errs"
)

// MemStore is an in-memory Store used by tests and the `--store memory`
// development mode. It mirrors the durable store's key semantics exactly.
type MemStore struct {
	mu      sync.RWMutex
	records map[string]Record
	rules   map[string]AccessRule
}

// NewMemStore creates an empty in-memory ledger.
func NewMemStore() *MemStore {
	return &MemStore{
		records: make(map[string]Record),
		rules:   make(map[string]AccessRule),
	}
}

// UpsertBatch writes records idempotently. Chunking is preserved so the
// batch semantics match the durable store.
func (m *MemStore) UpsertBatch(ctx context.Context, records []Record) error {
	for _, chunk := range chunkRecords(records, UpsertBatchCeiling) {
		m.mu.Lock()
		for _, r := range chunk {
			r.ParticipantEmail = NormalizeEmail(r.ParticipantEmail)
			m.records[RecordKey(r.OccurrenceID, r.ParticipantEmail)] = r
		}
		m.mu.Unlock()
	}
	return ctx.Err()
}

// Exists is a point lookup by the deterministic key.
func (m *MemStore) Exists(ctx context.Context, occurrenceID, email string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.records[RecordKey(occurrenceID, email)]
	return ok, nil
}

// Get returns the record for the pair or a NotFound error.
func (m *MemStore) Get(ctx context.Context, occurrenceID, email string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.records[RecordKey(occurrenceID, email)]
	if !ok {
		return nil, errs.NewNotFound("participation record not found")
	}
	return &r, nil
}

// QueryByParticipant returns the participant's occurrences in the range,
// newest first.
func (m *MemStore) QueryByParticipant(ctx context.Context, email string, from, to time.Time, limit int) ([]Record, error) {
	email = NormalizeEmail(email)
	m.mu.RLock()
	var out []Record
	for _, r := range m.records {
		if r.ParticipantEmail == email && inRange(r.StartTime, from, to) {
			out = append(out, r)
		}
	}
	m.mu.RUnlock()
	return finalizeQuery(out, limit), nil
}

// QueryAll returns all occurrences in the range, newest first, one entry per
// occurrence.
func (m *MemStore) QueryAll(ctx context.Context, from, to time.Time, limit int) ([]Record, error) {
	m.mu.RLock()
	var out []Record
	for _, r := range m.records {
		if inRange(r.StartTime, from, to) {
			out = append(out, r)
		}
	}
	m.mu.RUnlock()
	return finalizeQuery(out, limit), nil
}

// DeleteOlderThan removes records with start time before cutoff.
func (m *MemStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	deleted := 0
	for k, r := range m.records {
		if r.StartTime.Before(cutoff) {
			delete(m.records, k)
			deleted++
		}
	}
	return deleted, nil
}

// Revoke deletes a record if its provenance allows revocation.
func (m *MemStore) Revoke(ctx context.Context, occurrenceID, email string) error {
	key := RecordKey(occurrenceID, email)
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[key]
	if !ok {
		return errs.NewNotFound("participation record not found")
	}
	if !r.Provenance.Revocable() {
		return errs.NewValidation("record provenance " + string(r.Provenance) + " is not revocable")
	}
	delete(m.records, key)
	return nil
}

// PutRule stores a standing access rule.
func (m *MemStore) PutRule(ctx context.Context, rule AccessRule) error {
	rule.ParticipantEmail = NormalizeEmail(rule.ParticipantEmail)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules[RuleKey(rule.MeetingID, rule.ParticipantEmail)] = rule
	return nil
}

// DeleteRule removes a standing access rule.
func (m *MemStore) DeleteRule(ctx context.Context, meetingID, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rules, RuleKey(meetingID, email))
	return nil
}

// RulesForMeeting returns the standing rules for a meeting.
func (m *MemStore) RulesForMeeting(ctx context.Context, meetingID string) ([]AccessRule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []AccessRule
	for _, rule := range m.rules {
		if sanitizeID(rule.MeetingID) == sanitizeID(meetingID) {
			out = append(out, rule)
		}
	}
	return out, nil
}

// ListRules returns all standing rules.
func (m *MemStore) ListRules(ctx context.Context) ([]AccessRule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]AccessRule, 0, len(m.rules))
	for _, rule := range m.rules {
		out = append(out, rule)
	}
	return out, nil
}

// finalizeQuery dedupes by occurrence, sorts newest first and applies the
// limit. Shared by both store implementations.
func finalizeQuery(records []Record, limit int) []Record {
	seen := make(map[string]struct{}, len(records))
	out := records[:0]
	for _, r := range records {
		key := sanitizeID(r.OccurrenceID)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].StartTime.After(out[j].StartTime)
		}
		return out[i].OccurrenceID < out[j].OccurrenceID
	})
	if n := clampLimit(limit); len(out) > n {
		out = out[:n]
	}
	return out
}
