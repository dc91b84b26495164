package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/meetbridge/meetbridge/internal/errs"
	"github.com/meetbridge/meetbridge/internal/logging"
)

// KV bucket names.
const (
	BucketRecords = "participation-records"
	BucketRules   = "participation-rules"
)

// NATSStoreConfig configures the durable ledger.
type NATSStoreConfig struct {
	URL           string
	Timeout       time.Duration
	MaxReconnect  int
	ReconnectWait time.Duration
}

// NATSStore is the durable ledger implementation on JetStream key-value
// buckets. Each record is one key; the key is derived deterministically from
// (occurrence, participant), so puts are idempotent upserts.
type NATSStore struct {
	conn    *nats.Conn
	records jetstream.KeyValue
	rules   jetstream.KeyValue
}

// NewNATSStore connects to NATS and binds (creating if needed) the ledger
// buckets.
func NewNATSStore(ctx context.Context, cfg NATSStoreConfig) (*NATSStore, error) {
	if cfg.URL == "" {
		return nil, errs.NewConfiguration("NATS URL is required")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.ReconnectWait == 0 {
		cfg.ReconnectWait = 2 * time.Second
	}

	opts := []nats.Option{
		nats.Name("meetbridge"),
		nats.Timeout(cfg.Timeout),
		nats.MaxReconnects(cfg.MaxReconnect),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			slog.Warn("NATS disconnected", logging.Err(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("NATS reconnected", "url", nc.ConnectedUrl())
		}),
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, errs.NewUpstream("failed to connect to NATS", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, errs.NewUpstream("failed to create JetStream context", err)
	}

	records, err := createOrBindBucket(ctx, js, BucketRecords)
	if err != nil {
		conn.Close()
		return nil, err
	}
	rules, err := createOrBindBucket(ctx, js, BucketRules)
	if err != nil {
		conn.Close()
		return nil, err
	}

	return &NATSStore{conn: conn, records: records, rules: rules}, nil
}

func createOrBindBucket(ctx context.Context, js jetstream.JetStream, bucket string) (jetstream.KeyValue, error) {
	kv, err := js.KeyValue(ctx, bucket)
	if err == nil {
		return kv, nil
	}
	if !errors.Is(err, jetstream.ErrBucketNotFound) {
		return nil, errs.NewUpstream("failed to bind KV bucket "+bucket, err)
	}
	kv, err = js.CreateKeyValue(ctx, jetstream.KeyValueConfig{Bucket: bucket})
	if err != nil {
		return nil, errs.NewUpstream("failed to create KV bucket "+bucket, err)
	}
	return kv, nil
}

// Close drains the NATS connection.
func (s *NATSStore) Close() error {
	if s.conn != nil {
		s.conn.Close()
	}
	return nil
}

// IsReady reports whether the NATS connection is usable, for readiness
// probes.
func (s *NATSStore) IsReady(ctx context.Context) error {
	if s.conn == nil || !s.conn.IsConnected() || s.conn.IsDraining() {
		return errs.NewUpstream("ledger store connection is not ready")
	}
	return nil
}

// UpsertBatch writes records in chunks of at most UpsertBatchCeiling. Each
// put is an idempotent upsert; chunks commit independently, so a failure
// mid-write is safe to retry wholesale.
func (s *NATSStore) UpsertBatch(ctx context.Context, records []Record) error {
	for _, chunk := range chunkRecords(records, UpsertBatchCeiling) {
		for _, r := range chunk {
			r.ParticipantEmail = NormalizeEmail(r.ParticipantEmail)
			data, err := json.Marshal(r)
			if err != nil {
				return errs.NewValidation("failed to marshal participation record", err)
			}
			if _, err := s.records.Put(ctx, RecordKey(r.OccurrenceID, r.ParticipantEmail), data); err != nil {
				return errs.NewUpstream("ledger write failed", err)
			}
		}
		slog.DebugContext(ctx, "ledger chunk committed", "size", len(chunk))
	}
	return nil
}

// Exists is a point Get by the deterministic key.
func (s *NATSStore) Exists(ctx context.Context, occurrenceID, email string) (bool, error) {
	_, err := s.records.Get(ctx, RecordKey(occurrenceID, email))
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return false, nil
		}
		return false, errs.NewUpstream("ledger lookup failed", err)
	}
	return true, nil
}

// Get returns the record for the pair or a NotFound error.
func (s *NATSStore) Get(ctx context.Context, occurrenceID, email string) (*Record, error) {
	entry, err := s.records.Get(ctx, RecordKey(occurrenceID, email))
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, errs.NewNotFound("participation record not found")
		}
		return nil, errs.NewUpstream("ledger lookup failed", err)
	}
	var r Record
	if err := json.Unmarshal(entry.Value(), &r); err != nil {
		return nil, errs.NewUpstream("failed to unmarshal participation record", err)
	}
	return &r, nil
}

// QueryByParticipant lists the participant's keys by prefix and filters by
// date range.
func (s *NATSStore) QueryByParticipant(ctx context.Context, email string, from, to time.Time, limit int) ([]Record, error) {
	records, err := s.collectRecords(ctx, recordKeyParticipantPattern(email), from, to)
	if err != nil {
		return nil, err
	}
	return finalizeQuery(records, limit), nil
}

// QueryAll scans all record keys and filters by date range.
func (s *NATSStore) QueryAll(ctx context.Context, from, to time.Time, limit int) ([]Record, error) {
	records, err := s.collectRecords(ctx, recordKeyAllPattern, from, to)
	if err != nil {
		return nil, err
	}
	return finalizeQuery(records, limit), nil
}

func (s *NATSStore) collectRecords(ctx context.Context, pattern string, from, to time.Time) ([]Record, error) {
	lister, err := s.records.ListKeysFiltered(ctx, pattern)
	if err != nil {
		return nil, errs.NewUpstream("ledger key listing failed", err)
	}
	defer func() { _ = lister.Stop() }()

	var out []Record
	for key := range lister.Keys() {
		entry, err := s.records.Get(ctx, key)
		if err != nil {
			if errors.Is(err, jetstream.ErrKeyNotFound) {
				continue // deleted between list and get
			}
			return nil, errs.NewUpstream("ledger lookup failed", err)
		}
		var r Record
		if err := json.Unmarshal(entry.Value(), &r); err != nil {
			slog.WarnContext(ctx, "skipping undecodable ledger entry", "key", key, logging.Err(err))
			continue
		}
		if inRange(r.StartTime, from, to) {
			out = append(out, r)
		}
	}
	return out, nil
}

// DeleteOlderThan deletes expired records in batches of DeleteBatchSize,
// looping until a pass finds nothing left.
func (s *NATSStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	total := 0
	for {
		keys, err := s.expiredKeys(ctx, cutoff, DeleteBatchSize)
		if err != nil {
			return total, err
		}
		if len(keys) == 0 {
			return total, nil
		}
		for _, key := range keys {
			if err := s.records.Delete(ctx, key); err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
				return total, errs.NewUpstream("ledger delete failed", err)
			}
			total++
		}
		slog.DebugContext(ctx, "retention batch deleted", "batch", len(keys), "total", total)
	}
}

func (s *NATSStore) expiredKeys(ctx context.Context, cutoff time.Time, max int) ([]string, error) {
	lister, err := s.records.ListKeysFiltered(ctx, recordKeyAllPattern)
	if err != nil {
		return nil, errs.NewUpstream("ledger key listing failed", err)
	}
	defer func() { _ = lister.Stop() }()

	var keys []string
	for key := range lister.Keys() {
		entry, err := s.records.Get(ctx, key)
		if err != nil {
			if errors.Is(err, jetstream.ErrKeyNotFound) {
				continue
			}
			return nil, errs.NewUpstream("ledger lookup failed", err)
		}
		var r Record
		if err := json.Unmarshal(entry.Value(), &r); err != nil {
			continue
		}
		if r.StartTime.Before(cutoff) {
			keys = append(keys, key)
			if len(keys) >= max {
				break
			}
		}
	}
	return keys, nil
}

// Revoke deletes a record only if its provenance allows it.
func (s *NATSStore) Revoke(ctx context.Context, occurrenceID, email string) error {
	record, err := s.Get(ctx, occurrenceID, email)
	if err != nil {
		return err
	}
	if !record.Provenance.Revocable() {
		return errs.NewValidation("record provenance " + string(record.Provenance) + " is not revocable")
	}
	if err := s.records.Delete(ctx, RecordKey(occurrenceID, email)); err != nil {
		return errs.NewUpstream("ledger delete failed", err)
	}
	return nil
}

// PutRule stores a standing access rule.
func (s *NATSStore) PutRule(ctx context.Context, rule AccessRule) error {
	rule.ParticipantEmail = NormalizeEmail(rule.ParticipantEmail)
	data, err := json.Marshal(rule)
	if err != nil {
		return errs.NewValidation("failed to marshal access rule", err)
	}
	if _, err := s.rules.Put(ctx, RuleKey(rule.MeetingID, rule.ParticipantEmail), data); err != nil {
		return errs.NewUpstream("rule write failed", err)
	}
	return nil
}

// DeleteRule removes a standing access rule; missing rules are a no-op.
func (s *NATSStore) DeleteRule(ctx context.Context, meetingID, email string) error {
	err := s.rules.Delete(ctx, RuleKey(meetingID, email))
	if err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
		return errs.NewUpstream("rule delete failed", err)
	}
	return nil
}

// RulesForMeeting returns the standing rules for one meeting id.
func (s *NATSStore) RulesForMeeting(ctx context.Context, meetingID string) ([]AccessRule, error) {
	return s.collectRules(ctx, ruleKeyMeetingPattern(meetingID))
}

// ListRules returns all standing rules.
func (s *NATSStore) ListRules(ctx context.Context) ([]AccessRule, error) {
	return s.collectRules(ctx, ruleKeyAllPattern)
}

func (s *NATSStore) collectRules(ctx context.Context, pattern string) ([]AccessRule, error) {
	lister, err := s.rules.ListKeysFiltered(ctx, pattern)
	if err != nil {
		return nil, errs.NewUpstream("rule key listing failed", err)
	}
	defer func() { _ = lister.Stop() }()

	var out []AccessRule
	for key := range lister.Keys() {
		entry, err := s.rules.Get(ctx, key)
		if err != nil {
			if errors.Is(err, jetstream.ErrKeyNotFound) {
				continue
			}
			return nil, errs.NewUpstream("rule lookup failed", err)
		}
		var rule AccessRule
		if err := json.Unmarshal(entry.Value(), &rule); err != nil {
			slog.WarnContext(ctx, "skipping undecodable access rule", "key", key, logging.Err(err))
			continue
		}
		out = append(out, rule)
	}
	return out, nil
}
