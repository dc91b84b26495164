package sweeper

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meetbridge/meetbridge/internal/ledger"
	"github.com/meetbridge/meetbridge/internal/zoom"
)

type fakeUsers struct {
	users []zoom.User
}

func (f *fakeUsers) ListActiveUsers(ctx context.Context) ([]zoom.User, error) {
	return f.users, nil
}

func record(occ, email string, start time.Time) ledger.Record {
	return ledger.Record{
		OccurrenceID:     occ,
		MeetingID:        "9001",
		ParticipantEmail: email,
		StartTime:        start,
		Provenance:       ledger.ProvenanceWebhook,
	}
}

func TestSweepDeletesOnlyExpiredRecords(t *testing.T) {
	store := ledger.NewMemStore()
	now := time.Now().UTC()
	require.NoError(t, store.UpsertBatch(context.Background(), []ledger.Record{
		record("occ-old", "alice@x.com", now.Add(-400*24*time.Hour)),
		record("occ-old", "bob@x.com", now.Add(-400*24*time.Hour)),
		record("occ-new", "alice@x.com", now.Add(-10*24*time.Hour)),
	}))

	s := New(store, nil, 0, slog.New(slog.DiscardHandler))

	deleted, cutoff, err := s.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)
	assert.WithinDuration(t, now.Add(-DefaultRetention), cutoff, time.Minute)

	ok, err := store.Exists(context.Background(), "occ-new", "alice@x.com")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.Exists(context.Background(), "occ-old", "alice@x.com")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSweepSecondRunDeletesNothing(t *testing.T) {
	store := ledger.NewMemStore()
	now := time.Now().UTC()
	require.NoError(t, store.UpsertBatch(context.Background(), []ledger.Record{
		record("occ-old", "alice@x.com", now.Add(-400*24*time.Hour)),
	}))

	s := New(store, nil, 0, slog.New(slog.DiscardHandler))

	deleted, _, err := s.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	deleted, _, err = s.Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, deleted)
}

func TestRevalidateRulesExpiresDepartedUsers(t *testing.T) {
	store := ledger.NewMemStore()
	require.NoError(t, store.PutRule(context.Background(), ledger.AccessRule{
		ID: "r1", MeetingID: "9001", ParticipantEmail: "current@x.com",
	}))
	require.NoError(t, store.PutRule(context.Background(), ledger.AccessRule{
		ID: "r2", MeetingID: "9001", ParticipantEmail: "departed@x.com",
	}))

	users := &fakeUsers{users: []zoom.User{{Email: "Current@X.com"}}}
	s := New(store, users, 0, slog.New(slog.DiscardHandler))

	removed, err := s.RevalidateRules(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	rules, err := store.RulesForMeeting(context.Background(), "9001")
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, "current@x.com", rules[0].ParticipantEmail)
}

func TestRevalidateRulesWithoutLister(t *testing.T) {
	s := New(ledger.NewMemStore(), nil, 0, slog.New(slog.DiscardHandler))
	removed, err := s.RevalidateRules(context.Background())
	require.NoError(t, err)
	assert.Zero(t, removed)
}
