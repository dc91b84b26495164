// Package sweeper enforces the ledger retention window and expires
// standing access rules for departed users. Both passes are stateless and
// idempotent; the operational expectation is a periodic external trigger,
// not an in-process timer.
package sweeper

import (
	"context"
	"log/slog"
	"time"

	"github.com/meetbridge/meetbridge/internal/ledger"
	"github.com/meetbridge/meetbridge/internal/logging"
	"github.com/meetbridge/meetbridge/internal/zoom"
)

// DefaultRetention is how long participation records are kept.
const DefaultRetention = 365 * 24 * time.Hour

// UserLister enumerates current account members, used to expire rules for
// people who left.
type UserLister interface {
	ListActiveUsers(ctx context.Context) ([]zoom.User, error)
}

// Sweeper deletes ledger records older than the retention window.
type Sweeper struct {
	store     ledger.Store
	users     UserLister
	retention time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

// New creates a sweeper. A non-positive retention falls back to the
// default; users may be nil to skip rule revalidation.
func New(store ledger.Store, users UserLister, retention time.Duration, logger *slog.Logger) *Sweeper {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Sweeper{
		store:     store,
		users:     users,
		retention: retention,
		logger:    logging.WithComponent(logger, "sweeper"),
		now:       time.Now,
	}
}

// Sweep deletes everything that started before the cutoff and reports how
// much went. Safe to run repeatedly; a second pass deletes nothing.
func (s *Sweeper) Sweep(ctx context.Context) (int, time.Time, error) {
	cutoff := s.now().UTC().Add(-s.retention)

	deleted, err := s.store.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, cutoff, err
	}

	s.logger.InfoContext(ctx, "retention sweep finished",
		logging.Operation("sweep"),
		slog.Int("deleted", deleted),
		slog.Time("cutoff", cutoff))
	return deleted, cutoff, nil
}

// RevalidateRules deletes standing access rules whose grantee is no longer
// an active account member. Returns how many rules were removed.
func (s *Sweeper) RevalidateRules(ctx context.Context) (int, error) {
	if s.users == nil {
		return 0, nil
	}

	users, err := s.users.ListActiveUsers(ctx)
	if err != nil {
		return 0, err
	}
	active := make(map[string]bool, len(users))
	for _, u := range users {
		active[ledger.NormalizeEmail(u.Email)] = true
	}

	rules, err := s.store.ListRules(ctx)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, rule := range rules {
		email := ledger.NormalizeEmail(rule.ParticipantEmail)
		if active[email] {
			continue
		}
		if err := s.store.DeleteRule(ctx, rule.MeetingID, email); err != nil {
			return removed, err
		}
		removed++
		s.logger.InfoContext(ctx, "expired rule for departed user",
			logging.Meeting(rule.MeetingID), logging.UserHash(email))
	}
	return removed, nil
}
