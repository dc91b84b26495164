package backfill

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/meetbridge/meetbridge/internal/errs"
	"github.com/meetbridge/meetbridge/internal/ledger"
	"github.com/meetbridge/meetbridge/internal/logging"
	"github.com/meetbridge/meetbridge/internal/zoom"
)

const (
	// reportWindowDays is the widest range the platform's reporting API
	// accepts per request; longer spans are chunked.
	reportWindowDays = 29

	// defaultThrottleDelay applies when a rate-limit response carries no
	// mandated delay.
	defaultThrottleDelay = 30 * time.Second
)

// AdminAPI is the slice of the admin client the importer walks.
type AdminAPI interface {
	ListActiveUsers(ctx context.Context) ([]zoom.User, error)
	UserPastMeetings(ctx context.Context, userID string, from, to time.Time) ([]zoom.ReportedMeeting, error)
	PastMeetingParticipants(ctx context.Context, occurrenceID string) ([]zoom.Participant, error)
}

// Options selects the import range and mode.
type Options struct {
	From   time.Time
	To     time.Time
	DryRun bool
}

// Summary reports what one import run did.
type Summary struct {
	Users       int
	Occurrences int
	Records     int
	DryRun      bool
}

// Importer walks historical hosted meetings into the ledger. Keys are
// idempotent, so re-running the same range is safe and resumes lost work.
type Importer struct {
	api    AdminAPI
	store  ledger.Store
	logger *slog.Logger

	// sleep is swapped out in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewImporter creates the historical importer.
func NewImporter(api AdminAPI, store ledger.Store, logger *slog.Logger) *Importer {
	return &Importer{
		api:    api,
		store:  store,
		logger: logging.WithComponent(logger, "backfill"),
		sleep:  sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// throttled runs fn, and on a rate-limit response waits the mandated delay
// and retries the same call. Requests are never dropped; a throttled
// retry that silently skipped work would lose data without a trace.
func (i *Importer) throttled(ctx context.Context, fn func() error) error {
	for {
		err := fn()
		var rl errs.RateLimit
		if err == nil || !errors.As(err, &rl) {
			return err
		}
		delay := rl.RetryAfter
		if delay <= 0 {
			delay = defaultThrottleDelay
		}
		i.logger.WarnContext(ctx, "rate limited, waiting", slog.Duration("delay", delay))
		if serr := i.sleep(ctx, delay); serr != nil {
			return serr
		}
	}
}

// Run imports every active user's hosted occurrences in [From, To].
func (i *Importer) Run(ctx context.Context, opts Options) (*Summary, error) {
	if opts.To.IsZero() {
		opts.To = time.Now().UTC()
	}
	if opts.From.IsZero() || !opts.From.Before(opts.To) {
		return nil, errs.NewValidation("backfill range requires from before to")
	}

	var users []zoom.User
	err := i.throttled(ctx, func() error {
		var uerr error
		users, uerr = i.api.ListActiveUsers(ctx)
		return uerr
	})
	if err != nil {
		return nil, err
	}

	summary := &Summary{Users: len(users), DryRun: opts.DryRun}
	seen := map[string]bool{}

	for _, user := range users {
		if err := i.importUser(ctx, user, opts, seen, summary); err != nil {
			return summary, err
		}
	}

	i.logger.InfoContext(ctx, "backfill complete",
		slog.Int("users", summary.Users),
		slog.Int("occurrences", summary.Occurrences),
		slog.Int("records", summary.Records),
		slog.Bool("dry_run", summary.DryRun))
	return summary, nil
}

func (i *Importer) importUser(ctx context.Context, user zoom.User, opts Options, seen map[string]bool, summary *Summary) error {
	for _, window := range windows(opts.From, opts.To) {
		var meetings []zoom.ReportedMeeting
		err := i.throttled(ctx, func() error {
			var merr error
			meetings, merr = i.api.UserPastMeetings(ctx, user.ID, window.from, window.to)
			return merr
		})
		if err != nil {
			var nf errs.NotFound
			if errors.As(err, &nf) {
				// user has no report data in this window
				continue
			}
			return err
		}

		for _, meeting := range meetings {
			if meeting.OccurrenceID == "" || seen[meeting.OccurrenceID] {
				continue
			}
			seen[meeting.OccurrenceID] = true
			if err := i.importOccurrence(ctx, meeting, opts.DryRun, summary); err != nil {
				return err
			}
		}
	}
	return nil
}

func (i *Importer) importOccurrence(ctx context.Context, meeting zoom.ReportedMeeting, dryRun bool, summary *Summary) error {
	var participants []zoom.Participant
	err := i.throttled(ctx, func() error {
		var perr error
		participants, perr = i.api.PastMeetingParticipants(ctx, meeting.OccurrenceID)
		return perr
	})
	if err != nil {
		var nf errs.NotFound
		if !errors.As(err, &nf) {
			return err
		}
		// occurrence expired upstream; still index the host below
	}

	attendees := map[string]string{}
	add := func(email, name string) {
		email = ledger.NormalizeEmail(email)
		if email == "" {
			return
		}
		if attendees[email] == "" {
			attendees[email] = name
		}
	}
	add(meeting.HostEmail, "")
	for _, p := range participants {
		add(p.UserEmail, p.Name)
	}
	if len(attendees) == 0 {
		return nil
	}

	now := time.Now().UTC()
	records := make([]ledger.Record, 0, len(attendees))
	for email, name := range attendees {
		records = append(records, ledger.Record{
			OccurrenceID:     meeting.OccurrenceID,
			MeetingID:        formatMeetingID(meeting.MeetingID),
			Topic:            meeting.Topic,
			HostEmail:        ledger.NormalizeEmail(meeting.HostEmail),
			ParticipantEmail: email,
			ParticipantName:  name,
			StartTime:        meeting.StartTime,
			EndTime:          meeting.EndTime,
			DurationMinutes:  meeting.Duration,
			IndexedAt:        now,
			Provenance:       ledger.ProvenanceBackfill,
		})
	}

	summary.Occurrences++
	summary.Records += len(records)
	if dryRun {
		return nil
	}
	return i.store.UpsertBatch(ctx, records)
}

func formatMeetingID(id int64) string {
	if id == 0 {
		return ""
	}
	return strconv.FormatInt(id, 10)
}

type window struct {
	from, to time.Time
}

// windows chunks [from, to] into spans the reporting API accepts.
func windows(from, to time.Time) []window {
	span := time.Duration(reportWindowDays) * 24 * time.Hour
	var out []window
	for cursor := from; cursor.Before(to); cursor = cursor.Add(span) {
		end := cursor.Add(span)
		if end.After(to) {
			end = to
		}
		out = append(out, window{from: cursor, to: end})
	}
	return out
}
