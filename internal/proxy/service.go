package proxy

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/meetbridge/meetbridge/internal/errs"
	"github.com/meetbridge/meetbridge/internal/ledger"
	"github.com/meetbridge/meetbridge/internal/logging"
	"github.com/meetbridge/meetbridge/internal/zoom"
)

const (
	// defaultListWindow is the trailing range applied when the caller gives
	// no dates.
	defaultListWindow = 30 * 24 * time.Hour

	dateLayout = "2006-01-02"
)

// IdentityVerifier resolves a caller's bearer token to an identity. Called
// on every request; implementations must not cache across requests.
type IdentityVerifier interface {
	Me(ctx context.Context, bearerToken string) (*zoom.Identity, error)
}

// ContentFetcher is the slice of the admin client the proxy needs to serve
// summaries and transcripts.
type ContentFetcher interface {
	PastMeetingDetails(ctx context.Context, occurrenceID string) (*zoom.PastMeeting, error)
	MeetingSummary(ctx context.Context, occurrenceID string) (*zoom.MeetingSummary, error)
	RecordingFiles(ctx context.Context, occurrenceID string) (*zoom.RecordingSet, error)
	DownloadFile(ctx context.Context, downloadURL string) ([]byte, error)
}

// Service implements the access-controlled meeting-content operations. All
// entitlement decisions flow through exactly two sources: the per-request
// identity lookup and the participation ledger.
type Service struct {
	store    ledger.Store
	verifier IdentityVerifier
	fetcher  ContentFetcher
	logger   *slog.Logger
	now      func() time.Time
}

// NewService creates the proxy service.
func NewService(store ledger.Store, verifier IdentityVerifier, fetcher ContentFetcher, logger *slog.Logger) *Service {
	return &Service{
		store:    store,
		verifier: verifier,
		fetcher:  fetcher,
		logger:   logging.WithComponent(logger, "proxy"),
		now:      time.Now,
	}
}

// ListRequest selects which meetings to list. UserEmail and AllMeetings
// require admin privilege.
type ListRequest struct {
	FromDate    string
	ToDate      string
	Limit       int
	UserEmail   string
	AllMeetings bool
}

// MeetingEntry is one row of a meeting listing.
type MeetingEntry struct {
	OccurrenceID    string `json:"occurrence_id"`
	MeetingID       string `json:"meeting_id"`
	Topic           string `json:"topic"`
	Date            string `json:"date"`
	DurationMinutes int    `json:"duration_minutes"`
	HostEmail       string `json:"host_email"`
	HasSummary      bool   `json:"has_summary"`
	HasRecording    bool   `json:"has_recording"`
}

// authenticate resolves the caller. Every operation starts here; privilege
// is re-derived per request and never carried over.
func (s *Service) authenticate(ctx context.Context, bearerToken string) (*zoom.Identity, error) {
	identity, err := s.verifier.Me(ctx, bearerToken)
	if err != nil {
		return nil, err
	}
	return identity, nil
}

// ListMeetings returns the deduplicated occurrence list visible to the
// caller. Non-admins are always scoped to their own participation.
func (s *Service) ListMeetings(ctx context.Context, bearerToken string, req ListRequest) ([]MeetingEntry, error) {
	identity, err := s.authenticate(ctx, bearerToken)
	if err != nil {
		return nil, err
	}

	from, to, err := s.resolveRange(req.FromDate, req.ToDate)
	if err != nil {
		return nil, err
	}

	scopeEmail := identity.Email
	if req.UserEmail != "" && ledger.NormalizeEmail(req.UserEmail) != identity.Email {
		if !identity.IsAdmin {
			return nil, errs.NewAuthorization("listing another user's meetings requires admin privilege")
		}
		scopeEmail = ledger.NormalizeEmail(req.UserEmail)
	}

	var records []ledger.Record
	if req.AllMeetings {
		if !identity.IsAdmin {
			return nil, errs.NewAuthorization("listing all meetings requires admin privilege")
		}
		records, err = s.store.QueryAll(ctx, from, to, req.Limit)
	} else {
		records, err = s.store.QueryByParticipant(ctx, scopeEmail, from, to, req.Limit)
	}
	if err != nil {
		return nil, err
	}

	entries := make([]MeetingEntry, 0, len(records))
	for _, rec := range records {
		entries = append(entries, MeetingEntry{
			OccurrenceID:    rec.OccurrenceID,
			MeetingID:       rec.MeetingID,
			Topic:           rec.Topic,
			Date:            rec.StartTime.Format(dateLayout),
			DurationMinutes: rec.DurationMinutes,
			HostEmail:       rec.HostEmail,
			HasSummary:      rec.HasSummary,
			HasRecording:    rec.HasRecording,
		})
	}

	s.logger.InfoContext(ctx, "meetings listed",
		logging.Operation("list_meetings"),
		logging.UserHash(identity.Email),
		slog.Int("count", len(entries)))
	return entries, nil
}

// resolveRange parses the inclusive date range, defaulting to the trailing
// thirty days. The to-bound is stretched to end of day so same-day meetings
// are included.
func (s *Service) resolveRange(fromDate, toDate string) (time.Time, time.Time, error) {
	now := s.now().UTC()
	from := now.Add(-defaultListWindow)
	to := now

	if fromDate != "" {
		parsed, err := time.Parse(dateLayout, fromDate)
		if err != nil {
			return time.Time{}, time.Time{}, errs.NewValidation("from_date must be YYYY-MM-DD", err)
		}
		from = parsed
	}
	if toDate != "" {
		parsed, err := time.Parse(dateLayout, toDate)
		if err != nil {
			return time.Time{}, time.Time{}, errs.NewValidation("to_date must be YYYY-MM-DD", err)
		}
		to = parsed.Add(24*time.Hour - time.Second)
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, errs.NewValidation("to_date precedes from_date")
	}
	return from, to, nil
}

// authorizeContent gates summary and transcript access: admins pass, anyone
// else must appear in the occurrence's participation records. Denial is an
// authorization error, never a not-found, so unentitled callers learn
// nothing about whether the occurrence exists.
func (s *Service) authorizeContent(ctx context.Context, identity *zoom.Identity, occurrenceID string) error {
	if identity.IsAdmin {
		return nil
	}
	ok, err := s.store.Exists(ctx, occurrenceID, identity.Email)
	if err != nil {
		return err
	}
	if !ok {
		s.logger.InfoContext(ctx, "content access denied",
			logging.Occurrence(occurrenceID),
			logging.UserHash(identity.Email),
			logging.Status(logging.StatusDenied))
		return errs.NewAuthorization("not a participant of this meeting")
	}
	return nil
}

// GetSummary returns the platform's AI summary for an occurrence the caller
// is entitled to.
func (s *Service) GetSummary(ctx context.Context, bearerToken, occurrenceID string) (*zoom.MeetingSummary, error) {
	if occurrenceID == "" {
		return nil, errs.NewValidation("occurrence_id is required")
	}
	identity, err := s.authenticate(ctx, bearerToken)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeContent(ctx, identity, occurrenceID); err != nil {
		return nil, err
	}
	return s.fetcher.MeetingSummary(ctx, occurrenceID)
}

// Transcript is the resolved transcript text plus its source marker, so
// callers can tell verbatim captions from summary-derived prose.
type Transcript struct {
	Text   string `json:"transcript"`
	Source string `json:"source"`
}

// Transcript sources.
const (
	SourceRecording = "recording"
	SourceAISummary = "ai_summary"
)

// GetTranscript resolves a transcript for an entitled caller: the recording
// caption file when one exists, else the AI summary reshaped into prose.
func (s *Service) GetTranscript(ctx context.Context, bearerToken, occurrenceID string) (*Transcript, error) {
	if occurrenceID == "" {
		return nil, errs.NewValidation("occurrence_id is required")
	}
	identity, err := s.authenticate(ctx, bearerToken)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeContent(ctx, identity, occurrenceID); err != nil {
		return nil, err
	}

	text, err := s.transcriptFromRecording(ctx, occurrenceID)
	if err == nil {
		return &Transcript{Text: text, Source: SourceRecording}, nil
	}
	var nf errs.NotFound
	if !errors.As(err, &nf) {
		return nil, err
	}

	summary, err := s.fetcher.MeetingSummary(ctx, occurrenceID)
	if err != nil {
		return nil, err
	}
	return &Transcript{Text: summaryAsProse(summary), Source: SourceAISummary}, nil
}

// transcriptFromRecording downloads and parses the caption file of an
// occurrence's cloud recording. A NotFound error means "fall through to the
// summary", anything else is surfaced.
func (s *Service) transcriptFromRecording(ctx context.Context, occurrenceID string) (string, error) {
	set, err := s.fetcher.RecordingFiles(ctx, occurrenceID)
	if err != nil {
		return "", err
	}

	var captionURL string
	for _, f := range set.RecordingFiles {
		if f.FileType == zoom.FileTypeTranscript && f.DownloadURL != "" {
			captionURL = f.DownloadURL
			break
		}
	}
	if captionURL == "" {
		return "", errs.NewNotFound("recording has no caption file")
	}

	raw, err := s.fetcher.DownloadFile(ctx, captionURL)
	if err != nil {
		return "", err
	}
	text := parseVTT(string(raw))
	if text == "" {
		return "", errs.NewNotFound("caption file carried no usable text")
	}
	return text, nil
}

// GrantRequest creates or revokes an access grant. Exactly one of
// OccurrenceID (one-off record) or MeetingID (standing rule) is set.
type GrantRequest struct {
	OccurrenceID     string
	MeetingID        string
	ParticipantEmail string
}

func (g GrantRequest) validate() error {
	if g.ParticipantEmail == "" {
		return errs.NewValidation("participant_email is required")
	}
	if (g.OccurrenceID == "") == (g.MeetingID == "") {
		return errs.NewValidation("exactly one of occurrence_id or meeting_id is required")
	}
	return nil
}

// CreateGrant issues a manual-grant record for one occurrence or a standing
// access rule for a meeting id. Admin only.
func (s *Service) CreateGrant(ctx context.Context, bearerToken string, req GrantRequest) error {
	identity, err := s.authenticate(ctx, bearerToken)
	if err != nil {
		return err
	}
	if !identity.IsAdmin {
		return errs.NewAuthorization("grant management requires admin privilege")
	}
	if err := req.validate(); err != nil {
		return err
	}

	email := ledger.NormalizeEmail(req.ParticipantEmail)
	now := s.now().UTC()

	if req.MeetingID != "" {
		rule := ledger.AccessRule{
			ID:               uuid.NewString(),
			MeetingID:        req.MeetingID,
			ParticipantEmail: email,
			GrantedBy:        identity.Email,
			CreatedAt:        now,
		}
		if err := s.store.PutRule(ctx, rule); err != nil {
			return err
		}
		s.logger.InfoContext(ctx, "standing access rule created",
			logging.Meeting(req.MeetingID), logging.UserHash(email))
		return nil
	}

	rec := ledger.Record{
		OccurrenceID:     req.OccurrenceID,
		ParticipantEmail: email,
		StartTime:        now,
		IndexedAt:        now,
		Provenance:       ledger.ProvenanceManualGrant,
	}
	// Borrow real metadata when the occurrence is known upstream so the
	// grant lists like any other record.
	if details, derr := s.fetcher.PastMeetingDetails(ctx, req.OccurrenceID); derr == nil {
		rec.MeetingID = formatMeetingID(details.ID)
		rec.Topic = details.Topic
		rec.HostEmail = ledger.NormalizeEmail(details.HostEmail)
		rec.StartTime = details.StartTime
		rec.EndTime = details.EndTime
		rec.DurationMinutes = details.Duration
	}
	if err := s.store.UpsertBatch(ctx, []ledger.Record{rec}); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "manual grant created",
		logging.Occurrence(req.OccurrenceID), logging.UserHash(email))
	return nil
}

// RevokeGrant removes a manual grant or standing rule. Records written by
// the ingestor or the backfill importer are ground truth and stay.
func (s *Service) RevokeGrant(ctx context.Context, bearerToken string, req GrantRequest) error {
	identity, err := s.authenticate(ctx, bearerToken)
	if err != nil {
		return err
	}
	if !identity.IsAdmin {
		return errs.NewAuthorization("grant management requires admin privilege")
	}
	if err := req.validate(); err != nil {
		return err
	}

	email := ledger.NormalizeEmail(req.ParticipantEmail)
	if req.MeetingID != "" {
		return s.store.DeleteRule(ctx, req.MeetingID, email)
	}
	return s.store.Revoke(ctx, req.OccurrenceID, email)
}
