package webhook

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/meetbridge/meetbridge/internal/ledger"
	"github.com/meetbridge/meetbridge/internal/logging"
	"github.com/meetbridge/meetbridge/internal/zoom"
)

// maxBodyBytes caps inbound webhook bodies.
const maxBodyBytes = 1 << 20

// MeetingFetcher is the slice of the admin client the ingestor needs to
// enrich webhook payloads.
type MeetingFetcher interface {
	PastMeetingDetails(ctx context.Context, occurrenceID string) (*zoom.PastMeeting, error)
	PastMeetingParticipants(ctx context.Context, occurrenceID string) ([]zoom.Participant, error)
	MeetingSummary(ctx context.Context, occurrenceID string) (*zoom.MeetingSummary, error)
	RecordingFiles(ctx context.Context, occurrenceID string) (*zoom.RecordingSet, error)
}

// Handler ingests signed platform webhooks into the participation ledger.
type Handler struct {
	validator *Validator
	store     ledger.Store
	fetcher   MeetingFetcher
	logger    *slog.Logger
}

// NewHandler creates the webhook ingestor.
func NewHandler(validator *Validator, store ledger.Store, fetcher MeetingFetcher, logger *slog.Logger) *Handler {
	return &Handler{
		validator: validator,
		store:     store,
		fetcher:   fetcher,
		logger:    logging.WithComponent(logger, "webhook"),
	}
}

// ServeHTTP validates the signature first and only then looks at the body.
// Unknown events are acknowledged so the sender stops retrying them.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	if err := h.validator.Validate(body, r.Header.Get(HeaderSignature), r.Header.Get(HeaderTimestamp)); err != nil {
		h.logger.WarnContext(ctx, "webhook signature rejected", logging.Err(err))
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	var event Event
	if err := json.Unmarshal(body, &event); err != nil {
		http.Error(w, "malformed event body", http.StatusBadRequest)
		return
	}

	switch event.Event {
	case EventURLValidation:
		h.writeJSON(w, http.StatusOK, h.validator.Challenge(event.Payload.PlainToken))

	case EventMeetingEnded:
		if event.Payload.Object.UUID == "" {
			http.Error(w, "event carries no occurrence id", http.StatusBadRequest)
			return
		}
		if err := h.processMeetingEnded(ctx, event.Payload.Object); err != nil {
			h.logger.ErrorContext(ctx, "failed to ingest meeting end",
				logging.Occurrence(event.Payload.Object.UUID), logging.Err(err))
			http.Error(w, "processing failed", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)

	default:
		h.logger.DebugContext(ctx, "ignoring event", logging.Event(event.Event))
		w.WriteHeader(http.StatusOK)
	}
}

// processMeetingEnded turns one ended occurrence into ledger records: the
// deduplicated attendee set (host always seeded) plus preregistration
// records materialized from standing access rules, written in one batch.
func (h *Handler) processMeetingEnded(ctx context.Context, obj MeetingObject) error {
	meta := h.enrich(ctx, obj)

	participants := map[string]string{}
	addParticipant := func(email, name string) {
		email = ledger.NormalizeEmail(email)
		if email == "" {
			return
		}
		if existing := participants[email]; existing == "" {
			participants[email] = name
		}
	}

	// Seed the host from the enriched record: the payload may omit
	// host_email while the admin details carry it.
	addParticipant(meta.HostEmail, "")
	for _, p := range obj.Participants {
		addParticipant(p.Email, p.UserName)
	}

	// The payload list is often incomplete. Union in the authoritative list;
	// if the admin call fails the payload set still gets written.
	authoritative, err := h.fetcher.PastMeetingParticipants(ctx, obj.UUID)
	if err != nil {
		h.logger.WarnContext(ctx, "participant enrichment unavailable",
			logging.Occurrence(obj.UUID), logging.Err(err))
	}
	for _, p := range authoritative {
		addParticipant(p.UserEmail, p.Name)
	}

	now := time.Now().UTC()
	records := make([]ledger.Record, 0, len(participants))
	for email, name := range participants {
		rec := meta
		rec.ParticipantEmail = email
		rec.ParticipantName = name
		rec.IndexedAt = now
		rec.Provenance = ledger.ProvenanceWebhook
		records = append(records, rec)
	}

	rules, err := h.store.RulesForMeeting(ctx, meta.MeetingID)
	if err != nil {
		h.logger.WarnContext(ctx, "access rule lookup failed",
			logging.Meeting(meta.MeetingID), logging.Err(err))
	}
	for _, rule := range rules {
		email := ledger.NormalizeEmail(rule.ParticipantEmail)
		if _, attended := participants[email]; attended {
			continue
		}
		rec := meta
		rec.ParticipantEmail = email
		rec.IndexedAt = now
		rec.Provenance = ledger.ProvenancePreregistration
		records = append(records, rec)
	}

	if err := h.store.UpsertBatch(ctx, records); err != nil {
		return err
	}

	h.logger.InfoContext(ctx, "occurrence indexed",
		logging.Occurrence(obj.UUID),
		logging.Meeting(meta.MeetingID),
		slog.Int("participants", len(participants)),
		slog.Int("records", len(records)))
	return nil
}

// enrich builds the record template for an occurrence, preferring
// authoritative metadata over payload values and degrading to the payload
// when the admin client fails.
func (h *Handler) enrich(ctx context.Context, obj MeetingObject) ledger.Record {
	rec := ledger.Record{
		OccurrenceID:    obj.UUID,
		MeetingID:       strconv.FormatInt(obj.ID, 10),
		Topic:           obj.Topic,
		HostEmail:       ledger.NormalizeEmail(obj.HostEmail),
		StartTime:       obj.StartTime,
		EndTime:         obj.EndTime,
		DurationMinutes: obj.Duration,
	}

	if details, err := h.fetcher.PastMeetingDetails(ctx, obj.UUID); err == nil {
		if details.Topic != "" {
			rec.Topic = details.Topic
		}
		if details.HostEmail != "" {
			rec.HostEmail = ledger.NormalizeEmail(details.HostEmail)
		}
		if !details.StartTime.IsZero() {
			rec.StartTime = details.StartTime
		}
		if !details.EndTime.IsZero() {
			rec.EndTime = details.EndTime
		}
		if details.Duration > 0 {
			rec.DurationMinutes = details.Duration
		}
	} else {
		h.logger.WarnContext(ctx, "metadata enrichment unavailable",
			logging.Occurrence(obj.UUID), logging.Err(err))
	}

	if summary, err := h.fetcher.MeetingSummary(ctx, obj.UUID); err == nil && summary != nil {
		rec.HasSummary = true
	}
	if set, err := h.fetcher.RecordingFiles(ctx, obj.UUID); err == nil && set != nil {
		rec.HasRecording = len(set.RecordingFiles) > 0
	}
	return rec
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warn("failed to encode response", logging.Err(err))
	}
}
