package proxy

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/meetbridge/meetbridge/internal/errs"
	"github.com/meetbridge/meetbridge/internal/logging"
)

const (
	// requestTimeout bounds total per-request latency across platform and
	// storage calls.
	requestTimeout = 30 * time.Second

	maxRequestBytes = 64 << 10

	// HeaderSchedulerToken authenticates the trusted scheduler that triggers
	// retention sweeps. The retention endpoint is not bearer-authenticated.
	HeaderSchedulerToken = "x-scheduler-token"
)

// RetentionSweeper runs one retention pass over the ledger.
type RetentionSweeper interface {
	Sweep(ctx context.Context) (deleted int, cutoff time.Time, err error)
}

// Handler exposes the proxy service over HTTP.
type Handler struct {
	svc            *Service
	sweeper        RetentionSweeper
	schedulerToken string
	logger         *slog.Logger
}

// NewHandler creates the HTTP layer over the proxy service.
func NewHandler(svc *Service, sweeper RetentionSweeper, schedulerToken string, logger *slog.Logger) *Handler {
	return &Handler{
		svc:            svc,
		sweeper:        sweeper,
		schedulerToken: schedulerToken,
		logger:         logging.WithComponent(logger, "proxy-http"),
	}
}

// Register mounts the proxy routes onto mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/meetings/list", h.handleList)
	mux.HandleFunc("POST /api/meetings/summary", h.handleSummary)
	mux.HandleFunc("POST /api/meetings/transcript", h.handleTranscript)
	mux.HandleFunc("POST /api/admin/grants", h.handleCreateGrant)
	mux.HandleFunc("DELETE /api/admin/grants", h.handleRevokeGrant)
	mux.HandleFunc("POST /api/retention/sweep", h.handleSweep)
}

type listRequestBody struct {
	FromDate    string `json:"from_date,omitempty"`
	ToDate      string `json:"to_date,omitempty"`
	Limit       int    `json:"limit,omitempty"`
	UserEmail   string `json:"user_email,omitempty"`
	AllMeetings bool   `json:"all_meetings,omitempty"`
}

type listResponseBody struct {
	Meetings []MeetingEntry `json:"meetings"`
}

type occurrenceRequestBody struct {
	OccurrenceID string `json:"occurrence_id"`
}

type summaryResponseBody struct {
	Summary any `json:"summary"`
}

type grantRequestBody struct {
	OccurrenceID     string `json:"occurrence_id,omitempty"`
	MeetingID        string `json:"meeting_id,omitempty"`
	ParticipantEmail string `json:"participant_email"`
}

type sweepResponseBody struct {
	DeletedCount int    `json:"deleted_count"`
	CutoffDate   string `json:"cutoff_date"`
}

type errorResponseBody struct {
	Error string `json:"error"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	var body listRequestBody
	if !h.decode(w, r, &body) {
		return
	}
	meetings, err := h.svc.ListMeetings(ctx, bearerToken(r), ListRequest{
		FromDate:    body.FromDate,
		ToDate:      body.ToDate,
		Limit:       body.Limit,
		UserEmail:   body.UserEmail,
		AllMeetings: body.AllMeetings,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if meetings == nil {
		meetings = []MeetingEntry{}
	}
	h.writeJSON(w, http.StatusOK, listResponseBody{Meetings: meetings})
}

func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	var body occurrenceRequestBody
	if !h.decode(w, r, &body) {
		return
	}
	summary, err := h.svc.GetSummary(ctx, bearerToken(r), body.OccurrenceID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, summaryResponseBody{Summary: summary})
}

func (h *Handler) handleTranscript(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	var body occurrenceRequestBody
	if !h.decode(w, r, &body) {
		return
	}
	transcript, err := h.svc.GetTranscript(ctx, bearerToken(r), body.OccurrenceID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, transcript)
}

func (h *Handler) handleCreateGrant(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	var body grantRequestBody
	if !h.decode(w, r, &body) {
		return
	}
	err := h.svc.CreateGrant(ctx, bearerToken(r), GrantRequest{
		OccurrenceID:     body.OccurrenceID,
		MeetingID:        body.MeetingID,
		ParticipantEmail: body.ParticipantEmail,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, map[string]string{"status": "created"})
}

func (h *Handler) handleRevokeGrant(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	var body grantRequestBody
	if !h.decode(w, r, &body) {
		return
	}
	err := h.svc.RevokeGrant(ctx, bearerToken(r), GrantRequest{
		OccurrenceID:     body.OccurrenceID,
		MeetingID:        body.MeetingID,
		ParticipantEmail: body.ParticipantEmail,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "revoked"})
}

// handleSweep triggers one retention pass. Guarded by the scheduler token,
// not a bearer token: the caller is an internal cron identity, not a user.
func (h *Handler) handleSweep(w http.ResponseWriter, r *http.Request) {
	if h.schedulerToken == "" ||
		subtle.ConstantTimeCompare([]byte(r.Header.Get(HeaderSchedulerToken)), []byte(h.schedulerToken)) != 1 {
		h.writeJSON(w, http.StatusUnauthorized, errorResponseBody{Error: "unauthenticated"})
		return
	}

	deleted, cutoff, err := h.sweeper.Sweep(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, sweepResponseBody{
		DeletedCount: deleted,
		CutoffDate:   cutoff.Format(dateLayout),
	})
}

// bearerToken extracts the caller's token from the Authorization header.
func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if len(auth) > 7 && strings.EqualFold(auth[:7], "Bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes))
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorResponseBody{Error: "unreadable_body"})
		return false
	}
	if len(body) == 0 {
		return true
	}
	if err := json.Unmarshal(body, v); err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorResponseBody{Error: "malformed_json"})
		return false
	}
	return true
}

// writeError maps taxonomy errors to statuses and machine-distinguishable
// reason strings. Upstream bodies never pass through verbatim.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, reason := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "request failed", logging.Err(err))
	}
	h.writeJSON(w, status, errorResponseBody{Error: reason})
}

func statusFor(err error) (int, string) {
	var (
		authn errs.Authentication
		authz errs.Authorization
		nf    errs.NotFound
		val   errs.Validation
		rl    errs.RateLimit
	)
	switch {
	case errors.As(err, &authn):
		return http.StatusUnauthorized, "unauthenticated"
	case errors.As(err, &authz):
		return http.StatusForbidden, "forbidden"
	case errors.As(err, &nf):
		return http.StatusNotFound, "not_found"
	case errors.As(err, &val):
		return http.StatusBadRequest, "invalid_request"
	case errors.As(err, &rl):
		return http.StatusServiceUnavailable, "rate_limited"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warn("failed to encode response", logging.Err(err))
	}
}
