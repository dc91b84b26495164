package ledger

import "time"

// Provenance records why a participation record exists. It gates mutability:
// only Preregistration and ManualGrant records may be revoked by an admin;
// Webhook and Backfill records represent ground truth and are immutable
// except by the retention sweeper.
type Provenance string

const (
	// ProvenanceWebhook marks records captured live from a meeting-ended event.
	ProvenanceWebhook Provenance = "webhook"
	// ProvenanceBackfill marks records created by the historical importer.
	ProvenanceBackfill Provenance = "backfill"
	// ProvenancePreregistration marks records materialized from a standing
	// access rule at webhook-processing time.
	ProvenancePreregistration Provenance = "preregistration"
	// ProvenanceManualGrant marks admin-issued one-off grants.
	ProvenanceManualGrant Provenance = "manual-grant"
)

// Revocable reports whether an admin may delete a record with this
// provenance.
func (p Provenance) Revocable() bool {
	return p == ProvenancePreregistration || p == ProvenanceManualGrant
}

// Record asserts that a participant attended (or is otherwise entitled to)
// a specific meeting occurrence. At most one record exists per
// (occurrence, participant) pair; the storage key is derived
// deterministically from both fields, so repeated writes are idempotent.
type Record struct {
	// OccurrenceID is the platform-issued identifier unique per actual
	// meeting instance, distinct from the recurring MeetingID.
	OccurrenceID string `json:"occurrence_id"`

	// MeetingID is the human-facing meeting id, stable across occurrences.
	MeetingID string `json:"meeting_id"`

	Topic     string `json:"topic,omitempty"`
	HostEmail string `json:"host_email"`

	// ParticipantEmail is stored lowercased.
	ParticipantEmail string `json:"participant_email"`
	ParticipantName  string `json:"participant_name,omitempty"`

	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time,omitempty"`
	DurationMinutes int       `json:"duration_minutes,omitempty"`

	HasSummary   bool `json:"has_summary"`
	HasRecording bool `json:"has_recording"`

	IndexedAt  time.Time  `json:"indexed_at"`
	Provenance Provenance `json:"provenance"`
}

// AccessRule is a standing grant keyed by (meeting id, participant email),
// independent of any specific occurrence. Rules are evaluated at
// webhook-processing time to materialize preregistration records for future
// occurrences.
type AccessRule struct {
	ID               string    `json:"id"`
	MeetingID        string    `json:"meeting_id"`
	ParticipantEmail string    `json:"participant_email"`
	GrantedBy        string    `json:"granted_by"`
	CreatedAt        time.Time `json:"created_at"`
}
