package webhook

import "time"

// Event names this service reacts to. Anything else is acknowledged and
// dropped.
const (
	EventURLValidation = "endpoint.url_validation"
	EventMeetingEnded  = "meeting.ended"
)

// Event is the envelope of every inbound platform notification.
type Event struct {
	Event   string       `json:"event"`
	EventTS int64        `json:"event_ts"`
	Payload EventPayload `json:"payload"`
}

// EventPayload carries either a validation challenge or a meeting object,
// depending on the event type.
type EventPayload struct {
	AccountID  string        `json:"account_id,omitempty"`
	PlainToken string        `json:"plainToken,omitempty"`
	Object     MeetingObject `json:"object,omitempty"`
}

// MeetingObject is the meeting.ended payload body. Attendee lists here are
// frequently incomplete, which is why processing also asks the admin client.
type MeetingObject struct {
	UUID         string             `json:"uuid"`
	ID           int64              `json:"id"`
	Topic        string             `json:"topic"`
	HostID       string             `json:"host_id"`
	HostEmail    string             `json:"host_email"`
	StartTime    time.Time          `json:"start_time"`
	EndTime      time.Time          `json:"end_time"`
	Duration     int                `json:"duration"`
	Participants []EventParticipant `json:"participants,omitempty"`
}

// EventParticipant is an attendee entry embedded in the payload.
type EventParticipant struct {
	UserName string `json:"user_name"`
	Email    string `json:"email"`
}

// ChallengeResponse answers an endpoint.url_validation handshake.
type ChallengeResponse struct {
	PlainToken     string `json:"plainToken"`
	EncryptedToken string `json:"encryptedToken"`
}
