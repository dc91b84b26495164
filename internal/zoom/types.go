package zoom

import "time"

// PastMeeting is the platform's record of one finished meeting occurrence.
type PastMeeting struct {
	UUID            string    `json:"uuid"`
	ID              int64     `json:"id"`
	Topic           string    `json:"topic"`
	HostEmail       string    `json:"host_email"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	Duration        int       `json:"duration"`
	TotalMinutes    int       `json:"total_minutes"`
	ParticipantsNum int       `json:"participants_count"`
}

// Participant is one attendee of a past meeting occurrence.
type Participant struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	UserEmail string `json:"user_email"`
}

type participantsPage struct {
	NextPageToken string        `json:"next_page_token"`
	Participants  []Participant `json:"participants"`
}

// MeetingSummary is the platform's AI-generated summary of an occurrence.
type MeetingSummary struct {
	MeetingUUID     string           `json:"meeting_uuid"`
	MeetingID       int64            `json:"meeting_id"`
	MeetingTopic    string           `json:"meeting_topic"`
	SummaryStart    time.Time        `json:"summary_start_time"`
	SummaryEnd      time.Time        `json:"summary_end_time"`
	SummaryTitle    string           `json:"summary_title"`
	SummaryOverview string           `json:"summary_overview"`
	SummaryDetails  []SummarySection `json:"summary_details"`
	NextSteps       []string         `json:"next_steps"`
}

// SummarySection is one per-topic section of a meeting summary.
type SummarySection struct {
	Label   string `json:"label"`
	Summary string `json:"summary"`
}

// RecordingFile is one artifact of a cloud recording (video, audio,
// transcript captions, chat log).
type RecordingFile struct {
	ID             string `json:"id"`
	FileType       string `json:"file_type"`
	FileExtension  string `json:"file_extension"`
	FileSize       int64  `json:"file_size"`
	RecordingType  string `json:"recording_type"`
	RecordingStart string `json:"recording_start"`
	RecordingEnd   string `json:"recording_end"`
	DownloadURL    string `json:"download_url"`
	Status         string `json:"status"`
}

// Recording file types of interest.
const (
	FileTypeTranscript = "TRANSCRIPT"
	FileTypeVideo      = "MP4"
	FileTypeAudio      = "M4A"
)

// RecordingSet is the recording metadata for one occurrence.
type RecordingSet struct {
	UUID           string          `json:"uuid"`
	ID             int64           `json:"id"`
	Topic          string          `json:"topic"`
	HostEmail      string          `json:"host_email"`
	StartTime      time.Time       `json:"start_time"`
	Duration       int             `json:"duration"`
	RecordingFiles []RecordingFile `json:"recording_files"`
}

// User is a platform account member.
type User struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Type      int    `json:"type"`
	Status    string `json:"status"`
	RoleID    string `json:"role_id"`
}

type usersPage struct {
	NextPageToken string `json:"next_page_token"`
	Users         []User `json:"users"`
}

// reportMeeting is one entry of the reports listing of a user's past
// meetings.
type reportMeeting struct {
	UUID      string    `json:"uuid"`
	ID        int64     `json:"id"`
	Topic     string    `json:"topic"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Duration  int       `json:"duration"`
	Email     string    `json:"email"`
}

type reportMeetingsPage struct {
	NextPageToken string          `json:"next_page_token"`
	Meetings      []reportMeeting `json:"meetings"`
}
