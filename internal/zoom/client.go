package zoom

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/meetbridge/meetbridge/internal/errs"
	"github.com/meetbridge/meetbridge/internal/httpclient"
)

// DefaultBaseURL is the platform's REST API root.
const DefaultBaseURL = "https://api.zoom.us/v2"

// meetingCacheTTL bounds how long past-occurrence metadata is cached. Only
// immutable post-meeting metadata is cached here; identity lookups are
// never cached.
const meetingCacheTTL = 5 * time.Minute

// Config configures the admin-credential client.
type Config struct {
	BaseURL     string
	TokenURL    string
	Credentials Credentials

	// RequestsPerSecond is the global pacing gate shared by every outbound
	// call of this client. The platform enforces a per-account limit, not a
	// per-endpoint one.
	RequestsPerSecond float64

	Timeout    time.Duration
	MaxRetries int
}

// Client fetches meeting content with elevated (account-level) credentials.
// All calls pass through one pacing gate and one cached service token.
type Client struct {
	baseURL string
	http    *httpclient.Client
	tokens  *TokenSource
	limiter *rate.Limiter
	cache   *gocache.Cache
}

// NewClient creates an admin client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 8
	}

	hc := httpclient.NewClient(httpclient.Config{
		Timeout:      cfg.Timeout,
		MaxRetries:   cfg.MaxRetries,
		RetryDelay:   time.Second,
		RetryBackoff: true,
	})

	tokens, err := NewTokenSource(cfg.Credentials, cfg.TokenURL, hc)
	if err != nil {
		return nil, err
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    hc,
		tokens:  tokens,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		cache:   gocache.New(meetingCacheTTL, 2*meetingCacheTTL),
	}, nil
}

// EncodeOccurrenceID prepares an occurrence UUID for use in a URL path
// segment. UUIDs that start with '/' or contain '//' must be
// percent-encoded twice, per the platform's convention; anything else gets
// a single escape. Getting this wrong makes every such lookup silently 404.
func EncodeOccurrenceID(uuid string) string {
	if strings.HasPrefix(uuid, "/") || strings.Contains(uuid, "//") {
		return url.PathEscape(url.PathEscape(uuid))
	}
	return url.PathEscape(uuid)
}

// apiGet performs a paced, token-authenticated GET. A 401/403 triggers one
// forced token refresh and a single retry.
func (c *Client) apiGet(ctx context.Context, path string, query url.Values) (*httpclient.Response, error) {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	for attempt := 0; ; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return nil, err
		}

		resp, err := c.http.Request(ctx, http.MethodGet, endpoint, nil, map[string]string{
			"Authorization": "Bearer " + token.AccessToken,
		})
		if err == nil {
			return resp, nil
		}

		if se, ok := err.(*httpclient.StatusError); ok &&
			(se.StatusCode == http.StatusUnauthorized || se.StatusCode == http.StatusForbidden) &&
			attempt == 0 {
			slog.DebugContext(ctx, "service token rejected, forcing refresh", "path", path)
			c.tokens.Invalidate()
			continue
		}
		return nil, mapAPIError(err)
	}
}

// mapAPIError translates transport-level failures into the service error
// taxonomy.
func mapAPIError(err error) error {
	se, ok := err.(*httpclient.StatusError)
	if !ok {
		return errs.NewUpstream("platform request failed", err)
	}
	switch {
	case se.StatusCode == http.StatusNotFound:
		return errs.NewNotFound("not found upstream", err)
	case se.StatusCode == http.StatusTooManyRequests:
		return errs.NewRateLimit("platform rate limit exceeded", se.RetryAfter, err)
	case se.StatusCode == http.StatusUnauthorized || se.StatusCode == http.StatusForbidden:
		return errs.NewUpstream("platform rejected service credentials", err)
	default:
		return errs.NewUpstream(fmt.Sprintf("platform returned status %d", se.StatusCode), err)
	}
}

// PastMeetingDetails fetches metadata for one finished occurrence. Results
// are cached briefly since post-meeting metadata is immutable.
func (c *Client) PastMeetingDetails(ctx context.Context, occurrenceID string) (*PastMeeting, error) {
	if cached, ok := c.cache.Get("past:" + occurrenceID); ok {
		return cached.(*PastMeeting), nil
	}

	resp, err := c.apiGet(ctx, "/past_meetings/"+EncodeOccurrenceID(occurrenceID), nil)
	if err != nil {
		return nil, err
	}
	var meeting PastMeeting
	if err := json.Unmarshal(resp.Body, &meeting); err != nil {
		return nil, errs.NewUpstream("failed to decode past meeting", err)
	}
	c.cache.SetDefault("past:"+occurrenceID, &meeting)
	return &meeting, nil
}

// PastMeetingParticipants fetches the full participant list for an
// occurrence, following pagination.
func (c *Client) PastMeetingParticipants(ctx context.Context, occurrenceID string) ([]Participant, error) {
	var all []Participant
	pageToken := ""
	for {
		query := url.Values{"page_size": {"300"}}
		if pageToken != "" {
			query.Set("next_page_token", pageToken)
		}
		resp, err := c.apiGet(ctx, "/past_meetings/"+EncodeOccurrenceID(occurrenceID)+"/participants", query)
		if err != nil {
			return nil, err
		}
		var page participantsPage
		if err := json.Unmarshal(resp.Body, &page); err != nil {
			return nil, errs.NewUpstream("failed to decode participants page", err)
		}
		all = append(all, page.Participants...)
		if page.NextPageToken == "" {
			return all, nil
		}
		pageToken = page.NextPageToken
	}
}

// MeetingSummary fetches the AI-generated summary for an occurrence.
// Returns a NotFound error when no summary was generated.
func (c *Client) MeetingSummary(ctx context.Context, occurrenceID string) (*MeetingSummary, error) {
	resp, err := c.apiGet(ctx, "/meetings/"+EncodeOccurrenceID(occurrenceID)+"/meeting_summary", nil)
	if err != nil {
		return nil, err
	}
	var summary MeetingSummary
	if err := json.Unmarshal(resp.Body, &summary); err != nil {
		return nil, errs.NewUpstream("failed to decode meeting summary", err)
	}
	return &summary, nil
}

// RecordingFiles fetches recording metadata for an occurrence. Returns a
// NotFound error when the occurrence has no cloud recording.
func (c *Client) RecordingFiles(ctx context.Context, occurrenceID string) (*RecordingSet, error) {
	resp, err := c.apiGet(ctx, "/past_meetings/"+EncodeOccurrenceID(occurrenceID)+"/recordings", nil)
	if err != nil {
		return nil, err
	}
	var set RecordingSet
	if err := json.Unmarshal(resp.Body, &set); err != nil {
		return nil, errs.NewUpstream("failed to decode recording metadata", err)
	}
	return &set, nil
}

// DownloadFile downloads a recording artifact. The platform requires the
// token as an access_token query parameter for binary downloads, not as a
// header.
func (c *Client) DownloadFile(ctx context.Context, downloadURL string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	u, err := url.Parse(downloadURL)
	if err != nil {
		return nil, errs.NewValidation("invalid download URL", err)
	}
	q := u.Query()
	q.Set("access_token", token.AccessToken)
	u.RawQuery = q.Encode()

	resp, err := c.http.Request(ctx, http.MethodGet, u.String(), nil, nil)
	if err != nil {
		return nil, mapAPIError(err)
	}
	return resp.Body, nil
}

// ListActiveUsers enumerates every active account member, following
// pagination.
func (c *Client) ListActiveUsers(ctx context.Context) ([]User, error) {
	var all []User
	pageToken := ""
	for {
		query := url.Values{"status": {"active"}, "page_size": {"300"}}
		if pageToken != "" {
			query.Set("next_page_token", pageToken)
		}
		resp, err := c.apiGet(ctx, "/users", query)
		if err != nil {
			return nil, err
		}
		var page usersPage
		if err := json.Unmarshal(resp.Body, &page); err != nil {
			return nil, errs.NewUpstream("failed to decode users page", err)
		}
		all = append(all, page.Users...)
		if page.NextPageToken == "" {
			return all, nil
		}
		pageToken = page.NextPageToken
	}
}

// ReportedMeeting is one hosted occurrence from the reporting API.
type ReportedMeeting struct {
	OccurrenceID string
	MeetingID    int64
	Topic        string
	HostEmail    string
	StartTime    time.Time
	EndTime      time.Time
	Duration     int
}

// UserPastMeetings lists occurrences a user hosted within [from, to] via the
// reporting API, following pagination. The platform caps the range length;
// callers chunk longer spans into windows before calling.
func (c *Client) UserPastMeetings(ctx context.Context, userID string, from, to time.Time) ([]ReportedMeeting, error) {
	var all []ReportedMeeting
	pageToken := ""
	for {
		query := url.Values{
			"from":      {from.Format("2006-01-02")},
			"to":        {to.Format("2006-01-02")},
			"page_size": {"300"},
			"type":      {"past"},
		}
		if pageToken != "" {
			query.Set("next_page_token", pageToken)
		}
		resp, err := c.apiGet(ctx, "/report/users/"+url.PathEscape(userID)+"/meetings", query)
		if err != nil {
			return nil, err
		}
		var page reportMeetingsPage
		if err := json.Unmarshal(resp.Body, &page); err != nil {
			return nil, errs.NewUpstream("failed to decode report page", err)
		}
		for _, m := range page.Meetings {
			all = append(all, ReportedMeeting{
				OccurrenceID: m.UUID,
				MeetingID:    m.ID,
				Topic:        m.Topic,
				HostEmail:    strings.ToLower(m.Email),
				StartTime:    m.StartTime,
				EndTime:      m.EndTime,
				Duration:     m.Duration,
			})
		}
		if page.NextPageToken == "" {
			return all, nil
		}
		pageToken = page.NextPageToken
	}
}
