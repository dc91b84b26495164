package zoom

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meetbridge/meetbridge/internal/errs"
)

// newTestClient wires a client against one httptest server that serves both
// the token endpoint and the API surface.
func newTestClient(t *testing.T, api http.HandlerFunc) (*Client, *httptest.Server, *int64) {
	t.Helper()

	var exchanges int64
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt64(&exchanges, 1)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "svc-tok-" + string(rune('a'+n-1)),
			"token_type":   "bearer",
			"expires_in":   3600,
		})
	})
	mux.HandleFunc("/", api)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	client, err := NewClient(Config{
		BaseURL:           server.URL,
		TokenURL:          server.URL + "/oauth/token",
		Credentials:       testCredentials(),
		RequestsPerSecond: 1000,
		Timeout:           5 * time.Second,
	})
	require.NoError(t, err)
	return client, server, &exchanges
}

func TestEncodeOccurrenceID(t *testing.T) {
	tests := []struct {
		name string
		uuid string
		want string
	}{
		{"plain", "abc123==", "abc123=="},
		{"leading slash", "/J8yyHzeQ1OqJ0zQ==", "%252FJ8yyHzeQ1OqJ0zQ=="},
		{"double slash", "ab//cd==", "ab%252F%252Fcd=="},
		{"single interior slash", "ab/cd", "ab%2Fcd"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, EncodeOccurrenceID(tc.uuid))
		})
	}
}

func TestClientRetriesOnceAfterTokenRejection(t *testing.T) {
	var apiCalls int64
	client, _, exchanges := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt64(&apiCalls, 1) == 1 {
			http.Error(w, `{"message":"token expired"}`, http.StatusUnauthorized)
			return
		}
		assert.Equal(t, "Bearer svc-tok-b", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(PastMeeting{UUID: "occ-1", Topic: "Standup"})
	})

	meeting, err := client.PastMeetingDetails(context.Background(), "occ-1")
	require.NoError(t, err)
	assert.Equal(t, "Standup", meeting.Topic)
	assert.Equal(t, int64(2), atomic.LoadInt64(&apiCalls))
	assert.Equal(t, int64(2), atomic.LoadInt64(exchanges))
}

func TestClientPersistentRejectionSurfacesUpstream(t *testing.T) {
	client, _, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"no"}`, http.StatusForbidden)
	})

	_, err := client.PastMeetingDetails(context.Background(), "occ-1")
	require.Error(t, err)
	assert.IsType(t, errs.Upstream{}, err)
}

func TestPastMeetingDetailsCached(t *testing.T) {
	var apiCalls int64
	client, _, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&apiCalls, 1)
		json.NewEncoder(w).Encode(PastMeeting{UUID: "occ-1", Topic: "Standup"})
	})

	for i := 0; i < 3; i++ {
		_, err := client.PastMeetingDetails(context.Background(), "occ-1")
		require.NoError(t, err)
	}
	assert.Equal(t, int64(1), atomic.LoadInt64(&apiCalls))
}

func TestPastMeetingParticipantsPaginates(t *testing.T) {
	client, _, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("next_page_token") == "" {
			json.NewEncoder(w).Encode(participantsPage{
				NextPageToken: "page-2",
				Participants:  []Participant{{Name: "Alice", UserEmail: "alice@example.com"}},
			})
			return
		}
		json.NewEncoder(w).Encode(participantsPage{
			Participants: []Participant{{Name: "Bob", UserEmail: "bob@example.com"}},
		})
	})

	participants, err := client.PastMeetingParticipants(context.Background(), "occ-1")
	require.NoError(t, err)
	require.Len(t, participants, 2)
	assert.Equal(t, "alice@example.com", participants[0].UserEmail)
	assert.Equal(t, "bob@example.com", participants[1].UserEmail)
}

func TestClientMapsNotFound(t *testing.T) {
	client, _, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"meeting not found"}`, http.StatusNotFound)
	})

	_, err := client.MeetingSummary(context.Background(), "occ-missing")
	require.Error(t, err)
	assert.IsType(t, errs.NotFound{}, err)
}

func TestClientMapsRateLimit(t *testing.T) {
	client, _, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7")
		http.Error(w, `{"message":"slow down"}`, http.StatusTooManyRequests)
	})

	_, err := client.RecordingFiles(context.Background(), "occ-1")
	require.Error(t, err)
	var rl errs.RateLimit
	require.ErrorAs(t, err, &rl)
	assert.Equal(t, 7*time.Second, rl.RetryAfter)
}

func TestDownloadFileUsesQueryToken(t *testing.T) {
	client, server, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "svc-tok-a", r.URL.Query().Get("access_token"))
		assert.Empty(t, r.Header.Get("Authorization"))
		w.Write([]byte("WEBVTT\n\n00:00:01.000 --> 00:00:03.000\nhello"))
	})

	body, err := client.DownloadFile(context.Background(), server.URL+"/rec/download/file-1")
	require.NoError(t, err)
	assert.Contains(t, string(body), "WEBVTT")
}

func TestUserPastMeetingsWindowParams(t *testing.T) {
	client, _, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2026-01-01", r.URL.Query().Get("from"))
		assert.Equal(t, "2026-01-29", r.URL.Query().Get("to"))
		json.NewEncoder(w).Encode(reportMeetingsPage{
			Meetings: []reportMeeting{{
				UUID:      "occ-1",
				ID:        42,
				Topic:     "Planning",
				Email:     "Host@Example.com",
				StartTime: time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC),
				Duration:  45,
			}},
		})
	})

	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 1, 29, 0, 0, 0, 0, time.UTC)
	meetings, err := client.UserPastMeetings(context.Background(), "user-1", from, to)
	require.NoError(t, err)
	require.Len(t, meetings, 1)
	assert.Equal(t, "host@example.com", meetings[0].HostEmail)
	assert.Equal(t, int64(42), meetings[0].MeetingID)
}

func TestMeResolvesIdentity(t *testing.T) {
	client, _, exchanges := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer caller-token", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(User{
			Email:     "Alice@Example.com",
			FirstName: "Alice",
			LastName:  "Smith",
			RoleID:    "2",
		})
	})

	identity, err := client.Me(context.Background(), "caller-token")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", identity.Email)
	assert.Equal(t, "Alice Smith", identity.DisplayName)
	assert.False(t, identity.IsAdmin)
	// identity lookups use the caller's token, never the service credential
	assert.Equal(t, int64(0), atomic.LoadInt64(exchanges))
}

func TestMeAdminRoles(t *testing.T) {
	tests := []struct {
		roleID string
		admin  bool
	}{
		{"0", true},
		{"1", true},
		{"2", false},
		{"", false},
		{"not-a-number", false},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.admin, isAdminRole(tc.roleID), "role_id %q", tc.roleID)
	}
}

func TestMeRejectedToken(t *testing.T) {
	client, _, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"invalid token"}`, http.StatusUnauthorized)
	})

	_, err := client.Me(context.Background(), "revoked-token")
	require.Error(t, err)
	assert.IsType(t, errs.Authentication{}, err)
}

func TestMeMissingToken(t *testing.T) {
	client, _, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	})

	_, err := client.Me(context.Background(), "   ")
	require.Error(t, err)
	assert.IsType(t, errs.Authentication{}, err)
}
