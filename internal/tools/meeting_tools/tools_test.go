package meeting_tools

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meetbridge/meetbridge/internal/config"
	"github.com/meetbridge/meetbridge/internal/ledger"
	"github.com/meetbridge/meetbridge/internal/server"
	"github.com/meetbridge/meetbridge/internal/tools/batch"
	"github.com/meetbridge/meetbridge/internal/tools/common"
)

// newTestContext stands up a fake platform API and a server context with an
// in-memory ledger seeded with one meeting for alice.
func newTestContext(t *testing.T) *server.ServerContext {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /oauth/token", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "svc-token",
			"token_type":   "bearer",
			"expires_in":   3600,
		})
	})
	mux.HandleFunc("GET /users/me", func(w http.ResponseWriter, r *http.Request) {
		switch r.Header.Get("Authorization") {
		case "Bearer alice-token":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"email":      "alice@example.com",
				"first_name": "Alice",
				"last_name":  "Anderson",
				"role_id":    "2",
			})
		default:
			w.WriteHeader(http.StatusUnauthorized)
		}
	})
	mux.HandleFunc("GET /meetings/occ-1/meeting_summary", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"meeting_uuid":     "occ-1",
			"meeting_topic":    "Planning",
			"summary_title":    "Planning Sync",
			"summary_overview": "Discussed the roadmap.",
			"next_steps":       []string{"Ship it"},
		})
	})
	mux.HandleFunc("GET /meetings/occ-missing/meeting_summary", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]any{"code": 3001, "message": "not found"})
	})
	mux.HandleFunc("GET /past_meetings/occ-1/recordings", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]any{"code": 3301, "message": "not found"})
	})
	api := httptest.NewServer(mux)
	t.Cleanup(api.Close)

	sc, err := server.NewServerContext(context.Background(), config.Config{
		WebhookSecret:     "whsec",
		ZoomAccountID:     "acc-1",
		ZoomClientID:      "client-1",
		ZoomClientSecret:  "secret-1",
		ZoomBaseURL:       api.URL,
		ZoomTokenURL:      api.URL + "/oauth/token",
		RequestsPerSecond: 100,
		Store:             config.StoreMemory,
		RetentionDays:     365,
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sc.Shutdown() })

	require.NoError(t, sc.Store().UpsertBatch(context.Background(), []ledger.Record{{
		OccurrenceID:     "occ-1",
		MeetingID:        "9001",
		Topic:            "Planning",
		HostEmail:        "host@example.com",
		ParticipantEmail: "alice@example.com",
		StartTime:        time.Now().Add(-24 * time.Hour),
		DurationMinutes:  30,
		HasSummary:       true,
		IndexedAt:        time.Now(),
		Provenance:       ledger.ProvenanceWebhook,
	}}))

	return sc
}

func callTool(t *testing.T, sc *server.ServerContext, args map[string]interface{}, handler func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)) *mcp.CallToolResult {
	t.Helper()

	req := mcp.CallToolRequest{}
	req.Params.Arguments = args

	result, err := handler(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, result)
	return result
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()

	require.NotEmpty(t, result.Content)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return text.Text
}

func TestRegisterMeetingTools(t *testing.T) {
	sc := newTestContext(t)
	s := mcpserver.NewMCPServer("test", "0.0.1")

	require.NoError(t, RegisterMeetingTools(s, sc))
}

func TestListMeetings(t *testing.T) {
	sc := newTestContext(t)

	result := callTool(t, sc, map[string]interface{}{
		"bearer_token": "alice-token",
	}, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleListMeetings(ctx, req, sc)
	})

	require.False(t, result.IsError)
	text := resultText(t, result)
	assert.Contains(t, text, "Planning")
	assert.Contains(t, text, "occ-1")
	assert.Contains(t, text, "Summary available: true")
}

func TestListMeetings_TokenFromContext(t *testing.T) {
	sc := newTestContext(t)

	req := mcp.CallToolRequest{}
	ctx := common.WithBearerToken(context.Background(), "alice-token")

	result, err := handleListMeetings(ctx, req, sc)
	require.NoError(t, err)
	require.False(t, result.IsError)
}

func TestListMeetings_MissingToken(t *testing.T) {
	sc := newTestContext(t)

	result := callTool(t, sc, map[string]interface{}{}, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleListMeetings(ctx, req, sc)
	})

	require.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "bearer_token is required")
}

func TestListMeetings_RejectedToken(t *testing.T) {
	sc := newTestContext(t)

	result := callTool(t, sc, map[string]interface{}{
		"bearer_token": "bogus",
	}, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleListMeetings(ctx, req, sc)
	})

	require.True(t, result.IsError)
}

func TestGetMeetingSummary(t *testing.T) {
	sc := newTestContext(t)

	result := callTool(t, sc, map[string]interface{}{
		"bearer_token":  "alice-token",
		"occurrence_id": "occ-1",
	}, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleGetSummary(ctx, req, sc)
	})

	require.False(t, result.IsError)
	text := resultText(t, result)
	assert.Contains(t, text, "Planning Sync")
	assert.Contains(t, text, "Overview: Discussed the roadmap.")
	assert.Contains(t, text, "- Ship it")
}

func TestGetMeetingSummary_MissingOccurrence(t *testing.T) {
	sc := newTestContext(t)

	result := callTool(t, sc, map[string]interface{}{
		"bearer_token": "alice-token",
	}, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleGetSummary(ctx, req, sc)
	})

	require.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "occurrence_id is required")
}

func TestGetMeetingSummary_Batch(t *testing.T) {
	sc := newTestContext(t)

	require.NoError(t, sc.Store().UpsertBatch(context.Background(), []ledger.Record{{
		OccurrenceID:     "occ-missing",
		MeetingID:        "9002",
		Topic:            "Retro",
		ParticipantEmail: "alice@example.com",
		StartTime:        time.Now().Add(-48 * time.Hour),
		IndexedAt:        time.Now(),
		Provenance:       ledger.ProvenanceWebhook,
	}}))

	result := callTool(t, sc, map[string]interface{}{
		"bearer_token":  "alice-token",
		"occurrence_id": []interface{}{"occ-1", "occ-missing"},
	}, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleGetSummary(ctx, req, sc)
	})

	require.False(t, result.IsError)

	var br batch.BatchResult
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &br))
	assert.Equal(t, 2, br.Total)
	assert.Equal(t, 1, br.Successful)
	assert.Equal(t, 1, br.Failed)
}

func TestGetMeetingTranscript_FallsBackToSummary(t *testing.T) {
	sc := newTestContext(t)

	result := callTool(t, sc, map[string]interface{}{
		"bearer_token":  "alice-token",
		"occurrence_id": "occ-1",
	}, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleGetTranscript(ctx, req, sc)
	})

	require.False(t, result.IsError)
	text := resultText(t, result)
	assert.Contains(t, text, "Source: ai_summary")
	assert.Contains(t, text, "Planning Sync")
}
