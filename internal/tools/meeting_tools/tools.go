package meeting_tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/meetbridge/meetbridge/internal/proxy"
	"github.com/meetbridge/meetbridge/internal/server"
	"github.com/meetbridge/meetbridge/internal/tools/batch"
	"github.com/meetbridge/meetbridge/internal/tools/common"
	"github.com/meetbridge/meetbridge/internal/zoom"
)

// RegisterMeetingTools registers the meeting content tools with the MCP
// server. Every tool resolves the caller's bearer token per invocation and
// delegates to the proxy service, so the ledger-backed entitlement check
// applies to MCP callers exactly as it does to the HTTP endpoints.
func RegisterMeetingTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	listMeetingsTool := mcp.NewTool("list_meetings",
		mcp.WithDescription("List meetings the authenticated user participated in. Admins may list another user's meetings or all meetings."),
		mcp.WithString("bearer_token",
			mcp.Description("Platform access token of the caller. Omit when the transport already carries an Authorization header."),
		),
		mcp.WithString("from_date",
			mcp.Description("Start of the date range, YYYY-MM-DD (default: 30 days ago)"),
		),
		mcp.WithString("to_date",
			mcp.Description("End of the date range, YYYY-MM-DD (default: today)"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of meetings to return (default 50, max 100)"),
		),
		mcp.WithString("user_email",
			mcp.Description("List this user's meetings instead of the caller's (admin only)"),
		),
		mcp.WithBoolean("all_meetings",
			mcp.Description("List every indexed meeting (admin only)"),
		),
	)

	s.AddTool(listMeetingsTool, common.InstrumentedToolHandlerWithOperation(
		"list_meetings", "list", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleListMeetings(ctx, request, sc)
		}))

	getSummaryTool := mcp.NewTool("get_meeting_summary",
		mcp.WithDescription("Get the AI-generated summary of one or more meetings the authenticated user participated in"),
		mcp.WithString("bearer_token",
			mcp.Description("Platform access token of the caller. Omit when the transport already carries an Authorization header."),
		),
		mcp.WithString("occurrence_id",
			mcp.Required(),
			mcp.Description("The meeting occurrence UUID, as returned by list_meetings. Accepts a single UUID or an array of UUIDs for batch retrieval."),
		),
	)

	s.AddTool(getSummaryTool, common.InstrumentedToolHandlerWithOperation(
		"get_meeting_summary", "summary", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleGetSummary(ctx, request, sc)
		}))

	getTranscriptTool := mcp.NewTool("get_meeting_transcript",
		mcp.WithDescription("Get the transcript of a meeting the authenticated user participated in. Falls back to the AI summary rendered as prose when no recording transcript exists."),
		mcp.WithString("bearer_token",
			mcp.Description("Platform access token of the caller. Omit when the transport already carries an Authorization header."),
		),
		mcp.WithString("occurrence_id",
			mcp.Required(),
			mcp.Description("The meeting occurrence UUID, as returned by list_meetings"),
		),
	)

	s.AddTool(getTranscriptTool, common.InstrumentedToolHandlerWithOperation(
		"get_meeting_transcript", "transcript", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleGetTranscript(ctx, request, sc)
		}))

	return nil
}

func handleListMeetings(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	token := common.GetBearerToken(ctx, args)
	if token == "" {
		return mcp.NewToolResultError("bearer_token is required"), nil
	}

	req := proxy.ListRequest{}
	if v, ok := args["from_date"].(string); ok {
		req.FromDate = v
	}
	if v, ok := args["to_date"].(string); ok {
		req.ToDate = v
	}
	if v, ok := args["limit"].(float64); ok {
		req.Limit = int(v)
	}
	if v, ok := args["user_email"].(string); ok {
		req.UserEmail = v
	}
	if v, ok := args["all_meetings"].(bool); ok {
		req.AllMeetings = v
	}

	meetings, err := sc.ProxyService().ListMeetings(ctx, token, req)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list meetings: %v", err)), nil
	}

	if len(meetings) == 0 {
		return mcp.NewToolResultText("No meetings found in the requested range"), nil
	}

	result := fmt.Sprintf("Found %d meeting(s):\n\n", len(meetings))
	for i, m := range meetings {
		result += fmt.Sprintf("%d. %s\n", i+1, m.Topic)
		result += fmt.Sprintf("   Occurrence ID: %s\n", m.OccurrenceID)
		result += fmt.Sprintf("   Date: %s\n", m.Date)
		if m.DurationMinutes > 0 {
			result += fmt.Sprintf("   Duration: %d minutes\n", m.DurationMinutes)
		}
		if m.HostEmail != "" {
			result += fmt.Sprintf("   Host: %s\n", m.HostEmail)
		}
		result += fmt.Sprintf("   Summary available: %v\n", m.HasSummary)
		result += fmt.Sprintf("   Recording available: %v\n", m.HasRecording)
		result += "\n"
	}

	return mcp.NewToolResultText(result), nil
}

func handleGetSummary(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	token := common.GetBearerToken(ctx, args)
	if token == "" {
		return mcp.NewToolResultError("bearer_token is required"), nil
	}

	// Parse occurrence_id - can be string or array
	occurrenceIDs, err := batch.ParseStringOrArray(args["occurrence_id"], "occurrence_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if len(occurrenceIDs) == 1 {
		summary, err := sc.ProxyService().GetSummary(ctx, token, occurrenceIDs[0])
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to get summary: %v", err)), nil
		}

		text := renderSummary(summary)
		if text == "" {
			return mcp.NewToolResultText("The summary for this meeting is empty"), nil
		}
		return mcp.NewToolResultText(text), nil
	}

	results := batch.ProcessBatch(occurrenceIDs, func(id string) (string, error) {
		summary, err := sc.ProxyService().GetSummary(ctx, token, id)
		if err != nil {
			return "", err
		}
		text := renderSummary(summary)
		if text == "" {
			return "The summary for this meeting is empty", nil
		}
		return text, nil
	})

	return mcp.NewToolResultText(batch.FormatResults(results)), nil
}

func renderSummary(summary *zoom.MeetingSummary) string {
	var b strings.Builder
	if summary.SummaryTitle != "" {
		fmt.Fprintf(&b, "%s\n\n", summary.SummaryTitle)
	} else if summary.MeetingTopic != "" {
		fmt.Fprintf(&b, "%s\n\n", summary.MeetingTopic)
	}
	if summary.SummaryOverview != "" {
		fmt.Fprintf(&b, "Overview: %s\n\n", summary.SummaryOverview)
	}
	for _, section := range summary.SummaryDetails {
		if section.Label != "" {
			fmt.Fprintf(&b, "%s\n", section.Label)
		}
		fmt.Fprintf(&b, "%s\n\n", section.Summary)
	}
	if len(summary.NextSteps) > 0 {
		b.WriteString("Next steps:\n")
		for _, step := range summary.NextSteps {
			fmt.Fprintf(&b, "- %s\n", step)
		}
	}
	return strings.TrimSpace(b.String())
}

func handleGetTranscript(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	token := common.GetBearerToken(ctx, args)
	if token == "" {
		return mcp.NewToolResultError("bearer_token is required"), nil
	}

	occurrenceID, ok := args["occurrence_id"].(string)
	if !ok || occurrenceID == "" {
		return mcp.NewToolResultError("occurrence_id is required"), nil
	}

	transcript, err := sc.ProxyService().GetTranscript(ctx, token, occurrenceID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get transcript: %v", err)), nil
	}

	result := fmt.Sprintf("Source: %s\n\n%s", transcript.Source, transcript.Text)
	return mcp.NewToolResultText(result), nil
}
