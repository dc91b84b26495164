package proxy

import (
	"strconv"
	"strings"

	"github.com/meetbridge/meetbridge/internal/zoom"
)

// parseVTT turns a WebVTT caption file into speaker-attributed plain text.
// Cue identifiers, timing lines and NOTE/STYLE blocks are dropped; the
// platform already embeds "Speaker: text" attribution in the cue payload.
func parseVTT(raw string) string {
	var lines []string
	var lastLine string
	inComment := false

	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimRight(line, "\r")
		trimmed := strings.TrimSpace(line)

		switch {
		case trimmed == "":
			inComment = false
			continue
		case inComment:
			continue
		case strings.HasPrefix(trimmed, "WEBVTT"):
			continue
		case strings.HasPrefix(trimmed, "NOTE") || strings.HasPrefix(trimmed, "STYLE") || strings.HasPrefix(trimmed, "REGION"):
			inComment = true
			continue
		case strings.Contains(trimmed, "-->"):
			continue
		case isCueNumber(trimmed):
			continue
		}

		// Drop back-to-back repeats; rolling captions re-emit the same text.
		if trimmed == lastLine {
			continue
		}
		lastLine = trimmed
		lines = append(lines, trimmed)
	}
	return strings.Join(lines, "\n")
}

func isCueNumber(s string) bool {
	_, err := strconv.Atoi(s)
	return err == nil
}

// summaryAsProse reshapes an AI summary into transcript-like prose:
// overview, per-topic sections, next steps. A degraded substitute for a
// real caption file; callers see the ai_summary source marker.
func summaryAsProse(summary *zoom.MeetingSummary) string {
	var b strings.Builder

	if summary.SummaryTitle != "" {
		b.WriteString(summary.SummaryTitle)
		b.WriteString("\n\n")
	}
	if summary.SummaryOverview != "" {
		b.WriteString("Overview: ")
		b.WriteString(summary.SummaryOverview)
		b.WriteString("\n\n")
	}
	for _, section := range summary.SummaryDetails {
		if section.Label != "" {
			b.WriteString(section.Label)
			b.WriteString("\n")
		}
		if section.Summary != "" {
			b.WriteString(section.Summary)
			b.WriteString("\n\n")
		}
	}
	if len(summary.NextSteps) > 0 {
		b.WriteString("Next steps:\n")
		for _, step := range summary.NextSteps {
			b.WriteString("- ")
			b.WriteString(step)
			b.WriteString("\n")
		}
	}
	return strings.TrimSpace(b.String())
}

func formatMeetingID(id int64) string {
	if id == 0 {
		return ""
	}
	return strconv.FormatInt(id, 10)
}
