// Package meeting_tools exposes the meeting content operations as MCP tools.
//
// The three tools map 1:1 onto the proxy service operations:
//
//   - list_meetings: meetings the caller participated in, with admin scope
//     extensions (another user's meetings, all meetings)
//   - get_meeting_summary: the AI-generated meeting summary
//   - get_meeting_transcript: the recording transcript, falling back to the
//     summary rendered as prose
//
// The caller's bearer token comes from the transport Authorization header or
// the bearer_token argument; identity validation and the participation check
// happen inside the proxy service on every call.
package meeting_tools
