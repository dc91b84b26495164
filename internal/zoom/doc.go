// Package zoom is the client layer for the meeting platform's REST API.
//
// It carries two distinct credential flows that must never mix. The
// TokenSource holds the service's own account-level credential and is used
// by the Client for elevated fetches (participants, summaries, recordings,
// reports); callers of the proxy surface instead present their own bearer
// tokens, which Me resolves to an Identity on every request without caching.
//
// All outbound calls share one pacing gate, and occurrence UUIDs pass
// through EncodeOccurrenceID to survive the platform's double-encoding rule
// for identifiers containing slashes.
package zoom
