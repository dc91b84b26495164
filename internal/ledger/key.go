package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// emailHashLen is the hex-character prefix of the SHA-256 email hash used in
// storage keys. 12 characters (48 bits) keeps keys short while making
// collisions within a single account's participant population negligible; the
// occurrence id component disambiguates further. This is an accepted design
// trade-off, not a correctness gap.
const emailHashLen = 12

const (
	recordKeyPrefix = "p"
	ruleKeyPrefix   = "r"
)

// NormalizeEmail lowercases and trims an email address. All ledger lookups
// and writes go through this so case variants collapse to one identity.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// hashEmail returns the truncated hex SHA-256 of the normalized email.
func hashEmail(email string) string {
	sum := sha256.Sum256([]byte(NormalizeEmail(email)))
	return hex.EncodeToString(sum[:])[:emailHashLen]
}

// sanitizeID maps an arbitrary platform identifier onto the store's key
// alphabet. Occurrence UUIDs can contain '/', '+' and '=' which are not
// valid in KV keys.
func sanitizeID(id string) string {
	var b strings.Builder
	b.Grow(len(id))
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "_"
	}
	return b.String()
}

// RecordKey derives the deterministic storage key for a participation
// record. The same (occurrence, participant) pair always yields the same
// key regardless of email casing, which is what makes repeated webhook
// delivery idempotent.
func RecordKey(occurrenceID, email string) string {
	return recordKeyPrefix + "." + hashEmail(email) + "." + sanitizeID(occurrenceID)
}

// recordKeyParticipantPattern matches every record key for one participant.
func recordKeyParticipantPattern(email string) string {
	return recordKeyPrefix + "." + hashEmail(email) + ".*"
}

// recordKeyAllPattern matches every record key.
const recordKeyAllPattern = recordKeyPrefix + ".*.*"

// RuleKey derives the storage key for a standing access rule.
func RuleKey(meetingID, email string) string {
	return ruleKeyPrefix + "." + sanitizeID(meetingID) + "." + hashEmail(email)
}

// ruleKeyMeetingPattern matches every rule key for one meeting.
func ruleKeyMeetingPattern(meetingID string) string {
	return ruleKeyPrefix + "." + sanitizeID(meetingID) + ".*"
}

// ruleKeyAllPattern matches every rule key.
const ruleKeyAllPattern = ruleKeyPrefix + ".*.*"
