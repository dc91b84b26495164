package instrumentation

import "testing"

func TestExtractUserDomain(t *testing.T) {
	tests := []struct {
		email    string
		expected string
	}{
		{"jane@example.com", "example.com"},
		{"user@gmail.com", "gmail.com"},
		{"admin@company.org", "company.org"},
		{"test@subdomain.example.com", "subdomain.example.com"},
		{"invalid", "unknown"},
		{"", "unknown"},
		{"@", "unknown"},
		{"user@", "unknown"},
		{"@domain.com", "domain.com"},
	}

	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			result := ExtractUserDomain(tt.email)
			if result != tt.expected {
				t.Errorf("ExtractUserDomain(%q) = %q, want %q", tt.email, result, tt.expected)
			}
		})
	}
}

func TestOperationConstants(t *testing.T) {
	operations := map[string]string{
		OperationList:         "list",
		OperationDetails:      "details",
		OperationParticipants: "participants",
		OperationSummary:      "summary",
		OperationTranscript:   "transcript",
		OperationRecordings:   "recordings",
		OperationDownload:     "download",
		OperationUsers:        "users",
		OperationReport:       "report",
		OperationIngest:       "ingest",
		OperationBackfill:     "backfill",
		OperationSweep:        "sweep",
		OperationGrant:        "grant",
		OperationRevoke:       "revoke",
	}

	for constant, expected := range operations {
		if constant != expected {
			t.Errorf("Operation constant = %q, want %q", constant, expected)
		}
	}
}
