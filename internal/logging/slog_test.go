package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAnonymizeEmail(t *testing.T) {
	tests := []struct {
		name  string
		email string
	}{
		{name: "regular email", email: "alice@example.com"},
		{name: "uppercase normalized", email: "ALICE@EXAMPLE.COM"},
	}

	var first string
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AnonymizeEmail(tt.email)
			assert.NotContains(t, got, "alice")
			assert.Contains(t, got, "user:")
			if first == "" {
				first = got
			} else {
				// Case variants hash to the same value.
				assert.Equal(t, first, got)
			}
		})
	}

	assert.Empty(t, AnonymizeEmail(""))
}

func TestSanitizeToken(t *testing.T) {
	assert.Equal(t, "<empty>", SanitizeToken(""))

	got := SanitizeToken("super-secret-token")
	assert.NotContains(t, got, "secret")
	assert.Equal(t, "[token:18 chars]", got)
}

func TestExtractDomain(t *testing.T) {
	assert.Equal(t, "example.com", ExtractDomain("bob@example.com"))
	assert.Empty(t, ExtractDomain("not-an-email"))
	assert.Empty(t, ExtractDomain(""))
}

func TestErrNilSafe(t *testing.T) {
	attr := Err(nil)
	assert.Equal(t, "", attr.Key)
}
