package errs

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{
			name:     "message only",
			err:      NewAuthorization("not a participant"),
			expected: "not a participant",
		},
		{
			name:     "message with wrapped error",
			err:      NewUpstream("participants fetch failed", errors.New("connection reset")),
			expected: "participants fetch failed: connection reset",
		},
		{
			name:     "rate limit carries message",
			err:      NewRateLimit("throttled", 30*time.Second),
			expected: "throttled",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestUnwrap(t *testing.T) {
	inner := errors.New("boom")
	wrapped := NewUpstream("upstream failed", inner)
	assert.True(t, errors.Is(wrapped, inner))

	// Categories remain distinguishable via errors.As after further wrapping.
	outer := fmt.Errorf("handler: %w", wrapped)
	var up Upstream
	require.True(t, errors.As(outer, &up))

	var auth Authentication
	assert.False(t, errors.As(outer, &auth))
}

func TestRateLimitRetryAfter(t *testing.T) {
	err := NewRateLimit("throttled", 42*time.Second)

	var rl RateLimit
	require.True(t, errors.As(error(err), &rl))
	assert.Equal(t, 42*time.Second, rl.RetryAfter)
}

func TestAuthorizationDistinctFromNotFound(t *testing.T) {
	denied := error(NewAuthorization("denied"))
	missing := error(NewNotFound("no summary"))

	var nf NotFound
	assert.False(t, errors.As(denied, &nf))
	assert.True(t, errors.As(missing, &nf))
}
