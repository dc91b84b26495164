package common

import (
	"context"
	"net/http/httptest"
	"testing"
)

func TestGetBearerToken(t *testing.T) {
	tests := []struct {
		name     string
		ctx      context.Context
		args     map[string]interface{}
		expected string
	}{
		{
			name:     "nothing set returns empty",
			ctx:      context.Background(),
			args:     map[string]interface{}{},
			expected: "",
		},
		{
			name:     "argument token used",
			ctx:      context.Background(),
			args:     map[string]interface{}{"bearer_token": "arg-token"},
			expected: "arg-token",
		},
		{
			name:     "context token wins over argument",
			ctx:      WithBearerToken(context.Background(), "ctx-token"),
			args:     map[string]interface{}{"bearer_token": "arg-token"},
			expected: "ctx-token",
		},
		{
			name:     "nil args with context token",
			ctx:      WithBearerToken(context.Background(), "ctx-token"),
			args:     nil,
			expected: "ctx-token",
		},
		{
			name:     "empty argument ignored",
			ctx:      context.Background(),
			args:     map[string]interface{}{"bearer_token": ""},
			expected: "",
		},
		{
			name:     "non-string argument ignored",
			ctx:      context.Background(),
			args:     map[string]interface{}{"bearer_token": 123},
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetBearerToken(tt.ctx, tt.args); got != tt.expected {
				t.Errorf("GetBearerToken() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestHTTPContextFunc(t *testing.T) {
	t.Run("bearer header extracted", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/mcp", nil)
		req.Header.Set("Authorization", "Bearer user-token")

		ctx := HTTPContextFunc(context.Background(), req)

		token, ok := BearerTokenFromContext(ctx)
		if !ok || token != "user-token" {
			t.Errorf("expected user-token, got %q (ok=%v)", token, ok)
		}
	})

	t.Run("case-insensitive scheme", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/mcp", nil)
		req.Header.Set("Authorization", "bearer user-token")

		ctx := HTTPContextFunc(context.Background(), req)

		token, ok := BearerTokenFromContext(ctx)
		if !ok || token != "user-token" {
			t.Errorf("expected user-token, got %q (ok=%v)", token, ok)
		}
	})

	t.Run("missing header leaves context untouched", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/mcp", nil)

		ctx := HTTPContextFunc(context.Background(), req)

		if _, ok := BearerTokenFromContext(ctx); ok {
			t.Error("expected no token in context")
		}
	})

	t.Run("non-bearer scheme ignored", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/mcp", nil)
		req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")

		ctx := HTTPContextFunc(context.Background(), req)

		if _, ok := BearerTokenFromContext(ctx); ok {
			t.Error("expected no token in context")
		}
	})
}
