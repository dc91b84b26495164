package common

import (
	"context"
	"net/http"
	"strings"
)

type contextKey string

// bearerTokenKey carries the caller's platform token through the MCP request
// context.
const bearerTokenKey contextKey = "bearerToken"

// WithBearerToken returns a context carrying the caller's bearer token.
func WithBearerToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, bearerTokenKey, token)
}

// BearerTokenFromContext returns the bearer token stored in the context, if
// any.
func BearerTokenFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(bearerTokenKey).(string)
	return token, ok && token != ""
}

// HTTPContextFunc extracts the Authorization bearer token from an incoming
// HTTP request into the request context. Wire it into the streamable HTTP
// server with server.WithHTTPContextFunc.
func HTTPContextFunc(ctx context.Context, r *http.Request) context.Context {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(auth) > len(prefix) && strings.EqualFold(auth[:len(prefix)], prefix) {
		return WithBearerToken(ctx, auth[len(prefix):])
	}
	return ctx
}

// GetBearerToken resolves the caller's platform token for a tool invocation.
//
// Priority order:
//  1. Token from the transport context (Authorization header)
//  2. Explicit "bearer_token" argument in the request
//
// The transport-authenticated token wins so a client cannot substitute a
// different caller identity through tool arguments.
func GetBearerToken(ctx context.Context, args map[string]interface{}) string {
	if token, ok := BearerTokenFromContext(ctx); ok {
		return token
	}
	if token, ok := args["bearer_token"].(string); ok && token != "" {
		return token
	}
	return ""
}
