// Package httpclient provides a reusable HTTP client with bounded retries,
// exponential backoff with jitter, Retry-After awareness for rate-limited
// responses, and a middleware chain for credential injection.
package httpclient
