package httpclient

import (
	"bytes"
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// RoundTripper is a middleware hook for outbound requests. Implementations
// may mutate the request (e.g. inject credentials) before calling next.
type RoundTripper interface {
	RoundTrip(req *http.Request, next func(*http.Request) (*http.Response, error)) (*http.Response, error)
}

// Config controls retry behavior for the client.
type Config struct {
	Timeout      time.Duration
	MaxRetries   int
	RetryDelay   time.Duration
	MaxDelay     time.Duration
	RetryBackoff bool
}

// Client is an HTTP client with bounded retries, exponential backoff with
// jitter, Retry-After awareness, and a RoundTripper middleware chain.
type Client struct {
	config        Config
	httpClient    *http.Client
	roundTrippers []RoundTripper
}

// Request describes a single HTTP request.
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    io.Reader
}

// Response captures the status, headers and fully-read body of a response.
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// StatusError is returned for responses with status >= 400. RetryAfter is
// populated from the Retry-After header when the server provided one.
type StatusError struct {
	StatusCode int
	Message    string
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.StatusCode)
}

// NewClient creates a new HTTP client with the given configuration.
func NewClient(config Config) *Client {
	if config.MaxDelay == 0 {
		config.MaxDelay = 30 * time.Second
	}
	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

// AddRoundTripper appends a middleware RoundTripper. Not safe for concurrent
// use; call only during client initialization.
func (c *Client) AddRoundTripper(rt RoundTripper) {
	c.roundTrippers = append(c.roundTrippers, rt)
}

// Do executes a request with retry logic. Rate-limited responses are retried
// after the server-mandated delay; server errors and network failures are
// retried with exponential backoff; client errors are surfaced immediately.
// The request body is buffered once so every attempt replays it in full.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	var bodyBytes []byte
	if req.Body != nil {
		b, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read request body: %w", err)
		}
		bodyBytes = b
	}

	var lastErr error

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := c.retryDelay(attempt, lastErr)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		if bodyBytes != nil {
			req.Body = bytes.NewReader(bodyBytes)
		}
		response, err := c.doRequest(ctx, req)
		if err == nil {
			return response, nil
		}
		lastErr = err

		if !c.shouldRetry(err) {
			break
		}
	}

	slog.DebugContext(ctx, "request failed after retries", "error", lastErr)
	return nil, lastErr
}

// Request performs an HTTP request with the specified verb.
func (c *Client) Request(ctx context.Context, verb, url string, body io.Reader, headers map[string]string) (*Response, error) {
	return c.Do(ctx, Request{Method: verb, URL: url, Headers: headers, Body: body})
}

// retryDelay computes the wait before the given attempt. A server-mandated
// Retry-After always wins over computed backoff.
func (c *Client) retryDelay(attempt int, lastErr error) time.Duration {
	if se, ok := lastErr.(*StatusError); ok && se.RetryAfter > 0 {
		return se.RetryAfter
	}

	delay := c.config.RetryDelay
	if c.config.RetryBackoff {
		for i := 1; i < attempt && delay < c.config.MaxDelay/2; i++ {
			delay *= 2
		}
		if delay > c.config.MaxDelay {
			delay = c.config.MaxDelay
		}
		// 25% jitter to avoid thundering herds across restarts.
		maxJitter := int64(delay / 4)
		if maxJitter > 0 {
			jitter, err := rand.Int(rand.Reader, big.NewInt(maxJitter))
			if err == nil {
				delay += time.Duration(jitter.Int64())
			}
		}
	}
	return delay
}

func (c *Client) doRequest(ctx context.Context, reqConfig Request) (*Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, reqConfig.Method, reqConfig.URL, reqConfig.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Accept", "application/json")
	for key, value := range reqConfig.Headers {
		httpReq.Header.Set(key, value)
	}

	resp, err := c.executeRoundTripperChain(httpReq, 0)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	response := &Response{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       body,
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return response, &StatusError{
			StatusCode: resp.StatusCode,
			Message:    string(body),
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}

	return response, nil
}

func (c *Client) shouldRetry(err error) bool {
	if err == nil {
		return false
	}

	if se, ok := err.(*StatusError); ok {
		return se.StatusCode >= http.StatusInternalServerError || se.StatusCode == http.StatusTooManyRequests
	}

	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "connection") ||
		strings.Contains(errStr, "network")
}

func (c *Client) executeRoundTripperChain(req *http.Request, index int) (*http.Response, error) {
	if index >= len(c.roundTrippers) {
		return c.httpClient.Do(req)
	}
	next := func(req *http.Request) (*http.Response, error) {
		return c.executeRoundTripperChain(req, index+1)
	}
	return c.roundTrippers[index].RoundTrip(req, next)
}

// parseRetryAfter parses a Retry-After header value in seconds. HTTP-date
// values are not used by the meeting platform and are ignored.
func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
