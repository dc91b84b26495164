package zoom

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"github.com/meetbridge/meetbridge/internal/errs"
	"github.com/meetbridge/meetbridge/internal/httpclient"
)

// refreshMargin is the safety window before expiry inside which the token is
// refreshed proactively.
const refreshMargin = 60 * time.Second

// Credentials identify the server-to-server app used for elevated platform
// access.
type Credentials struct {
	AccountID    string
	ClientID     string
	ClientSecret string
}

func (c Credentials) validate() error {
	if c.AccountID == "" || c.ClientID == "" || c.ClientSecret == "" {
		return errs.NewConfiguration("account id, client id and client secret are required")
	}
	return nil
}

// TokenSource caches one account-credentials token per process and refreshes
// it lazily. Concurrent callers during a refresh wait on the same in-flight
// exchange instead of issuing duplicates.
type TokenSource struct {
	creds    Credentials
	tokenURL string
	http     *httpclient.Client

	mu    sync.RWMutex
	token *oauth2.Token

	group singleflight.Group
}

// NewTokenSource creates a token source for the given credentials. tokenURL
// defaults to the platform's OAuth token endpoint.
func NewTokenSource(creds Credentials, tokenURL string, hc *httpclient.Client) (*TokenSource, error) {
	if err := creds.validate(); err != nil {
		return nil, err
	}
	if tokenURL == "" {
		tokenURL = "https://zoom.us/oauth/token"
	}
	if hc == nil {
		hc = httpclient.NewClient(httpclient.Config{Timeout: 30 * time.Second, MaxRetries: 2, RetryDelay: time.Second, RetryBackoff: true})
	}
	return &TokenSource{creds: creds, tokenURL: tokenURL, http: hc}, nil
}

// Token returns a currently-valid token, refreshing when the cached one is
// absent or within the refresh margin of expiry.
func (ts *TokenSource) Token(ctx context.Context) (*oauth2.Token, error) {
	ts.mu.RLock()
	token := ts.token
	ts.mu.RUnlock()

	if usable(token) {
		return token, nil
	}

	// Single-flight: late concurrent callers await the in-flight exchange.
	result, err, _ := ts.group.Do("refresh", func() (any, error) {
		ts.mu.RLock()
		cached := ts.token
		ts.mu.RUnlock()
		if usable(cached) {
			return cached, nil
		}

		fresh, err := ts.exchange(ctx)
		if err != nil {
			return nil, err
		}
		ts.mu.Lock()
		ts.token = fresh
		ts.mu.Unlock()
		return fresh, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*oauth2.Token), nil
}

// Invalidate discards the cached token so the next Token call performs a
// fresh exchange. Used after the platform rejects a token mid-lifetime.
func (ts *TokenSource) Invalidate() {
	ts.mu.Lock()
	ts.token = nil
	ts.mu.Unlock()
}

func usable(t *oauth2.Token) bool {
	return t != nil && t.AccessToken != "" && time.Until(t.Expiry) > refreshMargin
}

// exchange performs the account-credentials grant against the token
// endpoint.
func (ts *TokenSource) exchange(ctx context.Context) (*oauth2.Token, error) {
	form := url.Values{
		"grant_type": {"account_credentials"},
		"account_id": {ts.creds.AccountID},
	}

	resp, err := ts.http.Do(ctx, httpclient.Request{
		Method: http.MethodPost,
		URL:    ts.tokenURL,
		Headers: map[string]string{
			"Authorization": "Basic " + basicAuth(ts.creds.ClientID, ts.creds.ClientSecret),
			"Content-Type":  "application/x-www-form-urlencoded",
		},
		Body: strings.NewReader(form.Encode()),
	})
	if err != nil {
		if se, ok := err.(*httpclient.StatusError); ok && (se.StatusCode == http.StatusUnauthorized || se.StatusCode == http.StatusBadRequest) {
			return nil, errs.NewConfiguration("platform rejected service credentials")
		}
		return nil, errs.NewUpstream("token exchange failed", err)
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(resp.Body, &payload); err != nil || payload.AccessToken == "" {
		return nil, errs.NewUpstream("token endpoint returned an unusable response", err)
	}

	return &oauth2.Token{
		AccessToken: payload.AccessToken,
		TokenType:   payload.TokenType,
		Expiry:      time.Now().Add(time.Duration(payload.ExpiresIn) * time.Second),
	}, nil
}

func basicAuth(user, pass string) string {
	return base64.StdEncoding.EncodeToString([]byte(user + ":" + pass))
}
