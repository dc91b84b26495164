package zoom

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/meetbridge/meetbridge/internal/errs"
	"github.com/meetbridge/meetbridge/internal/httpclient"
)

// adminRoleCeiling: role identifiers at or below this value carry
// account-wide meeting access (owner and admin).
const adminRoleCeiling = 1

// Identity is the platform's answer for a caller-supplied token. It is
// resolved fresh on every request and must never be cached: a revoked token
// has to stop working immediately.
type Identity struct {
	Email       string
	DisplayName string
	IsAdmin     bool
}

// Me resolves the identity behind a caller's bearer token. The token is the
// caller's own, not the service credential, so a rejection means the caller
// is unauthenticated rather than the service being misconfigured.
func (c *Client) Me(ctx context.Context, bearerToken string) (*Identity, error) {
	if strings.TrimSpace(bearerToken) == "" {
		return nil, errs.NewAuthentication("missing bearer token")
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	resp, err := c.http.Request(ctx, http.MethodGet, c.baseURL+"/users/me", nil, map[string]string{
		"Authorization": "Bearer " + bearerToken,
	})
	if err != nil {
		if se, ok := err.(*httpclient.StatusError); ok &&
			(se.StatusCode == http.StatusUnauthorized || se.StatusCode == http.StatusForbidden) {
			return nil, errs.NewAuthentication("platform rejected bearer token", err)
		}
		return nil, mapAPIError(err)
	}

	var user User
	if err := json.Unmarshal(resp.Body, &user); err != nil {
		return nil, errs.NewUpstream("failed to decode identity response", err)
	}
	if user.Email == "" {
		return nil, errs.NewAuthentication("identity response carried no email")
	}

	return &Identity{
		Email:       strings.ToLower(user.Email),
		DisplayName: strings.TrimSpace(user.FirstName + " " + user.LastName),
		IsAdmin:     isAdminRole(user.RoleID),
	}, nil
}

func isAdminRole(roleID string) bool {
	n, err := strconv.Atoi(strings.TrimSpace(roleID))
	if err != nil {
		return false
	}
	return n <= adminRoleCeiling
}
