// Package client holds the HTTP clients for the platform services this
// service depends on, plus the NATS notification publisher.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/pesio-ai/be-approval-workflows/internal/assignment"
	"github.com/pesio-ai/be-approval-workflows/internal/errors"
	"github.com/pesio-ai/be-approval-workflows/internal/logger"
)

// IdentityClient talks to the platform identity service. It serves both
// hierarchy navigation for the inheritance resolver and relationship
// expansion for approver resolution.
type IdentityClient struct {
	baseURL string
	http    *http.Client
	log     *logger.Logger
}

// NewIdentityClient creates a client against the identity service base URL.
func NewIdentityClient(baseURL string, log *logger.Logger) *IdentityClient {
	return &IdentityClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
		log:     log,
	}
}

// Ancestors returns the ancestor node ids of a hierarchy node, nearest
// first, as the identity service reports them.
func (c *IdentityClient) Ancestors(ctx context.Context, t assignment.Type, id int64) ([]int64, error) {
	var resp struct {
		IDs []int64 `json:"ids"`
	}
	url := fmt.Sprintf("%s/v1/hierarchy/%s/%d/ancestors", c.baseURL, strings.ToLower(string(t)), id)
	if err := c.getJSON(ctx, url, &resp); err != nil {
		return nil, err
	}
	return resp.IDs, nil
}

// Children returns the immediate child node ids of a hierarchy node.
func (c *IdentityClient) Children(ctx context.Context, t assignment.Type, id int64) ([]int64, error) {
	var resp struct {
		IDs []int64 `json:"ids"`
	}
	url := fmt.Sprintf("%s/v1/hierarchy/%s/%d/children", c.baseURL, strings.ToLower(string(t)), id)
	if err := c.getJSON(ctx, url, &resp); err != nil {
		return nil, err
	}
	return resp.IDs, nil
}

// relationshipHolder is one user holding a relationship to the subject.
// Temporary relationships carry an expiry.
type relationshipHolder struct {
	UserID    int64      `json:"user_id"`
	ExpiresAt *time.Time `json:"expires_at"`
}

// ResolveRelationship returns the users holding a relationship to the
// subject. Expired holders, such as temporary managers past their expiry,
// are filtered out.
func (c *IdentityClient) ResolveRelationship(ctx context.Context, relationshipID, subjectUserID int64) ([]int64, error) {
	var resp struct {
		Holders []relationshipHolder `json:"holders"`
	}
	url := fmt.Sprintf("%s/v1/users/%d/relationships/%d", c.baseURL, subjectUserID, relationshipID)
	if err := c.getJSON(ctx, url, &resp); err != nil {
		return nil, err
	}

	now := time.Now()
	out := make([]int64, 0, len(resp.Holders))
	for _, h := range resp.Holders {
		if h.ExpiresAt != nil && !h.ExpiresAt.After(now) {
			continue
		}
		out = append(out, h.UserID)
	}
	return out, nil
}

func (c *IdentityClient) getJSON(ctx context.Context, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to build identity request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "identity service request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.Newf(errors.ErrCodeInternal, "identity service returned status %d for %s", resp.StatusCode, url)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to decode identity response")
	}
	return nil
}
