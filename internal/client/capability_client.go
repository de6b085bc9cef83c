package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/pesio-ai/be-approval-workflows/internal/errors"
	"github.com/pesio-ai/be-approval-workflows/internal/interactor"
	"github.com/pesio-ai/be-approval-workflows/internal/logger"
)

// CapabilityClient talks to the platform authorization service. It lists the
// contexts a user holds a capability in and builds full capability maps on
// top of that.
type CapabilityClient struct {
	baseURL string
	http    *http.Client
	log     *logger.Logger
}

// NewCapabilityClient creates a client against the authorization service
// base URL.
func NewCapabilityClient(baseURL string, log *logger.Logger) *CapabilityClient {
	return &CapabilityClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
		log:     log,
	}
}

type capabilityContext struct {
	Type string `json:"type"`
	ID   int64  `json:"id"`
}

// ContextsWithCapability returns the contexts where the user holds the
// capability. An unknown capability name yields an empty list.
func (c *CapabilityClient) ContextsWithCapability(ctx context.Context, capability string, userID int64) ([]interactor.Context, error) {
	url := fmt.Sprintf("%s/v1/users/%d/capabilities/%s/contexts", c.baseURL, userID, capability)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to build capability request")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "capability service request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Newf(errors.ErrCodeInternal, "capability service returned status %d for %s", resp.StatusCode, capability)
	}

	var body struct {
		Contexts []capabilityContext `json:"contexts"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to decode capability response")
	}

	out := make([]interactor.Context, 0, len(body.Contexts))
	for _, cc := range body.Contexts {
		out = append(out, interactor.Context{Type: interactor.ContextType(cc.Type), ID: cc.ID})
	}
	return out, nil
}

// MapFor precomputes the user's full capability map across every known
// capability variant.
func (c *CapabilityClient) MapFor(ctx context.Context, userID int64) (*interactor.CapabilityMap, error) {
	return interactor.BuildCapabilityMap(ctx, c, userID, interactor.AllCapabilityNames())
}

// ProviderFor returns the user's capability map as a provider for the
// interactor.
func (c *CapabilityClient) ProviderFor(ctx context.Context, userID int64) (interactor.CapabilityProvider, error) {
	return c.MapFor(ctx, userID)
}
