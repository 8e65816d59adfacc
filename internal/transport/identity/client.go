// Package identity implements the token exchange against the identity
// provider: a service identifier goes in, a short-lived bearer token and
// invocation URI come out.
package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/metergate/internal/domain"
)

const defaultRequestTimeout = 30 * time.Second

// Client talks to the identity provider API.
type Client struct {
	base   string
	apiKey string
	hc     *http.Client
	logger *zap.Logger
}

// Config holds identity client settings.
type Config struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// NewClient creates an identity client.
func NewClient(cfg Config) *Client {
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: defaultRequestTimeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		base:   cfg.BaseURL,
		apiKey: cfg.APIKey,
		hc:     hc,
		logger: logger,
	}
}

// Grant exchanges a service identifier for an access grant. The grant's
// expiry is controlled by the identity provider and is not tracked here.
func (c *Client) Grant(ctx context.Context, serviceID string) (domain.AccessGrant, error) {
	u := fmt.Sprintf("%s/services/%s/token", c.base, url.PathEscape(serviceID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return domain.AccessGrant{}, fmt.Errorf("get grant for %s: %w", serviceID, err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return domain.AccessGrant{}, fmt.Errorf("get grant for %s: %w: %w",
			serviceID, domain.ErrAuthorizationDenied, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.AccessGrant{}, fmt.Errorf("get grant for %s: read body: %w: %w",
			serviceID, domain.ErrAuthorizationDenied, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return domain.AccessGrant{}, fmt.Errorf("get grant for %s: status %d: %w",
			serviceID, resp.StatusCode, domain.ErrAuthorizationDenied)
	}

	var payload struct {
		AccessToken   string `json:"accessToken"`
		InvocationURI string `json:"invocationUri"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return domain.AccessGrant{}, fmt.Errorf("get grant for %s: decode: %w: %w",
			serviceID, domain.ErrMalformedResponse, err)
	}
	if payload.AccessToken == "" {
		return domain.AccessGrant{}, fmt.Errorf("get grant for %s: accessToken missing: %w",
			serviceID, domain.ErrMalformedResponse)
	}
	if payload.InvocationURI == "" {
		return domain.AccessGrant{}, fmt.Errorf("get grant for %s: invocationUri missing: %w",
			serviceID, domain.ErrMalformedResponse)
	}

	c.logger.Debug("Access grant resolved", zap.String("service", serviceID))
	return domain.AccessGrant{
		AccessToken:   payload.AccessToken,
		InvocationURI: payload.InvocationURI,
	}, nil
}
