// Package ledger implements the HTTP client for the subscription ledger API.
// The ledger owns balances and subscription state exclusively; this client
// only reads them and requests top-up mutations.
package ledger

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
	"github.com/kailas-cloud/metergate/internal/metrics"
)

const defaultRequestTimeout = 30 * time.Second

// Client talks to the ledger REST API.
type Client struct {
	base   string
	apiKey string
	hc     *http.Client
	logger *zap.Logger
}

// Config holds ledger client settings.
type Config struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// NewClient creates a ledger client.
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

// Balance returns the current credit balance for a (account, subscription)
// pair. The balance is ground truth and is never cached.
func (c *Client) Balance(ctx context.Context, subscriptionID, accountAddress string) (int, error) {
	u := fmt.Sprintf("%s/subscriptions/%s/balance?account=%s",
		c.base, url.PathEscape(subscriptionID), url.QueryEscape(accountAddress))

	body, err := c.get(ctx, "balance", u)
	if err != nil {
		return 0, fmt.Errorf("get balance for %s: %w", subscriptionID, err)
	}

	var payload struct {
		Balance *int `json:"balance"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return 0, fmt.Errorf("get balance for %s: decode: %w: %w", subscriptionID, domain.ErrMalformedResponse, err)
	}
	if payload.Balance == nil {
		return 0, fmt.Errorf("get balance for %s: balance field missing: %w", subscriptionID, domain.ErrMalformedResponse)
	}
	if *payload.Balance < 0 {
		return 0, fmt.Errorf("get balance for %s: negative balance %d: %w",
			subscriptionID, *payload.Balance, domain.ErrMalformedResponse)
	}
	return *payload.Balance, nil
}

// OrderTopUp requests a single top-up unit be credited to the subscription.
// The new balance is not returned; callers must re-query Balance.
func (c *Client) OrderTopUp(ctx context.Context, subscriptionID string) error {
	u := fmt.Sprintf("%s/subscriptions/%s/orders", c.base, url.PathEscape(subscriptionID))

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, nil)
	if err != nil {
		return fmt.Errorf("order top-up for %s: %w", subscriptionID, err)
	}
	c.authorize(req)

	resp, err := c.hc.Do(req)
	if err != nil {
		metrics.LedgerRequestsTotal.WithLabelValues("order", "error").Inc()
		return fmt.Errorf("order top-up for %s: %w: %w", subscriptionID, domain.ErrLedgerUnreachable, err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	metrics.LedgerRequestDuration.WithLabelValues("order").Observe(time.Since(start).Seconds())

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.LedgerRequestsTotal.WithLabelValues("order", "error").Inc()
		return fmt.Errorf("order top-up for %s: status %d: %w",
			subscriptionID, resp.StatusCode, domain.ErrLedgerUnreachable)
	}

	metrics.LedgerRequestsTotal.WithLabelValues("order", "success").Inc()
	metrics.TopUpOrdersTotal.Inc()
	c.logger.Debug("Top-up ordered", zap.String("subscription", subscriptionID))
	return nil
}

// Services returns the service identifiers bound to a subscription.
func (c *Client) Services(ctx context.Context, subscriptionID string) ([]string, error) {
	u := fmt.Sprintf("%s/subscriptions/%s/services", c.base, url.PathEscape(subscriptionID))

	body, err := c.get(ctx, "services", u)
	if err != nil {
		return nil, fmt.Errorf("list services for %s: %w", subscriptionID, err)
	}

	var services []string
	if err := json.Unmarshal(body, &services); err != nil {
		return nil, fmt.Errorf("list services for %s: decode: %w: %w",
			subscriptionID, domain.ErrMalformedResponse, err)
	}
	return services, nil
}

// ResolveService returns the single service bound to the subscription.
// Zero or multiple bindings violate a hard precondition of the workflow.
func (c *Client) ResolveService(ctx context.Context, subscriptionID string) (string, error) {
	services, err := c.Services(ctx, subscriptionID)
	if err != nil {
		return "", err
	}
	if len(services) != 1 {
		return "", domain.NewAmbiguousBinding(subscriptionID, len(services))
	}
	return services[0], nil
}

func (c *Client) get(ctx context.Context, op, u string) ([]byte, error) {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	c.authorize(req)

	resp, err := c.hc.Do(req)
	if err != nil {
		metrics.LedgerRequestsTotal.WithLabelValues(op, "error").Inc()
		return nil, fmt.Errorf("%w: %w", domain.ErrLedgerUnreachable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.LedgerRequestsTotal.WithLabelValues(op, "error").Inc()
		return nil, fmt.Errorf("%w: read body: %w", domain.ErrLedgerUnreachable, err)
	}

	metrics.LedgerRequestDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.LedgerRequestsTotal.WithLabelValues(op, "error").Inc()
		return nil, fmt.Errorf("status %d: %w", resp.StatusCode, domain.ErrLedgerUnreachable)
	}

	metrics.LedgerRequestsTotal.WithLabelValues(op, "success").Inc()
	return body, nil
}

func (c *Client) authorize(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	req.Header.Set("Accept", "application/json")
}
