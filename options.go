package metergate

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	ledgerBaseURL   string
	ledgerAPIKey    string
	identityBaseURL string
	identityAPIKey  string
	account         string

	httpClient *http.Client

	settleMinDelay     time.Duration
	settlePollInterval time.Duration
	settleMaxWait      time.Duration

	auditAddrs     []string
	auditPassword  string
	auditKeyPrefix string
	auditKeep      int

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

// WithLedger sets the subscription ledger API base URL and key.
func WithLedger(baseURL, apiKey string) Option {
	return optionFunc(func(c *clientConfig) {
		c.ledgerBaseURL = baseURL
		c.ledgerAPIKey = apiKey
	})
}

// WithIdentity sets the identity provider API base URL and key.
func WithIdentity(baseURL, apiKey string) Option {
	return optionFunc(func(c *clientConfig) {
		c.identityBaseURL = baseURL
		c.identityAPIKey = apiKey
	})
}

// WithAccount sets the default consumer account address for balance queries.
func WithAccount(address string) Option {
	return optionFunc(func(c *clientConfig) {
		c.account = address
	})
}

// WithHTTPClient overrides the HTTP client used for all outbound calls.
func WithHTTPClient(hc *http.Client) Option {
	return optionFunc(func(c *clientConfig) {
		c.httpClient = hc
	})
}

// WithSettle configures the post-invocation settlement wait: the minimum
// delay before the first balance re-query, the initial poll interval, and
// the total poll bound. Defaults: 10s, 2s, 30s.
func WithSettle(minDelay, pollInterval, maxWait time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.settleMinDelay = minDelay
		c.settlePollInterval = pollInterval
		c.settleMaxWait = maxWait
	})
}

// WithAudit enables the Redis-backed charge observation audit trail.
func WithAudit(addrs []string, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.auditAddrs = addrs
		c.auditPassword = password
	})
}

// WithAuditRetention overrides the audit key prefix and per-subscription
// retention count. Defaults: "metergate:", 100.
func WithAuditRetention(keyPrefix string, keep int) Option {
	return optionFunc(func(c *clientConfig) {
		c.auditKeyPrefix = keyPrefix
		c.auditKeep = keep
	})
}

// WithLogger sets a structured logger for SDK operations.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithMetrics registers SDK operation metrics with the given registerer.
func WithMetrics(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
