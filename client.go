// Package metergate coordinates metered access to paywalled services:
// it ensures a prepaid credit balance, resolves an access grant, invokes
// the endpoint and reconciles the ledger debit against the service's
// charging policy.
package metergate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kailas-cloud/metergate/internal/domain"
	"github.com/kailas-cloud/metergate/internal/repository/audit"
	"github.com/kailas-cloud/metergate/internal/transport/identity"
	"github.com/kailas-cloud/metergate/internal/transport/ledger"
	"github.com/kailas-cloud/metergate/internal/transport/metered"
	"github.com/kailas-cloud/metergate/internal/usecase/reconcile"
)

// Внутренние интерфейсы для подмены в тестах.
type reconcileUseCase interface {
	Run(ctx context.Context, c reconcile.Cycle) (domain.ChargeObservation, error)
	EnsureBalance(ctx context.Context, subscriptionID, accountAddress string, required, maxAttempts int) (int, error)
}

type ledgerAPI interface {
	Balance(ctx context.Context, subscriptionID, accountAddress string) (int, error)
	ResolveService(ctx context.Context, subscriptionID string) (string, error)
}

type identityAPI interface {
	Grant(ctx context.Context, serviceID string) (domain.AccessGrant, error)
}

type auditTrail interface {
	Recent(ctx context.Context, subscriptionID string, n int) ([]audit.Entry, error)
	Close()
}

// Client is the metergate SDK entry point.
type Client struct {
	engine   reconcileUseCase
	ledger   ledgerAPI
	identity identityAPI
	audit    auditTrail
	account  string
	obs      *observer
}

// New creates a metergate Client.
func New(_ context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{}
	for _, o := range opts {
		o.apply(cfg)
	}

	if cfg.ledgerBaseURL == "" {
		return nil, errors.New("metergate: ledger base URL required (use WithLedger)")
	}
	if cfg.identityBaseURL == "" {
		return nil, errors.New("metergate: identity base URL required (use WithIdentity)")
	}

	ledgerClient := ledger.NewClient(ledger.Config{
		BaseURL:    cfg.ledgerBaseURL,
		APIKey:     cfg.ledgerAPIKey,
		HTTPClient: cfg.httpClient,
	})
	identityClient := identity.NewClient(identity.Config{
		BaseURL:    cfg.identityBaseURL,
		APIKey:     cfg.identityAPIKey,
		HTTPClient: cfg.httpClient,
	})
	invoker := metered.NewInvoker(metered.Config{
		HTTPClient: cfg.httpClient,
	})

	engine := reconcile.New(ledgerClient, identityClient, invoker).
		WithSettlePolicy(reconcile.SettlePolicy{
			MinDelay:     cfg.settleMinDelay,
			PollInterval: cfg.settlePollInterval,
			MaxWait:      cfg.settleMaxWait,
		})

	var auditStore *audit.Store
	if len(cfg.auditAddrs) > 0 {
		var err error
		auditStore, err = audit.NewStore(audit.Config{
			Addrs:     cfg.auditAddrs,
			Password:  cfg.auditPassword,
			KeyPrefix: cfg.auditKeyPrefix,
			Keep:      cfg.auditKeep,
		})
		if err != nil {
			return nil, fmt.Errorf("metergate: create audit store: %w", err)
		}
		engine = engine.WithRecorder(auditStore)
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		if auditStore != nil {
			auditStore.Close()
		}
		return nil, err
	}

	c := &Client{
		engine:   engine,
		ledger:   ledgerClient,
		identity: identityClient,
		account:  cfg.account,
		obs:      obs,
	}
	if auditStore != nil {
		c.audit = auditStore
	}
	return c, nil
}

// Close releases all resources.
func (c *Client) Close() {
	if c.audit != nil {
		c.audit.Close()
	}
}

// RunMeteredCall executes one reconciliation cycle: ensure balance, resolve
// access, invoke the endpoint, wait out settlement and verify the debit.
// On ErrChargeMismatch the observation is still returned so callers can
// choose between alerting and hard-stop.
func (c *Client) RunMeteredCall(ctx context.Context, spec CallSpec) (_ ChargeObservation, err error) {
	start := time.Now()
	defer func() { c.obs.observe("run_metered_call", start, err) }()

	obs, err := c.engine.Run(ctx, spec.toCycle(c.account))
	if err != nil {
		return fromDomainObservation(obs), fmt.Errorf("run metered call: %w", err)
	}
	return fromDomainObservation(obs), nil
}

// Balance returns the current credit balance for a subscription under the
// client's account. Never cached.
func (c *Client) Balance(ctx context.Context, subscriptionID string) (_ int, err error) {
	start := time.Now()
	defer func() { c.obs.observe("balance", start, err) }()

	bal, err := c.ledger.Balance(ctx, subscriptionID, c.account)
	if err != nil {
		return 0, fmt.Errorf("balance: %w", err)
	}
	return bal, nil
}

// EnsureBalance tops up the subscription until it holds at least required
// credits, within maxAttempts orders.
func (c *Client) EnsureBalance(ctx context.Context, subscriptionID string, required, maxAttempts int) (_ int, err error) {
	start := time.Now()
	defer func() { c.obs.observe("ensure_balance", start, err) }()

	bal, err := c.engine.EnsureBalance(ctx, subscriptionID, c.account, required, maxAttempts)
	if err != nil {
		return bal, fmt.Errorf("ensure balance: %w", err)
	}
	return bal, nil
}

// ResolveGrant resolves the single service bound to a subscription and
// exchanges it for an access grant. Useful for invoking the paywalled
// endpoint with a protocol-specific client instead of RunMeteredCall.
func (c *Client) ResolveGrant(ctx context.Context, subscriptionID string) (_ AccessGrant, err error) {
	start := time.Now()
	defer func() { c.obs.observe("resolve_grant", start, err) }()

	serviceID, err := c.ledger.ResolveService(ctx, subscriptionID)
	if err != nil {
		return AccessGrant{}, fmt.Errorf("resolve grant: %w", err)
	}
	grant, err := c.identity.Grant(ctx, serviceID)
	if err != nil {
		return AccessGrant{}, fmt.Errorf("resolve grant: %w", err)
	}
	return AccessGrant{AccessToken: grant.AccessToken, InvocationURI: grant.InvocationURI}, nil
}

// RecentObservations returns up to n audited observations for the
// subscription, newest first. Requires WithAudit.
func (c *Client) RecentObservations(ctx context.Context, subscriptionID string, n int) (_ []AuditEntry, err error) {
	start := time.Now()
	defer func() { c.obs.observe("recent_observations", start, err) }()

	if c.audit == nil {
		return nil, errors.New("metergate: audit trail not configured (use WithAudit)")
	}

	entries, err := c.audit.Recent(ctx, subscriptionID, n)
	if err != nil {
		return nil, fmt.Errorf("recent observations: %w", err)
	}

	out := make([]AuditEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, AuditEntry{
			BalanceBefore:  e.BalanceBefore,
			BalanceAfter:   e.BalanceAfter,
			ExpectedCharge: e.ExpectedCharge,
			ObservedCharge: e.ObservedCharge,
			RecordedAt:     e.RecordedAt.UTC().Format(time.RFC3339),
		})
	}
	return out, nil
}
