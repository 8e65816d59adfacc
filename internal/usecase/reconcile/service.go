// Package reconcile implements the credit reconciliation cycle:
// ensure balance, resolve access, invoke, wait for settlement, verify the
// observed debit against the service's charging policy.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/metergate/internal/domain"
	"github.com/kailas-cloud/metergate/internal/metrics"
)

const (
	defaultMaxTopUps = 5

	// Ledger settlement defaults. The debit may land asynchronously
	// relative to the HTTP response, so the engine waits a minimum delay
	// and then polls with backoff until a debit is visible.
	defaultSettleMinDelay     = 10 * time.Second
	defaultSettlePollInterval = 2 * time.Second
	defaultSettleMaxWait      = 30 * time.Second
)

// SettlePolicy controls the post-invocation wait before verification.
// Settlement latency is an external, variable property of the ledger.
type SettlePolicy struct {
	// MinDelay is always waited before the first post-call balance query.
	MinDelay time.Duration
	// PollInterval is the initial re-query interval; it doubles each poll.
	PollInterval time.Duration
	// MaxWait bounds the total time spent polling after MinDelay.
	MaxWait time.Duration
}

func (p SettlePolicy) withDefaults() SettlePolicy {
	if p.MinDelay <= 0 {
		p.MinDelay = defaultSettleMinDelay
	}
	if p.PollInterval <= 0 {
		p.PollInterval = defaultSettlePollInterval
	}
	if p.MaxWait <= 0 {
		p.MaxWait = defaultSettleMaxWait
	}
	return p
}

// Cycle describes one reconciliation cycle.
type Cycle struct {
	SubscriptionID string
	AccountAddress string
	Params         map[string]string
	Policy         domain.ChargePolicy
	Predict        domain.CostPredictor
	// MinBalance is the balance required before invoking. Zero means
	// "enough for one call at the expected charge".
	MinBalance int
	// MaxTopUps bounds the top-up loop. Zero uses the default bound.
	MaxTopUps int
}

// Service is the reconciliation engine. One cycle is a single logical
// thread of control; concurrent cycles for independent subscribers share
// no state here.
type Service struct {
	ledger   LedgerClient
	identity GrantIssuer
	invoker  Invoker
	recorder Recorder
	settle   SettlePolicy
	logger   *zap.Logger
}

// New creates a reconciliation engine.
func New(ledger LedgerClient, identity GrantIssuer, invoker Invoker) *Service {
	return &Service{
		ledger:   ledger,
		identity: identity,
		invoker:  invoker,
		settle:   SettlePolicy{}.withDefaults(),
		logger:   zap.NewNop(),
	}
}

// WithSettlePolicy overrides the settlement wait policy.
func (s *Service) WithSettlePolicy(p SettlePolicy) *Service {
	s.settle = p.withDefaults()
	return s
}

// WithRecorder attaches a charge-observation recorder. nil disables recording.
func (s *Service) WithRecorder(r Recorder) *Service {
	s.recorder = r
	return s
}

// WithLogger sets the engine logger.
func (s *Service) WithLogger(l *zap.Logger) *Service {
	if l != nil {
		s.logger = l
	}
	return s
}

// EnsureBalance tops up the subscription until the balance reaches required,
// bounded by maxAttempts orders. Each top-up must strictly increase the
// balance; a silent no-op order fails the loop. Returns the final balance.
func (s *Service) EnsureBalance(
	ctx context.Context, subscriptionID, accountAddress string, required, maxAttempts int,
) (int, error) {
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxTopUps
	}

	balance, err := s.ledger.Balance(ctx, subscriptionID, accountAddress)
	if err != nil {
		return 0, cycleErr(fmt.Errorf("ensure balance: %w", err))
	}

	attempts := 0
	for balance < required {
		if attempts >= maxAttempts {
			return balance, &domain.TopUpExhaustedError{
				SubscriptionID: subscriptionID,
				Attempts:       attempts,
				Balance:        balance,
				Required:       required,
			}
		}

		s.logger.Info("Balance below threshold, ordering top-up",
			zap.String("subscription", subscriptionID),
			zap.Int("balance", balance),
			zap.Int("required", required),
			zap.Int("attempt", attempts+1),
		)

		if err := s.ledger.OrderTopUp(ctx, subscriptionID); err != nil {
			return balance, cycleErr(fmt.Errorf("ensure balance: %w", err))
		}
		attempts++

		newBalance, err := s.ledger.Balance(ctx, subscriptionID, accountAddress)
		if err != nil {
			return balance, cycleErr(fmt.Errorf("ensure balance: %w", err))
		}
		if newBalance <= balance {
			return newBalance, fmt.Errorf(
				"ensure balance: subscription %s stayed at %d credits after order: %w",
				subscriptionID, newBalance, domain.ErrTopUpIneffective)
		}
		balance = newBalance
	}

	return balance, nil
}

// Run executes one reconciliation cycle and returns the charge observation.
// On ErrChargeMismatch the observation is still returned so callers can
// choose between alerting and hard-stop.
func (s *Service) Run(ctx context.Context, c Cycle) (domain.ChargeObservation, error) {
	obs, err := s.run(ctx, c)

	status := "success"
	switch {
	case errors.Is(err, domain.ErrChargeMismatch):
		status = "mismatch"
	case err != nil:
		status = "error"
	}
	metrics.CyclesTotal.WithLabelValues(status).Inc()

	return obs, err
}

func (s *Service) run(ctx context.Context, c Cycle) (domain.ChargeObservation, error) {
	if err := c.Policy.Validate(); err != nil {
		return domain.ChargeObservation{}, fmt.Errorf("run cycle: %w", err)
	}

	expected := c.Policy.ExpectedCharge(c.Predict, c.Params)
	required := c.MinBalance
	if required <= 0 {
		required = expected
	}

	// 1. Ensure a sufficient balance before touching the endpoint.
	if _, err := s.EnsureBalance(ctx, c.SubscriptionID, c.AccountAddress, required, c.MaxTopUps); err != nil {
		return domain.ChargeObservation{}, err
	}

	// 2. Resolve the single bound service, then an access grant for it.
	serviceID, err := s.ledger.ResolveService(ctx, c.SubscriptionID)
	if err != nil {
		return domain.ChargeObservation{}, cycleErr(fmt.Errorf("run cycle: %w", err))
	}
	grant, err := s.identity.Grant(ctx, serviceID)
	if err != nil {
		return domain.ChargeObservation{}, cycleErr(fmt.Errorf("run cycle: %w", err))
	}

	// 3. Capture balanceBefore just prior to invocation; time has passed
	// since EnsureBalance and external consumers may also be debiting.
	before, err := s.ledger.Balance(ctx, c.SubscriptionID, c.AccountAddress)
	if err != nil {
		return domain.ChargeObservation{}, cycleErr(fmt.Errorf("run cycle: %w", err))
	}

	result, err := s.invoker.Invoke(ctx, grant, c.Params)
	if err != nil {
		return domain.ChargeObservation{}, cycleErr(fmt.Errorf("run cycle: %w", err))
	}
	s.logger.Debug("Invocation completed",
		zap.String("subscription", c.SubscriptionID),
		zap.String("service", serviceID),
		zap.Int("status", result.StatusCode),
	)

	// 4. Wait out ledger settlement before trusting the balance again.
	after, err := s.settleBalance(ctx, c.SubscriptionID, c.AccountAddress, before)
	if err != nil {
		return domain.ChargeObservation{}, err
	}

	// 5. Verify the observed debit against the charging policy.
	obs := domain.ChargeObservation{
		BalanceBefore:  before,
		BalanceAfter:   after,
		ExpectedCharge: expected,
	}
	s.record(ctx, c.SubscriptionID, obs)

	if err := domain.VerifyCharge(c.SubscriptionID, c.Policy, obs); err != nil {
		if errors.Is(err, domain.ErrChargeMismatch) {
			metrics.ChargeMismatchesTotal.Inc()
			s.logger.Warn("Charge verification failed",
				zap.String("subscription", c.SubscriptionID),
				zap.Int("observed", obs.ObservedCharge()),
				zap.Int("expected", expected),
			)
		}
		return obs, err
	}

	return obs, nil
}

// settleBalance waits the minimum settle delay, then polls the balance with
// doubling intervals until a debit is visible or the max wait elapses. The
// last queried balance is returned either way; verification decides whether
// a zero debit is acceptable.
func (s *Service) settleBalance(
	ctx context.Context, subscriptionID, accountAddress string, before int,
) (int, error) {
	start := time.Now()
	defer func() { metrics.SettleWaitSeconds.Observe(time.Since(start).Seconds()) }()

	if err := s.wait(ctx, s.settle.MinDelay); err != nil {
		return 0, err
	}

	balance, err := s.ledger.Balance(ctx, subscriptionID, accountAddress)
	if err != nil {
		return 0, cycleErr(fmt.Errorf("settle: %w", err))
	}

	interval := s.settle.PollInterval
	deadline := time.Now().Add(s.settle.MaxWait)
	for balance >= before && time.Now().Before(deadline) {
		if err := s.wait(ctx, interval); err != nil {
			return 0, err
		}
		interval *= 2

		balance, err = s.ledger.Balance(ctx, subscriptionID, accountAddress)
		if err != nil {
			return 0, cycleErr(fmt.Errorf("settle: %w", err))
		}
	}

	return balance, nil
}

// wait is a cancellable timed wait, never a busy loop.
func (s *Service) wait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return cycleErr(fmt.Errorf("settle wait: %w", ctx.Err()))
	case <-timer.C:
		return nil
	}
}

func (s *Service) record(ctx context.Context, subscriptionID string, obs domain.ChargeObservation) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.Record(ctx, subscriptionID, obs); err != nil {
		s.logger.Warn("Failed to record charge observation",
			zap.String("subscription", subscriptionID),
			zap.Error(err),
		)
	}
}

// cycleErr maps deadline expiry to the cycle timeout sentinel. Top-ups
// already ordered are not rolled back on timeout.
func cycleErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", domain.ErrCycleTimeout, err)
	}
	return err
}
