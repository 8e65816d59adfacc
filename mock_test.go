package metergate

import (
	"context"

	"github.com/kailas-cloud/metergate/internal/domain"
	"github.com/kailas-cloud/metergate/internal/repository/audit"
	"github.com/kailas-cloud/metergate/internal/usecase/reconcile"
)

// --- reconcileUseCase mock ---

type mockEngine struct {
	runFn           func(ctx context.Context, c reconcile.Cycle) (domain.ChargeObservation, error)
	ensureBalanceFn func(ctx context.Context, subscriptionID, accountAddress string, required, maxAttempts int) (int, error)
	lastCycle       reconcile.Cycle
}

func (m *mockEngine) Run(ctx context.Context, c reconcile.Cycle) (domain.ChargeObservation, error) {
	m.lastCycle = c
	if m.runFn != nil {
		return m.runFn(ctx, c)
	}
	return domain.ChargeObservation{}, nil
}

func (m *mockEngine) EnsureBalance(
	ctx context.Context, subscriptionID, accountAddress string, required, maxAttempts int,
) (int, error) {
	if m.ensureBalanceFn != nil {
		return m.ensureBalanceFn(ctx, subscriptionID, accountAddress, required, maxAttempts)
	}
	return required, nil
}

// --- ledgerAPI mock ---

type mockLedgerAPI struct {
	balanceFn        func(ctx context.Context, subscriptionID, accountAddress string) (int, error)
	resolveServiceFn func(ctx context.Context, subscriptionID string) (string, error)
}

func (m *mockLedgerAPI) Balance(ctx context.Context, subscriptionID, accountAddress string) (int, error) {
	if m.balanceFn != nil {
		return m.balanceFn(ctx, subscriptionID, accountAddress)
	}
	return 0, nil
}

func (m *mockLedgerAPI) ResolveService(ctx context.Context, subscriptionID string) (string, error) {
	if m.resolveServiceFn != nil {
		return m.resolveServiceFn(ctx, subscriptionID)
	}
	return "svc-1", nil
}

// --- identityAPI mock ---

type mockIdentityAPI struct {
	grantFn func(ctx context.Context, serviceID string) (domain.AccessGrant, error)
}

func (m *mockIdentityAPI) Grant(ctx context.Context, serviceID string) (domain.AccessGrant, error) {
	if m.grantFn != nil {
		return m.grantFn(ctx, serviceID)
	}
	return domain.AccessGrant{AccessToken: "jwt", InvocationURI: "https://proxy.example"}, nil
}

// --- auditTrail mock ---

type mockAuditTrail struct {
	recentFn func(ctx context.Context, subscriptionID string, n int) ([]audit.Entry, error)
	closed   bool
}

func (m *mockAuditTrail) Recent(ctx context.Context, subscriptionID string, n int) ([]audit.Entry, error) {
	if m.recentFn != nil {
		return m.recentFn(ctx, subscriptionID, n)
	}
	return nil, nil
}

func (m *mockAuditTrail) Close() { m.closed = true }
