package reconcile

import (
	"context"
	"sync"
	"time"

	"github.com/kailas-cloud/metergate/internal/domain"
)

// --- LedgerClient mock ---

type mockLedger struct {
	balanceFn        func(ctx context.Context, subscriptionID, accountAddress string) (int, error)
	orderTopUpFn     func(ctx context.Context, subscriptionID string) error
	resolveServiceFn func(ctx context.Context, subscriptionID string) (string, error)

	balanceCalls int
	orderCalls   int
}

func (m *mockLedger) Balance(ctx context.Context, subscriptionID, accountAddress string) (int, error) {
	m.balanceCalls++
	if m.balanceFn != nil {
		return m.balanceFn(ctx, subscriptionID, accountAddress)
	}
	return 0, nil
}

func (m *mockLedger) OrderTopUp(ctx context.Context, subscriptionID string) error {
	m.orderCalls++
	if m.orderTopUpFn != nil {
		return m.orderTopUpFn(ctx, subscriptionID)
	}
	return nil
}

func (m *mockLedger) ResolveService(ctx context.Context, subscriptionID string) (string, error) {
	if m.resolveServiceFn != nil {
		return m.resolveServiceFn(ctx, subscriptionID)
	}
	return "svc-1", nil
}

// --- GrantIssuer mock ---

type mockIdentity struct {
	grantFn func(ctx context.Context, serviceID string) (domain.AccessGrant, error)
}

func (m *mockIdentity) Grant(ctx context.Context, serviceID string) (domain.AccessGrant, error) {
	if m.grantFn != nil {
		return m.grantFn(ctx, serviceID)
	}
	return domain.AccessGrant{AccessToken: "jwt", InvocationURI: "https://proxy.example/call"}, nil
}

// --- Invoker mock ---

type mockInvoker struct {
	invokeFn func(ctx context.Context, grant domain.AccessGrant, params map[string]string) (domain.InvocationResult, error)
	calls    int
}

func (m *mockInvoker) Invoke(
	ctx context.Context, grant domain.AccessGrant, params map[string]string,
) (domain.InvocationResult, error) {
	m.calls++
	if m.invokeFn != nil {
		return m.invokeFn(ctx, grant, params)
	}
	return domain.InvocationResult{StatusCode: 200, Body: []byte("ok")}, nil
}

// --- Recorder mock ---

type mockRecorder struct {
	recordFn func(ctx context.Context, subscriptionID string, obs domain.ChargeObservation) error
	recorded []domain.ChargeObservation
}

func (m *mockRecorder) Record(ctx context.Context, subscriptionID string, obs domain.ChargeObservation) error {
	m.recorded = append(m.recorded, obs)
	if m.recordFn != nil {
		return m.recordFn(ctx, subscriptionID, obs)
	}
	return nil
}

// fakeLedger is a stateful in-memory ledger for end-to-end scenarios.
// A top-up credits topUpAmount; each invocation debits charge after
// settleLatency has elapsed since the invocation was registered.
type fakeLedger struct {
	mu          sync.Mutex
	balance     int
	topUpAmount int
	charge      int

	settleLatency time.Duration
	debitAt       time.Time
	pendingDebit  bool

	orderCalls int
}

func (f *fakeLedger) Balance(_ context.Context, _, _ string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.applyDebit()
	return f.balance, nil
}

func (f *fakeLedger) OrderTopUp(_ context.Context, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orderCalls++
	f.balance += f.topUpAmount
	return nil
}

func (f *fakeLedger) ResolveService(_ context.Context, _ string) (string, error) {
	return "svc-1", nil
}

// registerInvocation schedules the debit; it becomes visible to Balance
// only after settleLatency.
func (f *fakeLedger) registerInvocation() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.debitAt = time.Now().Add(f.settleLatency)
	f.pendingDebit = true
}

func (f *fakeLedger) applyDebit() {
	if f.pendingDebit && time.Now().After(f.debitAt) {
		f.balance -= f.charge
		f.pendingDebit = false
	}
}
