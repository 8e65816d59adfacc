package reconcile

import (
	"context"

	"github.com/kailas-cloud/metergate/internal/domain"
)

// LedgerClient is the ledger contract the engine drives. Balances are ground
// truth and are re-fetched on every call, never cached.
type LedgerClient interface {
	Balance(ctx context.Context, subscriptionID, accountAddress string) (int, error)
	OrderTopUp(ctx context.Context, subscriptionID string) error
	ResolveService(ctx context.Context, subscriptionID string) (string, error)
}

// GrantIssuer exchanges a service identifier for an access grant.
type GrantIssuer interface {
	Grant(ctx context.Context, serviceID string) (domain.AccessGrant, error)
}

// Invoker performs the metered call with the grant attached.
type Invoker interface {
	Invoke(ctx context.Context, grant domain.AccessGrant, params map[string]string) (domain.InvocationResult, error)
}

// Recorder persists charge observations for policy-level alerting.
// Recording is best effort and never fails a cycle.
type Recorder interface {
	Record(ctx context.Context, subscriptionID string, obs domain.ChargeObservation) error
}
