package metergate

import (
	"github.com/kailas-cloud/metergate/internal/domain"
	"github.com/kailas-cloud/metergate/internal/usecase/reconcile"
)

// ChargeType describes how a service bills a metered call.
type ChargeType string

const (
	// ChargeFixed bills the same declared amount for every call.
	ChargeFixed ChargeType = "fixed"
	// ChargeDynamic bills a per-call amount within [MinCredits, MaxCredits].
	ChargeDynamic ChargeType = "dynamic"
)

// ChargePolicy is a service's declared billing rule.
type ChargePolicy struct {
	Type       ChargeType
	MinCredits int
	MaxCredits int
}

// CostPredictor returns the expected credit cost of a call for the given
// request parameters.
type CostPredictor func(params map[string]string) int

// ChargeObservation is the reconciliation outcome of one metered call.
type ChargeObservation struct {
	BalanceBefore  int
	BalanceAfter   int
	ExpectedCharge int
}

// ObservedCharge returns the debit inferred from the balance delta.
func (o ChargeObservation) ObservedCharge() int {
	return o.BalanceBefore - o.BalanceAfter
}

// AccessGrant is a short-lived bearer credential and invocation URI for a
// metered service. Expiry is controlled by the identity provider.
type AccessGrant struct {
	AccessToken   string
	InvocationURI string
}

// AuditEntry is one retained reconciliation outcome from the audit trail.
type AuditEntry struct {
	BalanceBefore  int
	BalanceAfter   int
	ExpectedCharge int
	ObservedCharge int
	RecordedAt     string
}

// CallSpec describes one metered call with its verification inputs.
type CallSpec struct {
	// SubscriptionID is the prepaid credit account to bill against.
	SubscriptionID string
	// AccountAddress overrides the client-level account when set.
	AccountAddress string
	// Params are the request parameters for the metered endpoint.
	Params map[string]string
	// Policy is the service's declared charging policy.
	Policy ChargePolicy
	// Predict supplies the parameter-specific expected charge. Optional;
	// fixed policies fall back to Policy.MinCredits.
	Predict CostPredictor
	// MinBalance is the balance required before invoking. Zero means
	// enough for one call at the expected charge.
	MinBalance int
	// MaxTopUps bounds the top-up loop. Zero uses the default bound.
	MaxTopUps int
}

func (s CallSpec) toCycle(account string) reconcile.Cycle {
	if s.AccountAddress != "" {
		account = s.AccountAddress
	}
	var predict domain.CostPredictor
	if s.Predict != nil {
		predict = domain.CostPredictor(s.Predict)
	}
	return reconcile.Cycle{
		SubscriptionID: s.SubscriptionID,
		AccountAddress: account,
		Params:         s.Params,
		Policy: domain.ChargePolicy{
			Type:       domain.ChargeType(s.Policy.Type),
			MinCredits: s.Policy.MinCredits,
			MaxCredits: s.Policy.MaxCredits,
		},
		Predict:    predict,
		MinBalance: s.MinBalance,
		MaxTopUps:  s.MaxTopUps,
	}
}

func fromDomainObservation(obs domain.ChargeObservation) ChargeObservation {
	return ChargeObservation{
		BalanceBefore:  obs.BalanceBefore,
		BalanceAfter:   obs.BalanceAfter,
		ExpectedCharge: obs.ExpectedCharge,
	}
}
