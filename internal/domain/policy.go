package domain

import (
	"fmt"
)

// ChargeType describes how a service bills a metered call.
type ChargeType string

const (
	// ChargeFixed bills the same declared amount for every call.
	ChargeFixed ChargeType = "fixed"
	// ChargeDynamic bills a per-call amount within [MinCredits, MaxCredits].
	ChargeDynamic ChargeType = "dynamic"
)

// ChargePolicy is a service's declared billing rule. For fixed policies
// MinCredits is the flat amount unless a predictor supplies a per-request
// value; for dynamic policies the observed debit must fall within the range.
type ChargePolicy struct {
	Type       ChargeType
	MinCredits int
	MaxCredits int
}

// CostPredictor returns the expected credit cost of a call for the given
// request parameters. Charge rules are a property of the external service,
// so prediction is supplied by the caller rather than hardcoded.
type CostPredictor func(params map[string]string) int

// Validate checks the policy for internal consistency.
func (p ChargePolicy) Validate() error {
	switch p.Type {
	case ChargeFixed, ChargeDynamic:
	default:
		return fmt.Errorf("charge type must be %q or %q, got %q", ChargeFixed, ChargeDynamic, p.Type)
	}
	if p.MinCredits < 0 {
		return fmt.Errorf("min credits must be non-negative, got %d", p.MinCredits)
	}
	if p.Type == ChargeDynamic && p.MaxCredits < p.MinCredits {
		return fmt.Errorf("max credits %d below min credits %d", p.MaxCredits, p.MinCredits)
	}
	return nil
}

// ExpectedCharge resolves the expected cost of a call: the predictor's
// parameter-specific value when one is supplied, MinCredits otherwise.
func (p ChargePolicy) ExpectedCharge(predict CostPredictor, params map[string]string) int {
	if predict != nil {
		return predict(params)
	}
	return p.MinCredits
}

// ChargeObservation is the before/after balance pair a cycle reconciles.
// Derived, used only for verification.
type ChargeObservation struct {
	BalanceBefore  int
	BalanceAfter   int
	ExpectedCharge int
}

// ObservedCharge returns the debit inferred from the balance delta.
func (o ChargeObservation) ObservedCharge() int {
	return o.BalanceBefore - o.BalanceAfter
}

// VerifyCharge checks an observation against the policy. Fixed policies
// require an exact match with the expected charge; dynamic policies require
// the observed debit to lie within [MinCredits, MaxCredits]. Mismatch is a
// verification failure, not a crash condition: callers may log and continue.
func VerifyCharge(subscriptionID string, policy ChargePolicy, obs ChargeObservation) error {
	if err := policy.Validate(); err != nil {
		return fmt.Errorf("verify charge: %w", err)
	}

	observed := obs.ObservedCharge()
	switch policy.Type {
	case ChargeDynamic:
		if observed < policy.MinCredits || observed > policy.MaxCredits {
			return &ChargeMismatchError{
				SubscriptionID: subscriptionID,
				ExpectedMin:    policy.MinCredits,
				ExpectedMax:    policy.MaxCredits,
				Observed:       observed,
			}
		}
	default:
		if observed != obs.ExpectedCharge {
			return &ChargeMismatchError{
				SubscriptionID: subscriptionID,
				ExpectedMin:    obs.ExpectedCharge,
				ExpectedMax:    obs.ExpectedCharge,
				Observed:       observed,
			}
		}
	}
	return nil
}
