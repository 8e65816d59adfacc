package domain

import (
	"errors"
	"testing"
)

func TestChargePolicy_Validate(t *testing.T) {
	tests := []struct {
		name    string
		policy  ChargePolicy
		wantErr bool
	}{
		{"fixed valid", ChargePolicy{Type: ChargeFixed, MinCredits: 2}, false},
		{"dynamic valid", ChargePolicy{Type: ChargeDynamic, MinCredits: 1, MaxCredits: 10}, false},
		{"dynamic equal bounds", ChargePolicy{Type: ChargeDynamic, MinCredits: 3, MaxCredits: 3}, false},
		{"unknown type", ChargePolicy{Type: "tiered", MinCredits: 1}, true},
		{"negative min", ChargePolicy{Type: ChargeFixed, MinCredits: -1}, true},
		{"dynamic max below min", ChargePolicy{Type: ChargeDynamic, MinCredits: 5, MaxCredits: 2}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.policy.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestExpectedCharge_PredictorWins(t *testing.T) {
	p := ChargePolicy{Type: ChargeFixed, MinCredits: 1, MaxCredits: 10}

	got := p.ExpectedCharge(func(params map[string]string) int {
		if params["name"] != "" {
			return 10
		}
		return 1
	}, map[string]string{"name": "Foo"})

	if got != 10 {
		t.Errorf("expected predictor value 10, got %d", got)
	}
}

func TestExpectedCharge_FallsBackToMin(t *testing.T) {
	p := ChargePolicy{Type: ChargeFixed, MinCredits: 2}
	if got := p.ExpectedCharge(nil, nil); got != 2 {
		t.Errorf("expected fallback 2, got %d", got)
	}
}

func TestVerifyCharge_FixedExactMatch(t *testing.T) {
	policy := ChargePolicy{Type: ChargeFixed, MinCredits: 2}
	obs := ChargeObservation{BalanceBefore: 2, BalanceAfter: 0, ExpectedCharge: 2}

	if err := VerifyCharge("sub-1", policy, obs); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestVerifyCharge_FixedMismatch(t *testing.T) {
	policy := ChargePolicy{Type: ChargeFixed, MinCredits: 2}
	obs := ChargeObservation{BalanceBefore: 5, BalanceAfter: 4, ExpectedCharge: 2}

	err := VerifyCharge("sub-1", policy, obs)
	if !errors.Is(err, ErrChargeMismatch) {
		t.Fatalf("expected ErrChargeMismatch, got %v", err)
	}

	var cme *ChargeMismatchError
	if !errors.As(err, &cme) {
		t.Fatalf("expected *ChargeMismatchError, got %T", err)
	}
	if cme.Observed != 1 || cme.ExpectedMin != 2 || cme.ExpectedMax != 2 {
		t.Errorf("unexpected diagnostics: %+v", cme)
	}
}

func TestVerifyCharge_DynamicWithinRange(t *testing.T) {
	policy := ChargePolicy{Type: ChargeDynamic, MinCredits: 1, MaxCredits: 10}

	for _, observed := range []int{1, 5, 10} {
		obs := ChargeObservation{BalanceBefore: 20, BalanceAfter: 20 - observed, ExpectedCharge: observed}
		if err := VerifyCharge("sub-1", policy, obs); err != nil {
			t.Errorf("observed %d: unexpected error: %v", observed, err)
		}
	}
}

func TestVerifyCharge_DynamicOutOfRange(t *testing.T) {
	policy := ChargePolicy{Type: ChargeDynamic, MinCredits: 1, MaxCredits: 10}

	for _, observed := range []int{0, 11} {
		obs := ChargeObservation{BalanceBefore: 20, BalanceAfter: 20 - observed, ExpectedCharge: 5}
		err := VerifyCharge("sub-1", policy, obs)
		if !errors.Is(err, ErrChargeMismatch) {
			t.Errorf("observed %d: expected ErrChargeMismatch, got %v", observed, err)
		}
	}
}

func TestVerifyCharge_InvalidPolicy(t *testing.T) {
	policy := ChargePolicy{Type: "flat"}
	err := VerifyCharge("sub-1", policy, ChargeObservation{})
	if err == nil {
		t.Fatal("expected error for invalid policy")
	}
	if errors.Is(err, ErrChargeMismatch) {
		t.Fatal("invalid policy must not report a mismatch")
	}
}

func TestObservedCharge(t *testing.T) {
	obs := ChargeObservation{BalanceBefore: 7, BalanceAfter: 5}
	if got := obs.ObservedCharge(); got != 2 {
		t.Errorf("expected 2, got %d", got)
	}
}
