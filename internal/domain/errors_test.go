package domain

import (
	"errors"
	"strings"
	"testing"
)

func TestAmbiguousBindingError(t *testing.T) {
	err := NewAmbiguousBinding("sub-1", 3)

	if !errors.Is(err, ErrAmbiguousBinding) {
		t.Fatal("expected ErrAmbiguousBinding sentinel")
	}
	if !strings.Contains(err.Error(), "sub-1") || !strings.Contains(err.Error(), "3") {
		t.Errorf("error lacks diagnostics: %v", err)
	}
}

func TestTopUpExhaustedError(t *testing.T) {
	err := &TopUpExhaustedError{SubscriptionID: "sub-1", Attempts: 5, Balance: 1, Required: 4}

	if !errors.Is(err, ErrTopUpExhausted) {
		t.Fatal("expected ErrTopUpExhausted sentinel")
	}
	if !strings.Contains(err.Error(), "1/4") {
		t.Errorf("error lacks balance state: %v", err)
	}
}

func TestInvocationError_TruncatesBody(t *testing.T) {
	err := NewInvocationError(502, []byte(strings.Repeat("x", 1024)))

	if !errors.Is(err, ErrInvocationFailed) {
		t.Fatal("expected ErrInvocationFailed sentinel")
	}
	if len(err.Error()) > 400 {
		t.Errorf("error message not truncated: %d chars", len(err.Error()))
	}

	var ie *InvocationError
	if !errors.As(err, &ie) {
		t.Fatalf("expected *InvocationError, got %T", err)
	}
	if ie.StatusCode != 502 || len(ie.Body) != 1024 {
		t.Errorf("diagnostics must keep the full body: %d status, %d bytes", ie.StatusCode, len(ie.Body))
	}
}

func TestChargeMismatchError_Messages(t *testing.T) {
	fixed := &ChargeMismatchError{SubscriptionID: "sub-1", ExpectedMin: 2, ExpectedMax: 2, Observed: 1}
	if !strings.Contains(fixed.Error(), "want 2") || strings.Contains(fixed.Error(), "..") {
		t.Errorf("fixed message should quote a single expected value: %v", fixed)
	}

	ranged := &ChargeMismatchError{SubscriptionID: "sub-1", ExpectedMin: 1, ExpectedMax: 10, Observed: 12}
	if !strings.Contains(ranged.Error(), "1..10") {
		t.Errorf("ranged message should quote the range: %v", ranged)
	}
}
