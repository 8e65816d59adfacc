package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrLedgerUnreachable signals a failed ledger round trip (network error or non-2xx).
	ErrLedgerUnreachable = errors.New("ledger unreachable")
	// ErrMalformedResponse signals a response missing an expected field.
	ErrMalformedResponse = errors.New("malformed response")
	// ErrAmbiguousBinding signals a subscription bound to zero or multiple services.
	ErrAmbiguousBinding = errors.New("ambiguous service binding")
	// ErrAuthorizationDenied signals a rejected token exchange.
	ErrAuthorizationDenied = errors.New("authorization denied")
	// ErrInvocationFailed signals a non-2xx response from the metered endpoint.
	ErrInvocationFailed = errors.New("invocation failed")
	// ErrTopUpIneffective signals a top-up order that did not increase the balance.
	ErrTopUpIneffective = errors.New("top-up ineffective")
	// ErrTopUpExhausted signals that the top-up attempt bound was reached below threshold.
	ErrTopUpExhausted = errors.New("top-up attempts exhausted")
	// ErrChargeMismatch signals an observed debit outside the charging policy.
	ErrChargeMismatch = errors.New("charge mismatch")
	// ErrCycleTimeout signals that the cycle deadline expired.
	ErrCycleTimeout = errors.New("cycle deadline exceeded")
)

// AmbiguousBindingError wraps ErrAmbiguousBinding with the observed service count.
type AmbiguousBindingError struct {
	SubscriptionID string
	Services       int
}

func (e *AmbiguousBindingError) Error() string {
	return fmt.Sprintf("%s: subscription %s has %d services, want 1",
		ErrAmbiguousBinding.Error(), e.SubscriptionID, e.Services)
}

func (e *AmbiguousBindingError) Unwrap() error { return ErrAmbiguousBinding }

// NewAmbiguousBinding creates an ambiguous binding error.
func NewAmbiguousBinding(subscriptionID string, services int) error {
	return &AmbiguousBindingError{SubscriptionID: subscriptionID, Services: services}
}

// TopUpExhaustedError wraps ErrTopUpExhausted with the final loop state.
type TopUpExhaustedError struct {
	SubscriptionID string
	Attempts       int
	Balance        int
	Required       int
}

func (e *TopUpExhaustedError) Error() string {
	return fmt.Sprintf("%s: subscription %s at %d/%d credits after %d top-ups",
		ErrTopUpExhausted.Error(), e.SubscriptionID, e.Balance, e.Required, e.Attempts)
}

func (e *TopUpExhaustedError) Unwrap() error { return ErrTopUpExhausted }

// InvocationError wraps ErrInvocationFailed with status and body for diagnostics.
type InvocationError struct {
	StatusCode int
	Body       []byte
}

func (e *InvocationError) Error() string {
	body := string(e.Body)
	if len(body) > 256 {
		body = body[:256]
	}
	return fmt.Sprintf("%s: status %d: %s", ErrInvocationFailed.Error(), e.StatusCode, body)
}

func (e *InvocationError) Unwrap() error { return ErrInvocationFailed }

// NewInvocationError creates an invocation error from a non-2xx response.
func NewInvocationError(statusCode int, body []byte) error {
	return &InvocationError{StatusCode: statusCode, Body: body}
}

// ChargeMismatchError wraps ErrChargeMismatch with expected-vs-observed values.
// ExpectedMin equals ExpectedMax for fixed policies.
type ChargeMismatchError struct {
	SubscriptionID string
	ExpectedMin    int
	ExpectedMax    int
	Observed       int
}

func (e *ChargeMismatchError) Error() string {
	if e.ExpectedMin == e.ExpectedMax {
		return fmt.Sprintf("%s: subscription %s charged %d credits, want %d",
			ErrChargeMismatch.Error(), e.SubscriptionID, e.Observed, e.ExpectedMin)
	}
	return fmt.Sprintf("%s: subscription %s charged %d credits, want %d..%d",
		ErrChargeMismatch.Error(), e.SubscriptionID, e.Observed, e.ExpectedMin, e.ExpectedMax)
}

func (e *ChargeMismatchError) Unwrap() error { return ErrChargeMismatch }
