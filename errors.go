package metergate

import "github.com/kailas-cloud/metergate/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrLedgerUnreachable   = domain.ErrLedgerUnreachable
	ErrMalformedResponse   = domain.ErrMalformedResponse
	ErrAmbiguousBinding    = domain.ErrAmbiguousBinding
	ErrAuthorizationDenied = domain.ErrAuthorizationDenied
	ErrInvocationFailed    = domain.ErrInvocationFailed
	ErrTopUpIneffective    = domain.ErrTopUpIneffective
	ErrTopUpExhausted      = domain.ErrTopUpExhausted
	ErrChargeMismatch      = domain.ErrChargeMismatch
	ErrCycleTimeout        = domain.ErrCycleTimeout
)
