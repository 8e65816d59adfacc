package domain

// Subscription identifies a prepaid credit account held by an account address.
// A subscription is bound to exactly one service; the binding is resolved at
// cycle start and violations surface as AmbiguousBindingError.
type Subscription struct {
	ID             string
	AccountAddress string
}

// AccessGrant is a short-lived bearer credential scoped to one service.
// It is never persisted; expiry is controlled by the identity provider.
type AccessGrant struct {
	AccessToken   string
	InvocationURI string
}

// InvocationResult carries the metered endpoint's response. Credit cost is
// never read from it; cost is inferred from ledger balance deltas only.
type InvocationResult struct {
	StatusCode int
	Body       []byte
}
