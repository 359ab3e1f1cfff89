package sso

import "errors"

// Client-safe errors, surfaced as 400s.
var (
	// ErrTenantNotFound indicates the requested tenant does not exist
	ErrTenantNotFound = errors.New("tenant not found")

	// ErrUnsupportedProvider indicates no adapter is registered for the
	// requested provider name
	ErrUnsupportedProvider = errors.New("unsupported provider")

	// ErrSSONotConfigured indicates the tenant exists but has no usable SSO
	// configuration for the requested flow
	ErrSSONotConfigured = errors.New("sso not configured for tenant")
)

// Internal authentication failure kinds. All of them are collapsed to
// ErrAuthenticationFailed before anything reaches a client; the specific kind
// is retained only for logs and metrics.
var (
	// ErrStateExpired indicates the correlation token aged past its TTL
	ErrStateExpired = errors.New("state token expired")

	// ErrStateSignature indicates the correlation token failed its integrity
	// check
	ErrStateSignature = errors.New("state token signature invalid")

	// ErrStateMalformed indicates structurally invalid correlation token input
	ErrStateMalformed = errors.New("state token malformed")

	// ErrProviderMismatch indicates a validly signed token presented on a
	// different provider's callback path than it was minted for
	ErrProviderMismatch = errors.New("state token provider mismatch")

	// ErrProviderExchange indicates the code-for-identity exchange with the
	// external provider failed
	ErrProviderExchange = errors.New("provider exchange failed")

	// ErrInvalidAssertion indicates SAML assertion validation failed
	// (signature, expiry, or audience)
	ErrInvalidAssertion = errors.New("invalid saml assertion")
)

// Boundary errors.
var (
	// ErrAuthenticationFailed is the single opaque error returned to clients
	// for any authentication failure
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrPersistence indicates a store operation failed. Surfaced as a 500 and
	// never retried inside the gateway.
	ErrPersistence = errors.New("persistence failure")
)

// failureKind labels an internal authentication error for logs and metrics.
// Returns "unknown" for errors outside the taxonomy.
func failureKind(err error) string {
	switch {
	case errors.Is(err, ErrStateExpired):
		return "state_expired"
	case errors.Is(err, ErrStateSignature):
		return "state_signature"
	case errors.Is(err, ErrStateMalformed):
		return "state_malformed"
	case errors.Is(err, ErrProviderMismatch):
		return "provider_mismatch"
	case errors.Is(err, ErrProviderExchange):
		return "provider_exchange"
	case errors.Is(err, ErrInvalidAssertion):
		return "invalid_assertion"
	case errors.Is(err, ErrUnsupportedProvider):
		return "unsupported_provider"
	default:
		return "unknown"
	}
}
