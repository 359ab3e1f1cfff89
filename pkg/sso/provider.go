package sso

import (
	"context"
	"sort"
	"time"

	"github.com/platinummonkey/fedgate/pkg/auth"
)

// Well-known OAuth2 provider names
const (
	ProviderGoogle    = "google"
	ProviderMicrosoft = "microsoft"
	ProviderGitHub    = "github"
)

// ExternalIdentity is the normalized result of a provider callback. It is
// transient: produced by an adapter, consumed immediately by the resolver,
// and never persisted or logged in full.
type ExternalIdentity struct {
	Email     string
	FirstName string
	LastName  string
	SubjectID string // provider-side stable identifier, when available
}

// OAuthInitiation is the result of starting an OAuth2 login
type OAuthInitiation struct {
	AuthURL string `json:"auth_url"`
	State   string `json:"state"`
}

// SAMLInitiation is the result of starting a SAML login
type SAMLInitiation struct {
	SAMLRequest string `json:"saml_request"`
	RedirectURL string `json:"redirect_url"`
}

// TenantStore provides read access to tenants
type TenantStore interface {
	// GetTenant returns the tenant or auth.ErrNotFound
	GetTenant(ctx context.Context, tenantID string) (*auth.Tenant, error)

	// GetTenantBySAMLIssuer returns the tenant whose configured IdP entity ID
	// matches the given issuer, or auth.ErrNotFound
	GetTenantBySAMLIssuer(ctx context.Context, issuer string) (*auth.Tenant, error)
}

// OAuthAdapter is implemented once per OAuth2 provider. Adding a provider
// means adding an implementation and registering it, not editing shared flow
// logic.
type OAuthAdapter interface {
	// Name returns the provider name the adapter is registered under
	Name() string

	// BuildAuthorizationRequest validates the tenant, mints a correlation
	// token, and constructs the provider's authorization URL with that token
	// as the state parameter.
	BuildAuthorizationRequest(ctx context.Context, tenantID string, now time.Time) (*OAuthInitiation, error)

	// ResolveCallback decodes and checks the state token, then exchanges the
	// authorization code for a normalized identity. The returned tenant ID is
	// always the one bound inside the signed state token, never caller input.
	ResolveCallback(ctx context.Context, code, state string, now time.Time) (*ExternalIdentity, string, error)
}

// Registry selects OAuth adapters by provider name
type Registry struct {
	adapters map[string]OAuthAdapter
}

// NewRegistry creates a registry over the given adapters
func NewRegistry(adapters ...OAuthAdapter) *Registry {
	r := &Registry{adapters: make(map[string]OAuthAdapter, len(adapters))}
	for _, a := range adapters {
		r.adapters[a.Name()] = a
	}
	return r
}

// Get returns the adapter for the provider name or ErrUnsupportedProvider
func (r *Registry) Get(provider string) (OAuthAdapter, error) {
	a, ok := r.adapters[provider]
	if !ok {
		return nil, ErrUnsupportedProvider
	}
	return a, nil
}

// Providers lists the registered provider names in stable order
func (r *Registry) Providers() []string {
	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
