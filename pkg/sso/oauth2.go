package sso

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/microsoft"

	"github.com/platinummonkey/fedgate/pkg/auth"
)

// ExchangeTimeout bounds the code-for-identity exchange with the provider
const ExchangeTimeout = 10 * time.Second

// ClientCredentials holds the OAuth2 client registration for one provider
type ClientCredentials struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// Configured reports whether the provider has a usable client registration
func (c ClientCredentials) Configured() bool {
	return c.ClientID != "" && c.ClientSecret != "" && c.RedirectURL != ""
}

// IdentityFetcher exchanges an authorization code for a normalized identity.
// Implementations talk to the provider's token and userinfo endpoints; the
// adapter only requires email plus optional name fields back.
type IdentityFetcher interface {
	Fetch(ctx context.Context, code string) (*ExternalIdentity, error)
}

// OAuth2Adapter implements the authorization-code flow for one provider.
// Provider specifics (endpoints, scopes, identity fetch) are fixed at
// construction; the flow logic is shared.
type OAuth2Adapter struct {
	name    string
	oauth   *oauth2.Config
	tenants TenantStore
	states  *StateCodec
	fetcher IdentityFetcher
	timeout time.Duration
}

// NewOAuth2Adapter creates an adapter for an arbitrary endpoint set. Prefer
// the named constructors for the well-known providers.
func NewOAuth2Adapter(name string, tenants TenantStore, states *StateCodec, creds ClientCredentials, endpoint oauth2.Endpoint, scopes []string, fetcher IdentityFetcher) *OAuth2Adapter {
	return &OAuth2Adapter{
		name: name,
		oauth: &oauth2.Config{
			ClientID:     creds.ClientID,
			ClientSecret: creds.ClientSecret,
			RedirectURL:  creds.RedirectURL,
			Endpoint:     endpoint,
			Scopes:       scopes,
		},
		tenants: tenants,
		states:  states,
		fetcher: fetcher,
		timeout: ExchangeTimeout,
	}
}

// NewGoogleAdapter creates the google adapter
func NewGoogleAdapter(tenants TenantStore, states *StateCodec, creds ClientCredentials, fetcher IdentityFetcher) *OAuth2Adapter {
	return NewOAuth2Adapter(ProviderGoogle, tenants, states, creds,
		google.Endpoint, []string{"openid", "email", "profile"}, fetcher)
}

// NewMicrosoftAdapter creates the microsoft adapter
func NewMicrosoftAdapter(tenants TenantStore, states *StateCodec, creds ClientCredentials, fetcher IdentityFetcher) *OAuth2Adapter {
	return NewOAuth2Adapter(ProviderMicrosoft, tenants, states, creds,
		microsoft.AzureADEndpoint("common"), []string{"openid", "email", "profile"}, fetcher)
}

// NewGitHubAdapter creates the github adapter. GitHub has no OIDC layer, so
// the scope set is its userinfo equivalent of "openid email profile".
func NewGitHubAdapter(tenants TenantStore, states *StateCodec, creds ClientCredentials, fetcher IdentityFetcher) *OAuth2Adapter {
	return NewOAuth2Adapter(ProviderGitHub, tenants, states, creds,
		github.Endpoint, []string{"read:user", "user:email"}, fetcher)
}

// Name returns the provider name
func (a *OAuth2Adapter) Name() string {
	return a.name
}

// OAuthConfig exposes the underlying oauth2 configuration for identity
// fetchers that share the adapter's client registration
func (a *OAuth2Adapter) OAuthConfig() *oauth2.Config {
	return a.oauth
}

// SetFetcher installs the identity fetcher. Fetchers built around the
// adapter's own oauth configuration are constructed after the adapter, so
// this completes wiring before the adapter serves requests.
func (a *OAuth2Adapter) SetFetcher(fetcher IdentityFetcher) {
	a.fetcher = fetcher
}

// BuildAuthorizationRequest validates the tenant, mints a state token, and
// builds the provider's authorization URL
func (a *OAuth2Adapter) BuildAuthorizationRequest(ctx context.Context, tenantID string, now time.Time) (*OAuthInitiation, error) {
	if _, err := a.lookupTenant(ctx, tenantID); err != nil {
		return nil, err
	}

	state, err := a.states.Encode(tenantID, a.name, now)
	if err != nil {
		return nil, fmt.Errorf("failed to mint state token: %w", err)
	}

	return &OAuthInitiation{
		AuthURL: a.oauth.AuthCodeURL(state),
		State:   state,
	}, nil
}

// ResolveCallback decodes the state token and exchanges the code for an
// identity. The tenant annotation on the result comes from the signed token,
// never from caller-supplied parameters.
func (a *OAuth2Adapter) ResolveCallback(ctx context.Context, code, state string, now time.Time) (*ExternalIdentity, string, error) {
	st, err := a.states.Decode(state, now)
	if err != nil {
		return nil, "", err
	}
	if st.Provider != a.name {
		return nil, "", ErrProviderMismatch
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	identity, err := a.fetcher.Fetch(ctx, code)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrProviderExchange, err)
	}
	if identity.Email == "" {
		return nil, "", fmt.Errorf("%w: provider returned no email", ErrProviderExchange)
	}

	return identity, st.TenantID, nil
}

func (a *OAuth2Adapter) lookupTenant(ctx context.Context, tenantID string) (*auth.Tenant, error) {
	tenant, err := a.tenants.GetTenant(ctx, tenantID)
	if errors.Is(err, auth.ErrNotFound) {
		return nil, ErrTenantNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return tenant, nil
}
