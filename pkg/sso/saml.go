package sso

import (
	"context"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"encoding/xml"
	"errors"
	"fmt"
	"strings"
	"time"

	saml2 "github.com/russellhaering/gosaml2"
	dsig "github.com/russellhaering/goxmldsig"

	"github.com/platinummonkey/fedgate/pkg/auth"
)

// Assertion attribute names the adapter reads. These are the common OASIS
// names plus the short forms Azure AD and Okta emit by default.
var (
	samlEmailAttrs     = []string{"email", "mail", "http://schemas.xmlsoap.org/ws/2005/05/identity/claims/emailaddress"}
	samlFirstNameAttrs = []string{"firstName", "givenName", "http://schemas.xmlsoap.org/ws/2005/05/identity/claims/givenname"}
	samlLastNameAttrs  = []string{"lastName", "surname", "sn", "http://schemas.xmlsoap.org/ws/2005/05/identity/claims/surname"}
)

// SAMLAdapter implements web-SSO against each tenant's configured identity
// provider. Correlation is provider-side (InResponseTo / RelayState); tenant
// binding on the callback comes from the validated assertion issuer, not from
// any client-controlled parameter.
type SAMLAdapter struct {
	tenants TenantStore
	states  *StateCodec
	baseURL string
	timeout time.Duration

	// buildSP is swappable in tests; the default builds a gosaml2 service
	// provider from the tenant's IdP settings.
	buildSP func(tenant *auth.Tenant) (serviceProvider, error)
}

// serviceProvider is the slice of gosaml2 the adapter depends on
type serviceProvider interface {
	BuildAuthRequest() (string, error)
	BuildAuthURL(relayState string) (string, error)
	RetrieveAssertionInfo(encodedResponse string) (*saml2.AssertionInfo, error)
}

// NewSAMLAdapter creates the SAML adapter. baseURL is this gateway's external
// URL, used for the SP entity ID and assertion consumer service endpoint.
func NewSAMLAdapter(tenants TenantStore, states *StateCodec, baseURL string) *SAMLAdapter {
	a := &SAMLAdapter{
		tenants: tenants,
		states:  states,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		timeout: ExchangeTimeout,
	}
	a.buildSP = a.newServiceProvider
	return a
}

// BuildAuthnRequest validates the tenant and produces the authentication
// request document plus the tenant's IdP redirect URL
func (a *SAMLAdapter) BuildAuthnRequest(ctx context.Context, tenantID string, now time.Time) (*SAMLInitiation, error) {
	tenant, err := a.tenants.GetTenant(ctx, tenantID)
	if errors.Is(err, auth.ErrNotFound) {
		return nil, ErrTenantNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if !tenant.SAMLConfigured() {
		return nil, ErrSSONotConfigured
	}

	sp, err := a.buildSP(tenant)
	if err != nil {
		return nil, fmt.Errorf("failed to configure service provider: %w", err)
	}

	doc, err := sp.BuildAuthRequest()
	if err != nil {
		return nil, fmt.Errorf("failed to build authn request: %w", err)
	}

	// RelayState carries a correlation token as defense in depth; the
	// authoritative tenant binding still comes from the assertion.
	relay, err := a.states.Encode(tenantID, "saml", now)
	if err != nil {
		return nil, fmt.Errorf("failed to mint relay state: %w", err)
	}

	redirectURL, err := sp.BuildAuthURL(relay)
	if err != nil {
		return nil, fmt.Errorf("failed to build redirect URL: %w", err)
	}

	return &SAMLInitiation{
		SAMLRequest: base64.StdEncoding.EncodeToString([]byte(doc)),
		RedirectURL: redirectURL,
	}, nil
}

// ResolveAssertion validates the SAMLResponse and extracts the identity.
// Signature, expiry, and audience checks are delegated to gosaml2 against the
// issuing tenant's configured IdP certificate; any validation failure maps to
// ErrInvalidAssertion.
func (a *SAMLAdapter) ResolveAssertion(ctx context.Context, samlResponse string) (*ExternalIdentity, string, error) {
	issuer, err := peekIssuer(samlResponse)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrInvalidAssertion, err)
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	tenant, err := a.tenants.GetTenantBySAMLIssuer(ctx, issuer)
	if errors.Is(err, auth.ErrNotFound) {
		return nil, "", fmt.Errorf("%w: unknown issuer", ErrInvalidAssertion)
	}
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if !tenant.SAMLConfigured() {
		return nil, "", fmt.Errorf("%w: issuer tenant has no saml configuration", ErrInvalidAssertion)
	}

	sp, err := a.buildSP(tenant)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrInvalidAssertion, err)
	}

	info, err := sp.RetrieveAssertionInfo(samlResponse)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrInvalidAssertion, err)
	}
	if info.WarningInfo != nil {
		if info.WarningInfo.InvalidTime {
			return nil, "", fmt.Errorf("%w: assertion outside validity window", ErrInvalidAssertion)
		}
		if info.WarningInfo.NotInAudience {
			return nil, "", fmt.Errorf("%w: audience mismatch", ErrInvalidAssertion)
		}
	}

	identity := &ExternalIdentity{SubjectID: info.NameID}
	for _, attr := range info.Values {
		if len(attr.Values) == 0 {
			continue
		}
		value := attr.Values[0].Value
		switch {
		case matchAttr(attr.Name, samlEmailAttrs):
			identity.Email = value
		case matchAttr(attr.Name, samlFirstNameAttrs):
			identity.FirstName = value
		case matchAttr(attr.Name, samlLastNameAttrs):
			identity.LastName = value
		}
	}

	// NameID is the email for the common emailAddress format
	if identity.Email == "" && strings.Contains(info.NameID, "@") {
		identity.Email = info.NameID
	}
	if identity.Email == "" {
		return nil, "", fmt.Errorf("%w: no email attribute in assertion", ErrInvalidAssertion)
	}

	return identity, tenant.ID, nil
}

// Metadata returns the SP entity descriptor XML for the tenant
func (a *SAMLAdapter) Metadata(ctx context.Context, tenantID string) ([]byte, error) {
	tenant, err := a.tenants.GetTenant(ctx, tenantID)
	if errors.Is(err, auth.ErrNotFound) {
		return nil, ErrTenantNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if !tenant.SAMLConfigured() {
		return nil, ErrSSONotConfigured
	}

	descriptor := fmt.Sprintf(`<?xml version="1.0"?>
<md:EntityDescriptor xmlns:md="urn:oasis:names:tc:SAML:2.0:metadata"
                     entityID="%s">
  <md:SPSSODescriptor protocolSupportEnumeration="urn:oasis:names:tc:SAML:2.0:protocol">
    <md:AssertionConsumerService Binding="urn:oasis:names:tc:SAML:2.0:bindings:HTTP-POST"
                                 Location="%s"
                                 index="1"/>
  </md:SPSSODescriptor>
</md:EntityDescriptor>`, a.entityID(), a.acsURL())

	return []byte(descriptor), nil
}

func (a *SAMLAdapter) newServiceProvider(tenant *auth.Tenant) (serviceProvider, error) {
	certBlock, _ := pem.Decode([]byte(tenant.SAML.IdPCertificate))
	if certBlock == nil {
		return nil, fmt.Errorf("failed to decode IdP certificate PEM")
	}

	cert, err := x509.ParseCertificate(certBlock.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse IdP certificate: %w", err)
	}

	certStore := dsig.MemoryX509CertificateStore{
		Roots: []*x509.Certificate{cert},
	}

	return &saml2.SAMLServiceProvider{
		IdentityProviderSSOURL:      tenant.SAML.IdPSSOURL,
		IdentityProviderIssuer:      tenant.SAML.IdPEntityID,
		ServiceProviderIssuer:       a.entityID(),
		AssertionConsumerServiceURL: a.acsURL(),
		AudienceURI:                 a.entityID(),
		IDPCertificateStore:         &certStore,
	}, nil
}

func (a *SAMLAdapter) entityID() string {
	return a.baseURL + "/sso/saml/metadata"
}

func (a *SAMLAdapter) acsURL() string {
	return a.baseURL + "/sso/saml/callback"
}

// peekIssuer reads the Issuer element from the response envelope without
// validating anything; it only routes the response to the right tenant's
// validation configuration.
func peekIssuer(samlResponse string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(samlResponse)
	if err != nil {
		return "", fmt.Errorf("invalid base64 encoding")
	}

	var envelope struct {
		Issuer string `xml:"Issuer"`
	}
	if err := xml.Unmarshal(raw, &envelope); err != nil {
		return "", fmt.Errorf("invalid response document")
	}

	issuer := strings.TrimSpace(envelope.Issuer)
	if issuer == "" {
		return "", fmt.Errorf("missing issuer")
	}
	return issuer, nil
}

func matchAttr(name string, candidates []string) bool {
	for _, c := range candidates {
		if strings.EqualFold(name, c) {
			return true
		}
	}
	return false
}
