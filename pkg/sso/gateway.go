package sso

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/platinummonkey/fedgate/pkg/audit"
	"github.com/platinummonkey/fedgate/pkg/auth"
	"github.com/platinummonkey/fedgate/pkg/observability"
)

// LoginResult is the outcome of a completed federated login
type LoginResult struct {
	User        *auth.User      `json:"user"`
	Tokens      *auth.TokenPair `json:"tokens"`
	SessionID   string          `json:"session_id"`
	Provisioned bool            `json:"provisioned"`
}

// TenantSSOConfig describes which login methods a tenant supports. It is safe
// to expose to unauthenticated clients.
type TenantSSOConfig struct {
	TenantID       string   `json:"tenant_id"`
	SSOEnabled     bool     `json:"sso_enabled"`
	OAuthProviders []string `json:"oauth_providers"`
	SAMLEnabled    bool     `json:"saml_enabled"`
}

// AuditLog records federation audit events and reads them back
type AuditLog interface {
	Record(ctx context.Context, event *audit.Event) error
	Query(ctx context.Context, filter audit.Filter) ([]*audit.Event, error)
}

// Gateway orchestrates the federation flows. It holds no per-flow state; all
// correlation lives in the signed state token round-tripped through the
// provider.
type Gateway struct {
	registry *Registry
	saml     *SAMLAdapter
	resolver *Resolver
	issuer   *auth.Issuer
	tenants  TenantStore
	states   *StateCodec
	logger   *observability.Logger
	metrics  *observability.Metrics
	auditor  AuditLog
	now      func() time.Time
}

// NewGateway wires the federation components together
func NewGateway(registry *Registry, saml *SAMLAdapter, resolver *Resolver, issuer *auth.Issuer, tenants TenantStore, states *StateCodec, logger *observability.Logger, metrics *observability.Metrics) *Gateway {
	return &Gateway{
		registry: registry,
		saml:     saml,
		resolver: resolver,
		issuer:   issuer,
		tenants:  tenants,
		states:   states,
		logger:   logger,
		metrics:  metrics,
		now:      time.Now,
	}
}

// SetAuditor attaches an audit trail recorder. Audit writes are best effort;
// a failed write is logged and never fails the login that produced it.
func (g *Gateway) SetAuditor(auditor AuditLog) {
	g.auditor = auditor
}

func (g *Gateway) recordAudit(ctx context.Context, event *audit.Event) {
	if g.auditor == nil {
		return
	}
	event.CreatedAt = g.now()
	if err := g.auditor.Record(ctx, event); err != nil {
		g.logger.WithError(err).Warn("failed to record audit event")
	}
}

// InitiateOAuth starts an OAuth2 login for the tenant against the named
// provider and returns the authorization URL to redirect the user to.
func (g *Gateway) InitiateOAuth(ctx context.Context, provider, tenantID string) (*OAuthInitiation, error) {
	adapter, err := g.registry.Get(provider)
	if err != nil {
		return nil, err
	}

	initiation, err := adapter.BuildAuthorizationRequest(ctx, tenantID, g.now())
	if err != nil {
		return nil, err
	}

	g.logger.WithFields(map[string]interface{}{
		"provider":  provider,
		"tenant_id": tenantID,
	}).Info("oauth login initiated")
	return initiation, nil
}

// CompleteOAuthCallback finishes an OAuth2 login: it validates the state
// token, exchanges the code, resolves the account, and issues a session.
func (g *Gateway) CompleteOAuthCallback(ctx context.Context, provider, code, state string, client auth.ClientInfo) (*LoginResult, error) {
	adapter, err := g.registry.Get(provider)
	if err != nil {
		return nil, err
	}

	started := g.now()
	identity, tenantID, err := adapter.ResolveCallback(ctx, code, state, started)
	g.metrics.ObserveProviderExchange(provider, time.Since(started))
	if err != nil {
		return nil, g.collapseAuthFailure(ctx, provider, client, err)
	}

	return g.completeLogin(ctx, provider, tenantID, identity, client)
}

// InitiateSAML starts a SAML login for the tenant
func (g *Gateway) InitiateSAML(ctx context.Context, tenantID string) (*SAMLInitiation, error) {
	if g.saml == nil {
		return nil, ErrSSONotConfigured
	}

	initiation, err := g.saml.BuildAuthnRequest(ctx, tenantID, g.now())
	if err != nil {
		return nil, err
	}

	g.logger.WithField("tenant_id", tenantID).Info("saml login initiated")
	return initiation, nil
}

// CompleteSAMLCallback finishes a SAML login from a posted SAMLResponse. The
// tenant is bound by the validated assertion issuer; when a RelayState token
// is present it must additionally agree with that tenant.
func (g *Gateway) CompleteSAMLCallback(ctx context.Context, samlResponse, relayState string, client auth.ClientInfo) (*LoginResult, error) {
	if g.saml == nil {
		return nil, ErrSSONotConfigured
	}

	started := g.now()
	identity, tenantID, err := g.saml.ResolveAssertion(ctx, samlResponse)
	g.metrics.ObserveProviderExchange("saml", time.Since(started))
	if err != nil {
		return nil, g.collapseAuthFailure(ctx, "saml", client, err)
	}

	if relayState != "" {
		st, err := g.states.Decode(relayState, g.now())
		if err != nil {
			return nil, g.collapseAuthFailure(ctx, "saml", client, err)
		}
		if st.TenantID != tenantID {
			return nil, g.collapseAuthFailure(ctx, "saml", client, fmt.Errorf("%w: relay state tenant does not match assertion issuer", ErrInvalidAssertion))
		}
	}

	return g.completeLogin(ctx, "saml", tenantID, identity, client)
}

// ConfigForTenant reports the tenant's available login methods
func (g *Gateway) ConfigForTenant(ctx context.Context, tenantID string) (*TenantSSOConfig, error) {
	tenant, err := g.tenants.GetTenant(ctx, tenantID)
	if errors.Is(err, auth.ErrNotFound) {
		return nil, ErrTenantNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	return &TenantSSOConfig{
		TenantID:       tenant.ID,
		SSOEnabled:     tenant.SSOEnabled,
		OAuthProviders: g.registry.Providers(),
		SAMLEnabled:    g.saml != nil && tenant.SAMLConfigured(),
	}, nil
}

// SAMLMetadata serves the service-provider entity descriptor for a tenant
func (g *Gateway) SAMLMetadata(ctx context.Context, tenantID string) ([]byte, error) {
	if g.saml == nil {
		return nil, ErrSSONotConfigured
	}
	return g.saml.Metadata(ctx, tenantID)
}

// Logout revokes one of the caller's sessions, invalidating its refresh
// credential. The caller's identity comes from verified access claims; a
// session owned by another user reports auth.ErrNotFound.
func (g *Gateway) Logout(ctx context.Context, sessionID, userID string) error {
	if err := g.issuer.Revoke(ctx, sessionID, userID); err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	g.logger.WithFields(map[string]interface{}{
		"session_id": sessionID,
		"user_id":    userID,
	}).Info("session revoked")
	return nil
}

// AuditEvents returns the tenant's recorded login events, newest first. The
// tenant is always the caller's own, taken from verified access claims.
func (g *Gateway) AuditEvents(ctx context.Context, tenantID string, filter audit.Filter) ([]*audit.Event, error) {
	if g.auditor == nil {
		return nil, nil
	}

	filter.TenantID = tenantID
	events, err := g.auditor.Query(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return events, nil
}

func (g *Gateway) completeLogin(ctx context.Context, provider, tenantID string, identity *ExternalIdentity, client auth.ClientInfo) (*LoginResult, error) {
	user, created, err := g.resolver.Resolve(ctx, tenantID, identity)
	if err != nil {
		g.metrics.RecordLogin(provider, "persistence_error")
		return nil, err
	}
	if created {
		g.metrics.RecordProvisionedUser(provider)
		g.logger.WithFields(map[string]interface{}{
			"provider":  provider,
			"tenant_id": tenantID,
			"user_id":   user.ID,
		}).Info("auto-provisioned federated user")
		g.recordAudit(ctx, &audit.Event{
			Type:      audit.EventUserProvisioned,
			TenantID:  tenantID,
			UserID:    user.ID,
			Provider:  provider,
			IPAddress: client.IPAddress,
			UserAgent: client.UserAgent,
		})
	}

	pair, session, err := g.issuer.Issue(ctx, user, client)
	if err != nil {
		g.metrics.RecordLogin(provider, "persistence_error")
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	g.metrics.RecordLogin(provider, "success")
	g.metrics.RecordSessionIssued()
	g.recordAudit(ctx, &audit.Event{
		Type:      audit.EventLoginSuccess,
		TenantID:  tenantID,
		UserID:    user.ID,
		Provider:  provider,
		IPAddress: client.IPAddress,
		UserAgent: client.UserAgent,
	})
	g.logger.WithFields(map[string]interface{}{
		"provider":   provider,
		"tenant_id":  tenantID,
		"user_id":    user.ID,
		"session_id": session.ID,
	}).Info("federated login completed")

	return &LoginResult{
		User:        user,
		Tokens:      pair,
		SessionID:   session.ID,
		Provisioned: created,
	}, nil
}

// collapseAuthFailure records the precise failure for operators and returns
// the opaque ErrAuthenticationFailed the client sees. Tenant, provider, and
// persistence errors keep their own classes.
func (g *Gateway) collapseAuthFailure(ctx context.Context, provider string, client auth.ClientInfo, err error) error {
	switch {
	case errors.Is(err, ErrTenantNotFound),
		errors.Is(err, ErrUnsupportedProvider),
		errors.Is(err, ErrSSONotConfigured),
		errors.Is(err, ErrPersistence):
		return err
	}

	kind := failureKind(err)
	g.metrics.RecordLogin(provider, "auth_failure")
	g.metrics.RecordStateFailure(kind)
	g.recordAudit(ctx, &audit.Event{
		Type:      audit.EventLoginFailure,
		Provider:  provider,
		Detail:    kind,
		IPAddress: client.IPAddress,
		UserAgent: client.UserAgent,
	})
	g.logger.WithError(err).WithFields(map[string]interface{}{
		"provider":     provider,
		"failure_kind": kind,
	}).Warn("federated login rejected")
	return ErrAuthenticationFailed
}
