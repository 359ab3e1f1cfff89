package sso

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGoogleAdapter(tenants TenantStore, states *StateCodec, fetcher IdentityFetcher) *OAuth2Adapter {
	return NewGoogleAdapter(tenants, states, ClientCredentials{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURL:  "https://gateway.example.com/sso/oauth/callback",
	}, fetcher)
}

func TestOAuth2Adapter_BuildAuthorizationRequest(t *testing.T) {
	tenants := newFakeTenantStore(testTenant("tenant-1"))
	states := NewStateCodec([]byte("test-secret"), DefaultStateTTL)
	adapter := newTestGoogleAdapter(tenants, states, &fakeFetcher{})
	now := time.Now()

	initiation, err := adapter.BuildAuthorizationRequest(context.Background(), "tenant-1", now)
	require.NoError(t, err)

	parsed, err := url.Parse(initiation.AuthURL)
	require.NoError(t, err)
	assert.Equal(t, "accounts.google.com", parsed.Host)
	assert.Equal(t, "client-id", parsed.Query().Get("client_id"))
	assert.Equal(t, initiation.State, parsed.Query().Get("state"))

	// The minted state binds the tenant and provider
	state, err := states.Decode(initiation.State, now)
	require.NoError(t, err)
	assert.Equal(t, "tenant-1", state.TenantID)
	assert.Equal(t, ProviderGoogle, state.Provider)
	assert.WithinDuration(t, now, state.Issued(), time.Second)
}

func TestOAuth2Adapter_BuildAuthorizationRequest_UnknownTenant(t *testing.T) {
	tenants := newFakeTenantStore()
	states := NewStateCodec([]byte("test-secret"), DefaultStateTTL)
	adapter := newTestGoogleAdapter(tenants, states, &fakeFetcher{})

	_, err := adapter.BuildAuthorizationRequest(context.Background(), "nope", time.Now())
	assert.ErrorIs(t, err, ErrTenantNotFound)
}

func TestOAuth2Adapter_ResolveCallback(t *testing.T) {
	tenants := newFakeTenantStore(testTenant("tenant-1"))
	states := NewStateCodec([]byte("test-secret"), DefaultStateTTL)
	fetcher := &fakeFetcher{identity: &ExternalIdentity{
		Email:     "user@example.com",
		FirstName: "Test",
		LastName:  "User",
	}}
	adapter := newTestGoogleAdapter(tenants, states, fetcher)
	now := time.Now()

	state, err := states.Encode("tenant-1", ProviderGoogle, now)
	require.NoError(t, err)

	identity, tenantID, err := adapter.ResolveCallback(context.Background(), "auth-code", state, now)
	require.NoError(t, err)
	assert.Equal(t, "tenant-1", tenantID)
	assert.Equal(t, "user@example.com", identity.Email)
	assert.Equal(t, "auth-code", fetcher.lastCode)
}

func TestOAuth2Adapter_ResolveCallback_Rejections(t *testing.T) {
	tenants := newFakeTenantStore(testTenant("tenant-1"))
	states := NewStateCodec([]byte("test-secret"), DefaultStateTTL)
	now := time.Now()

	googleState, err := states.Encode("tenant-1", ProviderGoogle, now)
	require.NoError(t, err)
	microsoftState, err := states.Encode("tenant-1", ProviderMicrosoft, now)
	require.NoError(t, err)
	expiredState, err := states.Encode("tenant-1", ProviderGoogle, now.Add(-11*time.Minute))
	require.NoError(t, err)

	tests := []struct {
		name    string
		state   string
		fetcher *fakeFetcher
		wantErr error
	}{
		{
			name:    "token minted for another provider",
			state:   microsoftState,
			fetcher: &fakeFetcher{identity: &ExternalIdentity{Email: "user@example.com"}},
			wantErr: ErrProviderMismatch,
		},
		{
			name:    "expired token",
			state:   expiredState,
			fetcher: &fakeFetcher{identity: &ExternalIdentity{Email: "user@example.com"}},
			wantErr: ErrStateExpired,
		},
		{
			name:    "malformed token",
			state:   "not-a-token",
			fetcher: &fakeFetcher{identity: &ExternalIdentity{Email: "user@example.com"}},
			wantErr: ErrStateMalformed,
		},
		{
			name:    "provider exchange failure",
			state:   googleState,
			fetcher: &fakeFetcher{err: errors.New("upstream 502")},
			wantErr: ErrProviderExchange,
		},
		{
			name:    "identity without email",
			state:   googleState,
			fetcher: &fakeFetcher{identity: &ExternalIdentity{FirstName: "No", LastName: "Email"}},
			wantErr: ErrProviderExchange,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adapter := newTestGoogleAdapter(tenants, states, tt.fetcher)
			_, _, err := adapter.ResolveCallback(context.Background(), "auth-code", tt.state, now)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestRegistry(t *testing.T) {
	tenants := newFakeTenantStore()
	states := NewStateCodec([]byte("test-secret"), DefaultStateTTL)
	google := newTestGoogleAdapter(tenants, states, &fakeFetcher{})
	registry := NewRegistry(google)

	adapter, err := registry.Get(ProviderGoogle)
	require.NoError(t, err)
	assert.Equal(t, ProviderGoogle, adapter.Name())

	_, err = registry.Get("okta")
	assert.ErrorIs(t, err, ErrUnsupportedProvider)

	assert.Equal(t, []string{ProviderGoogle}, registry.Providers())
}
