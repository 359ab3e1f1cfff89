package sso

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"
	"time"

	saml2 "github.com/russellhaering/gosaml2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/fedgate/pkg/auth"
)

const testIdPIssuer = "https://idp.example.com/metadata"

func encodeResponse(issuer string) string {
	doc := `<samlp:Response xmlns:samlp="urn:oasis:names:tc:SAML:2.0:protocol" xmlns:saml="urn:oasis:names:tc:SAML:2.0:assertion">` +
		`<saml:Issuer>` + issuer + `</saml:Issuer>` +
		`<saml:Assertion></saml:Assertion>` +
		`</samlp:Response>`
	return base64.StdEncoding.EncodeToString([]byte(doc))
}

func newTestSAMLAdapter(tenants TenantStore, sp serviceProvider) *SAMLAdapter {
	states := NewStateCodec([]byte("test-secret"), DefaultStateTTL)
	adapter := NewSAMLAdapter(tenants, states, "https://gateway.example.com")
	adapter.buildSP = func(tenant *auth.Tenant) (serviceProvider, error) {
		return sp, nil
	}
	return adapter
}

func TestSAMLAdapter_BuildAuthnRequest(t *testing.T) {
	tenants := newFakeTenantStore(testSAMLTenant("tenant-1", testIdPIssuer))
	sp := &fakeSP{
		authRequest: "<samlp:AuthnRequest/>",
		authURL:     "https://idp.example.com/sso",
	}
	adapter := newTestSAMLAdapter(tenants, sp)

	initiation, err := adapter.BuildAuthnRequest(context.Background(), "tenant-1", time.Now())
	require.NoError(t, err)

	decoded, err := base64.StdEncoding.DecodeString(initiation.SAMLRequest)
	require.NoError(t, err)
	assert.Equal(t, "<samlp:AuthnRequest/>", string(decoded))
	assert.Contains(t, initiation.RedirectURL, "https://idp.example.com/sso")
	assert.Contains(t, initiation.RedirectURL, "RelayState=")
}

func TestSAMLAdapter_BuildAuthnRequest_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		tenants  *fakeTenantStore
		tenantID string
		wantErr  error
	}{
		{
			name:     "unknown tenant",
			tenants:  newFakeTenantStore(),
			tenantID: "nope",
			wantErr:  ErrTenantNotFound,
		},
		{
			name:     "tenant without saml config",
			tenants:  newFakeTenantStore(testTenant("tenant-1")),
			tenantID: "tenant-1",
			wantErr:  ErrSSONotConfigured,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adapter := newTestSAMLAdapter(tt.tenants, &fakeSP{})
			_, err := adapter.BuildAuthnRequest(context.Background(), tt.tenantID, time.Now())
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestSAMLAdapter_ResolveAssertion(t *testing.T) {
	tenants := newFakeTenantStore(testSAMLTenant("tenant-1", testIdPIssuer))
	sp := &fakeSP{info: assertionInfo("subject-1", map[string]string{
		"email":     "user@example.com",
		"firstName": "Test",
		"lastName":  "User",
	})}
	adapter := newTestSAMLAdapter(tenants, sp)

	identity, tenantID, err := adapter.ResolveAssertion(context.Background(), encodeResponse(testIdPIssuer))
	require.NoError(t, err)
	assert.Equal(t, "tenant-1", tenantID)
	assert.Equal(t, "user@example.com", identity.Email)
	assert.Equal(t, "Test", identity.FirstName)
	assert.Equal(t, "User", identity.LastName)
	assert.Equal(t, "subject-1", identity.SubjectID)
}

func TestSAMLAdapter_ResolveAssertion_NameIDFallback(t *testing.T) {
	tenants := newFakeTenantStore(testSAMLTenant("tenant-1", testIdPIssuer))
	sp := &fakeSP{info: assertionInfo("fallback@example.com", nil)}
	adapter := newTestSAMLAdapter(tenants, sp)

	identity, _, err := adapter.ResolveAssertion(context.Background(), encodeResponse(testIdPIssuer))
	require.NoError(t, err)
	assert.Equal(t, "fallback@example.com", identity.Email)
}

func TestSAMLAdapter_ResolveAssertion_Rejections(t *testing.T) {
	validInfo := assertionInfo("subject-1", map[string]string{"email": "user@example.com"})

	invalidTime := assertionInfo("subject-1", map[string]string{"email": "user@example.com"})
	invalidTime.WarningInfo = &saml2.WarningInfo{InvalidTime: true}

	wrongAudience := assertionInfo("subject-1", map[string]string{"email": "user@example.com"})
	wrongAudience.WarningInfo = &saml2.WarningInfo{NotInAudience: true}

	tests := []struct {
		name     string
		tenants  *fakeTenantStore
		sp       *fakeSP
		response string
	}{
		{
			name:     "not base64",
			tenants:  newFakeTenantStore(testSAMLTenant("tenant-1", testIdPIssuer)),
			sp:       &fakeSP{info: validInfo},
			response: "%%%not-base64%%%",
		},
		{
			name:     "not xml",
			tenants:  newFakeTenantStore(testSAMLTenant("tenant-1", testIdPIssuer)),
			sp:       &fakeSP{info: validInfo},
			response: base64.StdEncoding.EncodeToString([]byte("plain text")),
		},
		{
			name:     "unknown issuer",
			tenants:  newFakeTenantStore(testSAMLTenant("tenant-1", testIdPIssuer)),
			sp:       &fakeSP{info: validInfo},
			response: encodeResponse("https://rogue-idp.example.com"),
		},
		{
			name:     "validation failure",
			tenants:  newFakeTenantStore(testSAMLTenant("tenant-1", testIdPIssuer)),
			sp:       &fakeSP{err: errors.New("signature verification failed")},
			response: encodeResponse(testIdPIssuer),
		},
		{
			name:     "assertion outside validity window",
			tenants:  newFakeTenantStore(testSAMLTenant("tenant-1", testIdPIssuer)),
			sp:       &fakeSP{info: invalidTime},
			response: encodeResponse(testIdPIssuer),
		},
		{
			name:     "audience mismatch",
			tenants:  newFakeTenantStore(testSAMLTenant("tenant-1", testIdPIssuer)),
			sp:       &fakeSP{info: wrongAudience},
			response: encodeResponse(testIdPIssuer),
		},
		{
			name:     "no email anywhere",
			tenants:  newFakeTenantStore(testSAMLTenant("tenant-1", testIdPIssuer)),
			sp:       &fakeSP{info: assertionInfo("opaque-subject", nil)},
			response: encodeResponse(testIdPIssuer),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adapter := newTestSAMLAdapter(tt.tenants, tt.sp)
			_, _, err := adapter.ResolveAssertion(context.Background(), tt.response)
			assert.ErrorIs(t, err, ErrInvalidAssertion)
		})
	}
}

func TestSAMLAdapter_Metadata(t *testing.T) {
	tenants := newFakeTenantStore(testSAMLTenant("tenant-1", testIdPIssuer))
	adapter := newTestSAMLAdapter(tenants, &fakeSP{})

	metadata, err := adapter.Metadata(context.Background(), "tenant-1")
	require.NoError(t, err)
	assert.Contains(t, string(metadata), "https://gateway.example.com/sso/saml/metadata")
	assert.Contains(t, string(metadata), "https://gateway.example.com/sso/saml/callback")

	_, err = adapter.Metadata(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrTenantNotFound)
}

func TestPeekIssuer(t *testing.T) {
	issuer, err := peekIssuer(encodeResponse(testIdPIssuer))
	require.NoError(t, err)
	assert.Equal(t, testIdPIssuer, issuer)
}
