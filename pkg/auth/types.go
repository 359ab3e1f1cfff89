package auth

import (
	"errors"
	"time"
)

// ErrNotFound is returned by stores when a record does not exist.
var ErrNotFound = errors.New("not found")

// Role represents a tenant-level user role
type Role string

const (
	RoleAdmin Role = "ADMIN" // Full access to the tenant
	RoleUser  Role = "USER"  // Regular member
)

// User represents a user account scoped to a tenant.
// Users are unique per (tenant_id, email).
type User struct {
	ID           string    `json:"id"`
	TenantID     string    `json:"tenant_id"`
	Email        string    `json:"email"`
	FirstName    string    `json:"first_name,omitempty"`
	LastName     string    `json:"last_name,omitempty"`
	Role         Role      `json:"role"`
	PasswordHash string    `json:"-"` // Empty for federation-only accounts
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// FederationOnly reports whether the account has no local credential and can
// only sign in through an identity provider. Password login must reject such
// accounts.
func (u *User) FederationOnly() bool {
	return u.PasswordHash == ""
}

// Tenant represents a customer account that users belong to
type Tenant struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	SSOEnabled bool        `json:"sso_enabled"`
	SAML       *TenantSAML `json:"saml,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

// TenantSAML holds a tenant's SAML identity provider settings
type TenantSAML struct {
	IdPSSOURL      string `json:"idp_sso_url"`
	IdPEntityID    string `json:"idp_entity_id"`
	IdPCertificate string `json:"idp_certificate"` // PEM encoded certificate
}

// SAMLConfigured reports whether the tenant can run the SAML login flow
func (t *Tenant) SAMLConfigured() bool {
	return t.SSOEnabled && t.SAML != nil &&
		t.SAML.IdPSSOURL != "" && t.SAML.IdPEntityID != "" && t.SAML.IdPCertificate != ""
}

// Session represents a persisted login session. A new session row is created
// on every successful login; sessions are never reused across logins.
type Session struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	AccessToken  string    `json:"-"`
	RefreshToken string    `json:"-"`
	ExpiresAt    time.Time `json:"expires_at"`
	IPAddress    string    `json:"ip_address,omitempty"`
	UserAgent    string    `json:"user_agent,omitempty"`
	Revoked      bool      `json:"revoked"`
	CreatedAt    time.Time `json:"created_at"`
}

// TokenPair is the access/refresh credential pair returned to the client
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// ClientInfo captures request metadata recorded on the session
type ClientInfo struct {
	IPAddress string
	UserAgent string
}
