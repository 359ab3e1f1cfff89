package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/platinummonkey/fedgate/pkg/auth"
)

// TenantStore reads tenant SSO configuration from PostgreSQL
type TenantStore struct {
	db *sql.DB
}

// NewTenantStore creates a tenant store backed by db
func NewTenantStore(db *sql.DB) *TenantStore {
	return &TenantStore{db: db}
}

const tenantColumns = `id, name, sso_enabled, saml_sso_url, saml_entity_id, saml_certificate, created_at, updated_at`

// GetTenant returns the tenant by id, or auth.ErrNotFound
func (s *TenantStore) GetTenant(ctx context.Context, tenantID string) (*auth.Tenant, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenants WHERE id = $1`
	return s.scanTenant(s.db.QueryRowContext(ctx, query, tenantID))
}

// GetTenantBySAMLIssuer returns the tenant whose IdP entity id matches the
// issuer, or auth.ErrNotFound
func (s *TenantStore) GetTenantBySAMLIssuer(ctx context.Context, issuer string) (*auth.Tenant, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenants WHERE saml_entity_id = $1`
	return s.scanTenant(s.db.QueryRowContext(ctx, query, issuer))
}

func (s *TenantStore) scanTenant(row *sql.Row) (*auth.Tenant, error) {
	var tenant auth.Tenant
	var ssoURL, entityID, certificate sql.NullString

	err := row.Scan(
		&tenant.ID,
		&tenant.Name,
		&tenant.SSOEnabled,
		&ssoURL,
		&entityID,
		&certificate,
		&tenant.CreatedAt,
		&tenant.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tenant: %w", err)
	}

	if ssoURL.Valid && entityID.Valid && certificate.Valid {
		tenant.SAML = &auth.TenantSAML{
			IdPSSOURL:      ssoURL.String,
			IdPEntityID:    entityID.String,
			IdPCertificate: certificate.String,
		}
	}

	return &tenant, nil
}
