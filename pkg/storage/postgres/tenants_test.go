package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/fedgate/pkg/auth"
)

func tenantRows(t *testing.T, withSAML bool) *sqlmock.Rows {
	t.Helper()
	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"id", "name", "sso_enabled", "saml_sso_url", "saml_entity_id", "saml_certificate", "created_at", "updated_at",
	})
	if withSAML {
		rows.AddRow("tenant-1", "Acme", true, "https://idp.example.com/sso", "https://idp.example.com/metadata", "CERT", now, now)
	} else {
		rows.AddRow("tenant-1", "Acme", true, nil, nil, nil, now, now)
	}
	return rows
}

func TestTenantStore_GetTenant(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT (.+) FROM tenants WHERE id =").
		WithArgs("tenant-1").
		WillReturnRows(tenantRows(t, true))

	tenant, err := NewTenantStore(db).GetTenant(context.Background(), "tenant-1")
	require.NoError(t, err)
	assert.Equal(t, "tenant-1", tenant.ID)
	assert.True(t, tenant.SSOEnabled)
	require.NotNil(t, tenant.SAML)
	assert.Equal(t, "https://idp.example.com/metadata", tenant.SAML.IdPEntityID)
	assert.True(t, tenant.SAMLConfigured())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTenantStore_GetTenant_NoSAMLConfig(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT (.+) FROM tenants WHERE id =").
		WithArgs("tenant-1").
		WillReturnRows(tenantRows(t, false))

	tenant, err := NewTenantStore(db).GetTenant(context.Background(), "tenant-1")
	require.NoError(t, err)
	assert.Nil(t, tenant.SAML)
	assert.False(t, tenant.SAMLConfigured())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTenantStore_GetTenant_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT (.+) FROM tenants WHERE id =").
		WithArgs("nope").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "name", "sso_enabled", "saml_sso_url", "saml_entity_id", "saml_certificate", "created_at", "updated_at",
		}))

	_, err = NewTenantStore(db).GetTenant(context.Background(), "nope")
	assert.ErrorIs(t, err, auth.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTenantStore_GetTenantBySAMLIssuer(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT (.+) FROM tenants WHERE saml_entity_id =").
		WithArgs("https://idp.example.com/metadata").
		WillReturnRows(tenantRows(t, true))

	tenant, err := NewTenantStore(db).GetTenantBySAMLIssuer(context.Background(), "https://idp.example.com/metadata")
	require.NoError(t, err)
	assert.Equal(t, "tenant-1", tenant.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
