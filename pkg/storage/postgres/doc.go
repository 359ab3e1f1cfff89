// Package postgres implements the gateway's persistence stores on PostgreSQL.
//
// # Overview
//
// Three stores back the federation flows: tenants (SSO configuration reads),
// users (lookup plus atomic create-or-get for auto-provisioning), and
// sessions (insert, revoke, expired purge). All queries use database/sql with
// the lib/pq driver and positional placeholders.
//
// # Usage Example
//
//	db, err := postgres.Connect(postgres.ConnectionConfig{URL: dbURL})
//	users := postgres.NewUserStore(db)
//	user, err := users.GetByTenantEmail(ctx, tenantID, email)
//
// # Related Packages
//
//   - pkg/sso: consumes the tenant and user stores
//   - pkg/auth: consumes the session store
package postgres
