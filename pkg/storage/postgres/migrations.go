package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// Migration represents a database migration
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// GetMigrations returns the gateway schema migrations
func GetMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create tenants table",
			SQL: `
				CREATE TABLE IF NOT EXISTS tenants (
					id VARCHAR(64) PRIMARY KEY,
					name VARCHAR(255) NOT NULL,
					sso_enabled BOOLEAN NOT NULL DEFAULT FALSE,
					saml_sso_url TEXT,
					saml_entity_id TEXT,
					saml_certificate TEXT,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_tenants_saml_entity_id ON tenants(saml_entity_id);
			`,
		},
		{
			Version:     2,
			Description: "Create users table",
			SQL: `
				CREATE TABLE IF NOT EXISTS users (
					id VARCHAR(64) PRIMARY KEY,
					tenant_id VARCHAR(64) NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
					email VARCHAR(320) NOT NULL,
					first_name VARCHAR(255) NOT NULL DEFAULT '',
					last_name VARCHAR(255) NOT NULL DEFAULT '',
					role VARCHAR(32) NOT NULL DEFAULT 'USER',
					password_hash TEXT NOT NULL DEFAULT '',
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE UNIQUE INDEX idx_users_tenant_email ON users(tenant_id, lower(email));
			`,
		},
		{
			Version:     3,
			Description: "Create sessions table",
			SQL: `
				CREATE TABLE IF NOT EXISTS sessions (
					id VARCHAR(64) PRIMARY KEY,
					user_id VARCHAR(64) NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					access_token TEXT NOT NULL,
					refresh_token TEXT NOT NULL,
					expires_at TIMESTAMPTZ NOT NULL,
					ip_address VARCHAR(64) NOT NULL DEFAULT '',
					user_agent TEXT NOT NULL DEFAULT '',
					revoked BOOLEAN NOT NULL DEFAULT FALSE,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_sessions_user_id ON sessions(user_id);
				CREATE INDEX idx_sessions_expires_at ON sessions(expires_at);
			`,
		},
		{
			Version:     4,
			Description: "Create audit_events table",
			SQL: `
				CREATE TABLE IF NOT EXISTS audit_events (
					id BIGSERIAL PRIMARY KEY,
					type VARCHAR(64) NOT NULL,
					tenant_id VARCHAR(64) NOT NULL DEFAULT '',
					user_id VARCHAR(64) NOT NULL DEFAULT '',
					provider VARCHAR(32) NOT NULL DEFAULT '',
					detail TEXT NOT NULL DEFAULT '',
					ip_address VARCHAR(64) NOT NULL DEFAULT '',
					user_agent TEXT NOT NULL DEFAULT '',
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_audit_events_tenant_created ON audit_events(tenant_id, created_at DESC);
				CREATE INDEX idx_audit_events_type ON audit_events(type);
			`,
		},
	}
}

// RunMigrations applies any pending migrations in version order
func RunMigrations(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS fedgate_migrations (
			version INT PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	rows, err := db.QueryContext(ctx, "SELECT version FROM fedgate_migrations ORDER BY version")
	if err != nil {
		return fmt.Errorf("failed to query migrations: %w", err)
	}

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan migration version: %w", err)
		}
		applied[version] = true
	}
	rows.Close()

	for _, migration := range GetMigrations() {
		if applied[migration.Version] {
			continue
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin migration %d: %w", migration.Version, err)
		}

		if _, err := tx.ExecContext(ctx, migration.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to apply migration %d (%s): %w", migration.Version, migration.Description, err)
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO fedgate_migrations (version, description) VALUES ($1, $2)",
			migration.Version, migration.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}
