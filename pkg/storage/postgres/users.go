package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/platinummonkey/fedgate/pkg/auth"
)

// UserStore reads and provisions user accounts in PostgreSQL
type UserStore struct {
	db *sql.DB
}

// NewUserStore creates a user store backed by db
func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

const userColumns = `id, tenant_id, email, first_name, last_name, role, password_hash, created_at, updated_at`

// GetByTenantEmail returns the user for the (tenant, email) pair, or
// auth.ErrNotFound. Email comparison is case-insensitive.
func (s *UserStore) GetByTenantEmail(ctx context.Context, tenantID, email string) (*auth.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE tenant_id = $1 AND lower(email) = lower($2)`
	return s.scanUser(s.db.QueryRowContext(ctx, query, tenantID, email))
}

// GetByID returns the user by id, or auth.ErrNotFound
func (s *UserStore) GetByID(ctx context.Context, userID string) (*auth.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return s.scanUser(s.db.QueryRowContext(ctx, query, userID))
}

// CreateIfAbsent inserts the user unless a row for the same (tenant, email)
// pair already exists, then returns the surviving row. The unique index on
// (tenant_id, lower(email)) makes concurrent first logins converge on a
// single row.
func (s *UserStore) CreateIfAbsent(ctx context.Context, user *auth.User) (*auth.User, error) {
	insert := `
		INSERT INTO users (id, tenant_id, email, first_name, last_name, role, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (tenant_id, lower(email)) DO NOTHING`

	_, err := s.db.ExecContext(ctx, insert,
		user.ID,
		user.TenantID,
		user.Email,
		user.FirstName,
		user.LastName,
		user.Role,
		user.PasswordHash,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	// Re-select rather than RETURNING: on conflict the insert returns no
	// row, and the existing row is the one the caller must see.
	existing, err := s.GetByTenantEmail(ctx, user.TenantID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to read back user: %w", err)
	}
	return existing, nil
}

func (s *UserStore) scanUser(row *sql.Row) (*auth.User, error) {
	var user auth.User
	err := row.Scan(
		&user.ID,
		&user.TenantID,
		&user.Email,
		&user.FirstName,
		&user.LastName,
		&user.Role,
		&user.PasswordHash,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}
