package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/platinummonkey/fedgate/pkg/auth"
)

// SessionStore persists login sessions in PostgreSQL
type SessionStore struct {
	db *sql.DB
}

// NewSessionStore creates a session store backed by db
func NewSessionStore(db *sql.DB) *SessionStore {
	return &SessionStore{db: db}
}

// Create inserts a new session row
func (s *SessionStore) Create(ctx context.Context, session *auth.Session) error {
	query := `
		INSERT INTO sessions (id, user_id, access_token, refresh_token, expires_at, ip_address, user_agent, revoked, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := s.db.ExecContext(ctx, query,
		session.ID,
		session.UserID,
		session.AccessToken,
		session.RefreshToken,
		session.ExpiresAt,
		session.IPAddress,
		session.UserAgent,
		session.Revoked,
		session.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// Revoke marks the user's session revoked. Revoking an unknown session, or a
// session owned by another user, returns auth.ErrNotFound.
func (s *SessionStore) Revoke(ctx context.Context, sessionID, userID string) error {
	result, err := s.db.ExecContext(ctx, `UPDATE sessions SET revoked = TRUE WHERE id = $1 AND user_id = $2`, sessionID, userID)
	if err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	if affected == 0 {
		return auth.ErrNotFound
	}
	return nil
}

// PurgeExpired deletes sessions whose expiry has passed and returns the
// number of rows removed
func (s *SessionStore) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to purge sessions: %w", err)
	}

	purged, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to purge sessions: %w", err)
	}
	return purged, nil
}
