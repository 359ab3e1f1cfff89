package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SessionStore persists login sessions
type SessionStore interface {
	// Create inserts a brand-new session row. It never updates an existing
	// row; concurrent logins for the same user produce independent sessions.
	Create(ctx context.Context, session *Session) error

	// Revoke marks the user's session revoked, invalidating its refresh
	// credential. Returns ErrNotFound when the session does not exist or
	// belongs to a different user.
	Revoke(ctx context.Context, sessionID, userID string) error

	// PurgeExpired deletes sessions whose expiry has passed and returns the
	// number of rows removed
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

// Issuer mints token pairs and records the backing session
type Issuer struct {
	signer     *TokenSigner
	sessions   SessionStore
	sessionTTL time.Duration
	now        func() time.Time
}

// NewIssuer creates a session issuer. sessionTTL bounds refresh validity and
// defaults to 7 days.
func NewIssuer(signer *TokenSigner, sessions SessionStore, sessionTTL time.Duration) *Issuer {
	if sessionTTL <= 0 {
		sessionTTL = 7 * 24 * time.Hour
	}
	return &Issuer{
		signer:     signer,
		sessions:   sessions,
		sessionTTL: sessionTTL,
		now:        time.Now,
	}
}

// Issue mints a token pair for the user and persists a new session record.
// Every call creates a fresh session; nothing is reused across logins.
func (i *Issuer) Issue(ctx context.Context, user *User, client ClientInfo) (*TokenPair, *Session, error) {
	now := i.now()

	pair, err := i.signer.SignPair(user, now)
	if err != nil {
		return nil, nil, err
	}

	session := &Session{
		ID:           uuid.NewString(),
		UserID:       user.ID,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresAt:    now.Add(i.sessionTTL),
		IPAddress:    client.IPAddress,
		UserAgent:    client.UserAgent,
		CreatedAt:    now,
	}

	if err := i.sessions.Create(ctx, session); err != nil {
		return nil, nil, fmt.Errorf("failed to create session: %w", err)
	}

	return pair, session, nil
}

// Revoke invalidates one of the user's sessions. Ownership is enforced by the
// store; revoking another user's session reports ErrNotFound.
func (i *Issuer) Revoke(ctx context.Context, sessionID, userID string) error {
	return i.sessions.Revoke(ctx, sessionID, userID)
}
