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

func TestSessionStore_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now()
	session := &auth.Session{
		ID:           "session-1",
		UserID:       "user-1",
		AccessToken:  "access",
		RefreshToken: "refresh",
		ExpiresAt:    now.Add(7 * 24 * time.Hour),
		IPAddress:    "203.0.113.7",
		UserAgent:    "test-agent",
		CreatedAt:    now,
	}

	mock.ExpectExec("INSERT INTO sessions").
		WithArgs("session-1", "user-1", "access", "refresh", session.ExpiresAt, "203.0.113.7", "test-agent", false, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, NewSessionStore(db).Create(context.Background(), session))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionStore_Revoke(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("UPDATE sessions SET revoked").
		WithArgs("session-1", "user-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, NewSessionStore(db).Revoke(context.Background(), "session-1", "user-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionStore_Revoke_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("UPDATE sessions SET revoked").
		WithArgs("nope", "user-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = NewSessionStore(db).Revoke(context.Background(), "nope", "user-1")
	assert.ErrorIs(t, err, auth.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionStore_Revoke_WrongOwner(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("UPDATE sessions SET revoked").
		WithArgs("session-1", "someone-else").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = NewSessionStore(db).Revoke(context.Background(), "session-1", "someone-else")
	assert.ErrorIs(t, err, auth.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionStore_PurgeExpired(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now()
	mock.ExpectExec("DELETE FROM sessions WHERE expires_at").
		WithArgs(now).
		WillReturnResult(sqlmock.NewResult(0, 3))

	purged, err := NewSessionStore(db).PurgeExpired(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, int64(3), purged)
	assert.NoError(t, mock.ExpectationsWereMet())
}
