package audit

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// Recorder accepts audit events for durable storage
type Recorder interface {
	Record(ctx context.Context, event *Event) error
}

// Store persists audit events to PostgreSQL. The audit_events table is
// created by the storage migrations.
type Store struct {
	db *sql.DB
}

// NewStore creates an audit store backed by the given database
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Record inserts the event and fills in its generated ID. A zero CreatedAt
// is stamped with the current time.
func (s *Store) Record(ctx context.Context, event *Event) error {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO audit_events (type, tenant_id, user_id, provider, detail, ip_address, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`
	err := s.db.QueryRowContext(ctx, query,
		event.Type, event.TenantID, event.UserID, event.Provider,
		event.Detail, event.IPAddress, event.UserAgent, event.CreatedAt,
	).Scan(&event.ID)
	if err != nil {
		return fmt.Errorf("failed to insert audit event: %w", err)
	}
	return nil
}

// Query returns events matching the filter, newest first
func (s *Store) Query(ctx context.Context, filter Filter) ([]*Event, error) {
	var (
		conditions []string
		args       []interface{}
	)
	if filter.TenantID != "" {
		args = append(args, filter.TenantID)
		conditions = append(conditions, fmt.Sprintf("tenant_id = $%d", len(args)))
	}
	if filter.Type != "" {
		args = append(args, filter.Type)
		conditions = append(conditions, fmt.Sprintf("type = $%d", len(args)))
	}
	if !filter.Since.IsZero() {
		args = append(args, filter.Since)
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", len(args)))
	}

	query := "SELECT id, type, tenant_id, user_id, provider, detail, ip_address, user_agent, created_at FROM audit_events"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC"

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += fmt.Sprintf(" LIMIT $%d", len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit events: %w", err)
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		var event Event
		if err := rows.Scan(
			&event.ID, &event.Type, &event.TenantID, &event.UserID,
			&event.Provider, &event.Detail, &event.IPAddress, &event.UserAgent,
			&event.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}
		events = append(events, &event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate audit events: %w", err)
	}
	return events, nil
}
