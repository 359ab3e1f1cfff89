// Package audit records a persistent trail of federation security events.
//
// # Overview
//
// Every login attempt that reaches the gateway produces an audit event:
// successful logins, rejected logins, and auto-provisioned accounts. Events
// are written to PostgreSQL so that tenant operators can reconstruct who
// signed in, from where, and through which identity provider, independently
// of the structured request logs.
//
// Audit writes are best effort. A failed write never fails the login that
// produced it; the error is surfaced to the caller so it can be logged.
//
// # Usage Example
//
//	store := audit.NewStore(db)
//	err := store.Record(ctx, &audit.Event{
//		Type:     audit.EventLoginSuccess,
//		TenantID: "tenant-1",
//		UserID:   user.ID,
//		Provider: "google",
//	})
//
// # Related Packages
//
//   - pkg/sso: emits audit events from the login flows
//   - pkg/storage/postgres: owns the audit_events table migration
package audit
