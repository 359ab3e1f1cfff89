package audit

import "time"

// EventType categorizes an audit event
type EventType string

const (
	// EventLoginSuccess records a completed federated login
	EventLoginSuccess EventType = "login.success"
	// EventLoginFailure records a rejected login attempt
	EventLoginFailure EventType = "login.failure"
	// EventUserProvisioned records a user account created on first login
	EventUserProvisioned EventType = "user.provisioned"
)

// Event is a single audit log entry
type Event struct {
	ID        int64     `json:"id"`
	Type      EventType `json:"type"`
	TenantID  string    `json:"tenant_id,omitempty"`
	UserID    string    `json:"user_id,omitempty"`
	Provider  string    `json:"provider,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	IPAddress string    `json:"ip_address,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Filter narrows a query over recorded events
type Filter struct {
	TenantID string
	Type     EventType
	Since    time.Time
	Limit    int
}
