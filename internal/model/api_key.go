package model

import "time"

// API key roles. Owner keys may trigger billing runs and mutate
// subscriptions; viewer keys get the read side only.
const (
	RoleOwner  = "owner"
	RoleViewer = "viewer"
)

// APIKey represents an API key for authenticating against the billing API.
type APIKey struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	KeyHash   string     `json:"-"`
	KeyPrefix string     `json:"key_prefix,omitempty"`
	Role      string     `json:"role"`
	CreatedAt time.Time  `json:"created_at"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
}
