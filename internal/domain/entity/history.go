package entity

import "time"

// AuditLog is one advisory audit entry
type AuditLog struct {
	ID           int64     `json:"id"`
	Action       string    `json:"action"`
	ResourceType string    `json:"resource_type"`
	ResourceID   int64     `json:"resource_id"`
	ActorID      int64     `json:"actor_id"`
	ActorEmail   string    `json:"actor_email"`
	ActorRole    string    `json:"actor_role"`
	Details      string    `json:"details,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// Actor identifies who performs an operation. It is passed explicitly to
// every workflow call.
type Actor struct {
	UserID int64  `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
}

// IsZero reports whether no actor was supplied
func (a Actor) IsZero() bool {
	return a.UserID == 0
}
