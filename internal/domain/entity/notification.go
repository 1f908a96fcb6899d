package entity

import "time"

// Notification is the durable record of a message addressed to a user
type Notification struct {
	ID           int64      `json:"id"`
	RecipientID  int64      `json:"recipient_id"`
	Title        string     `json:"title"`
	Body         string     `json:"body"`
	RelatedID    int64      `json:"related_id"`
	Category     string     `json:"category"`
	Priority     string     `json:"priority"`
	Status       string     `json:"status"`
	Attempts     int        `json:"attempts"`
	Read         bool       `json:"read"`
	SentAt       *time.Time `json:"sent_at,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}
