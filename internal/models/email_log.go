package models

import "time"

const (
	EmailStatusPending = "pending"
	EmailStatusSent    = "sent"
	EmailStatusFailed  = "failed"
)

// EmailLog records one delivery attempt made by the email worker.
type EmailLog struct {
	ID         int64      `json:"id" db:"id"`
	ToEmail    string     `json:"to_email" db:"to_email"`
	Subject    string     `json:"subject" db:"subject"`
	Body       string     `json:"body" db:"body"`
	Status     string     `json:"status" db:"status"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	SentAt     *time.Time `json:"sent_at" db:"sent_at"`
	RetryCount int        `json:"retry_count" db:"retry_count"`
}
