package storage

import (
	"context"
	"time"

	"taskuno-backend/internal/models"
)

func (s *Storage) CreateEmailLog(ctx context.Context, e *models.EmailLog) error {
	query := `
		INSERT INTO email_log (to_email, subject, body, status, sent_at, retry_count)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`
	return s.db.QueryRowContext(ctx, query,
		e.ToEmail, e.Subject, e.Body, e.Status, e.SentAt, e.RetryCount,
	).Scan(&e.ID, &e.CreatedAt)
}

func (s *Storage) MarkEmailSent(ctx context.Context, id int64) error {
	now := time.Now()
	_, err := s.db.ExecContext(ctx,
		`UPDATE email_log SET status = $1, sent_at = $2 WHERE id = $3`,
		models.EmailStatusSent, now, id)
	return err
}

func (s *Storage) MarkEmailFailed(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE email_log SET status = $1, retry_count = retry_count + 1 WHERE id = $2`,
		models.EmailStatusFailed, id)
	return err
}
