package mailer

import (
	"errors"
	"fmt"
	"log"
	"net/smtp"
	"os"
	"strings"

	"taskuno-backend/internal/models"
)

// ErrNotConfigured is returned when no SMTP relay is configured; the
// message is logged instead of delivered.
var ErrNotConfigured = errors.New("smtp relay not configured")

// Sender delivers a single notification email.
type Sender interface {
	Send(to, subject, body string) error
}

// SMTPClient sends mail through a plain SMTP relay. When SMTP_HOST is not
// configured the client logs the message instead of sending, which keeps
// local development working without a relay.
type SMTPClient struct {
	host     string
	port     string
	username string
	password string
	from     string
}

func NewSMTPClient() *SMTPClient {
	return &SMTPClient{
		host:     os.Getenv("SMTP_HOST"),
		port:     getEnv("SMTP_PORT", "587"),
		username: os.Getenv("SMTP_USER"),
		password: os.Getenv("SMTP_PASSWORD"),
		from:     getEnv("SMTP_FROM", "noreply@taskuno.local"),
	}
}

func (c *SMTPClient) Send(to, subject, body string) error {
	if c.host == "" {
		log.Printf("INFO No SMTP_HOST configured, logging email to %s: %s", to, subject)
		return ErrNotConfigured
	}

	msg := strings.Join([]string{
		"From: " + c.from,
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=\"utf-8\"",
		"",
		body,
	}, "\r\n")

	addr := c.host + ":" + c.port
	var auth smtp.Auth
	if c.username != "" {
		auth = smtp.PlainAuth("", c.username, c.password, c.host)
	}

	if err := smtp.SendMail(addr, auth, c.from, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("smtp send to %s: %w", to, err)
	}
	return nil
}

// Subject builds the subject line for a task event.
func Subject(event *models.TaskEvent) string {
	switch event.EventType {
	case models.EventTaskCreated:
		return "New Task Assigned: " + event.TaskTitle
	case models.EventTaskDeleted:
		return "Task Deleted: " + event.TaskTitle
	default:
		return "Task Updated: " + event.TaskTitle
	}
}

// Body renders the plain text notification for a task event.
func Body(event *models.TaskEvent) string {
	var b strings.Builder

	switch event.EventType {
	case models.EventTaskCreated:
		fmt.Fprintf(&b, "A new task %q was created", event.TaskTitle)
	case models.EventTaskDeleted:
		fmt.Fprintf(&b, "The task %q was deleted", event.TaskTitle)
	default:
		fmt.Fprintf(&b, "The task %q was updated", event.TaskTitle)
	}
	if event.OrganizationName != "" {
		fmt.Fprintf(&b, " in %s", event.OrganizationName)
	}
	if event.UpdatedByEmail != "" {
		fmt.Fprintf(&b, " by %s", event.UpdatedByEmail)
	}
	b.WriteString(".\n")

	if len(event.Changes) > 0 {
		b.WriteString("\nChanges:\n")
		for field, change := range event.Changes {
			fmt.Fprintf(&b, "  %s: %q -> %q\n", field, change.Old, change.New)
		}
	}
	if event.Reason != "" {
		fmt.Fprintf(&b, "\nReason: %s\n", event.Reason)
	}

	return b.String()
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
