package storage

import (
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

var (
	ErrOrgNotFound     = errors.New("organization not found")
	ErrOrgExists       = errors.New("organization already exists")
	ErrEmailTaken      = errors.New("email already exists in this organization")
	ErrUserNotFound    = errors.New("user not found")
	ErrProjectNotFound = errors.New("project not found")
	ErrTaskNotFound    = errors.New("task not found")
)

type Storage struct {
	db *sqlx.DB
}

func NewStorage(db *sqlx.DB) *Storage {
	return &Storage{db: db}
}

func (s *Storage) Ping() error {
	return s.db.Ping()
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}

func nullIfEmpty(value string) interface{} {
	if value == "" {
		return nil
	}
	return value
}
