package storage

import (
	"context"
	"database/sql"

	"taskuno-backend/internal/models"
)

func (s *Storage) CreateOrganization(ctx context.Context, name string) (*models.Organization, error) {
	query := `
		INSERT INTO organization (name)
		VALUES ($1)
		RETURNING id, name
	`

	var org models.Organization
	err := s.db.QueryRowContext(ctx, query, name).Scan(&org.ID, &org.Name)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrOrgExists
		}
		return nil, err
	}

	return &org, nil
}

func (s *Storage) GetOrganization(ctx context.Context, id int64) (*models.Organization, error) {
	query := `SELECT id, name FROM organization WHERE id = $1`

	var org models.Organization
	err := s.db.QueryRowContext(ctx, query, id).Scan(&org.ID, &org.Name)
	if err == sql.ErrNoRows {
		return nil, ErrOrgNotFound
	}
	if err != nil {
		return nil, err
	}

	return &org, nil
}

func (s *Storage) GetOrganizationByName(ctx context.Context, name string) (*models.Organization, error) {
	query := `SELECT id, name FROM organization WHERE LOWER(name) = LOWER($1)`

	var org models.Organization
	err := s.db.QueryRowContext(ctx, query, name).Scan(&org.ID, &org.Name)
	if err == sql.ErrNoRows {
		return nil, ErrOrgNotFound
	}
	if err != nil {
		return nil, err
	}

	return &org, nil
}

func (s *Storage) ListOrganizations(ctx context.Context) ([]models.Organization, error) {
	var orgs []models.Organization
	query := `SELECT id, name FROM organization ORDER BY name`
	err := s.db.SelectContext(ctx, &orgs, query)
	return orgs, err
}
