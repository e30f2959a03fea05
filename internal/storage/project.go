package storage

import (
	"context"
	"database/sql"

	"taskuno-backend/internal/models"
)

func (s *Storage) CreateProject(ctx context.Context, p *models.Project) error {
	query := `
		INSERT INTO project (title, description, owner_id, organization_id, created_by_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_date
	`
	return s.db.QueryRowContext(ctx, query,
		p.Title, p.Description, p.OwnerID, p.OrganizationID, p.CreatedByID,
	).Scan(&p.ID, &p.CreatedDate)
}

const projectColumns = `id, created_date, title, description, owner_id, organization_id, created_by_id`

func (s *Storage) GetProject(ctx context.Context, id, orgID int64) (*models.Project, error) {
	var p models.Project
	query := `SELECT ` + projectColumns + ` FROM project WHERE id = $1 AND organization_id = $2`
	if err := s.db.GetContext(ctx, &p, query, id, orgID); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrProjectNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (s *Storage) ListProjects(ctx context.Context, orgID int64) ([]models.Project, error) {
	var projects []models.Project
	query := `SELECT ` + projectColumns + ` FROM project WHERE organization_id = $1 ORDER BY created_date DESC`
	err := s.db.SelectContext(ctx, &projects, query, orgID)
	return projects, err
}

func (s *Storage) UpdateProject(ctx context.Context, id, orgID int64, input models.UpdateProjectInput) (*models.Project, error) {
	query := `
		UPDATE project
		SET title = COALESCE($1, title),
		    description = COALESCE($2, description)
		WHERE id = $3 AND organization_id = $4
		RETURNING ` + projectColumns

	var p models.Project
	err := s.db.QueryRowContext(ctx, query, input.Title, input.Description, id, orgID).Scan(
		&p.ID, &p.CreatedDate, &p.Title, &p.Description, &p.OwnerID, &p.OrganizationID, &p.CreatedByID,
	)
	if err == sql.ErrNoRows {
		return nil, ErrProjectNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Storage) DeleteProject(ctx context.Context, id, orgID int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM project WHERE id = $1 AND organization_id = $2`, id, orgID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrProjectNotFound
	}
	return nil
}
