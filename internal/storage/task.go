package storage

import (
	"context"
	"database/sql"

	"taskuno-backend/internal/models"
)

func (s *Storage) CreateTask(ctx context.Context, t *models.Task) error {
	query := `
		INSERT INTO task (title, description, status, project_id, due_date, assigned_to, reporting_to)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_date
	`
	return s.db.QueryRowContext(ctx, query,
		t.Title, t.Description, t.Status, t.ProjectID, t.DueDate, t.AssignedTo, t.ReportingTo,
	).Scan(&t.ID, &t.CreatedDate)
}

const taskColumns = `t.id, t.created_date, t.due_date, t.title, t.description, t.status,
	t.project_id, t.assigned_to, t.reporting_to`

// GetTask returns a task scoped to the organization through its project.
func (s *Storage) GetTask(ctx context.Context, id, orgID int64) (*models.Task, error) {
	var t models.Task
	query := `
		SELECT ` + taskColumns + `
		FROM task t
		JOIN project p ON p.id = t.project_id
		WHERE t.id = $1 AND p.organization_id = $2
	`
	if err := s.db.GetContext(ctx, &t, query, id, orgID); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrTaskNotFound
		}
		return nil, err
	}
	return &t, nil
}

func (s *Storage) ListTasks(ctx context.Context, orgID int64) ([]models.Task, error) {
	var tasks []models.Task
	query := `
		SELECT ` + taskColumns + `
		FROM task t
		JOIN project p ON p.id = t.project_id
		WHERE p.organization_id = $1
		ORDER BY t.created_date DESC
	`
	err := s.db.SelectContext(ctx, &tasks, query, orgID)
	return tasks, err
}

func (s *Storage) UpdateTask(ctx context.Context, t *models.Task) error {
	query := `
		UPDATE task
		SET title = $1, description = $2, status = $3, project_id = $4,
		    due_date = $5, assigned_to = $6, reporting_to = $7
		WHERE id = $8
	`
	res, err := s.db.ExecContext(ctx, query,
		t.Title, t.Description, t.Status, t.ProjectID, t.DueDate, t.AssignedTo, t.ReportingTo, t.ID,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrTaskNotFound
	}
	return nil
}

func (s *Storage) DeleteTask(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM task WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrTaskNotFound
	}
	return nil
}

func (s *Storage) CreateTaskLog(ctx context.Context, taskID int64, reason, oldStatus, newStatus *string) error {
	query := `
		INSERT INTO task_log (task_id, reason, old_status, new_status)
		VALUES ($1, $2, $3, $4)
	`
	_, err := s.db.ExecContext(ctx, query, taskID, reason, oldStatus, newStatus)
	return err
}

func (s *Storage) ListTaskLogs(ctx context.Context, orgID int64) ([]models.TaskLog, error) {
	var logs []models.TaskLog
	query := `
		SELECT l.id, l.created_date, l.task_id, l.reason, l.old_status, l.new_status
		FROM task_log l
		JOIN task t ON t.id = l.task_id
		JOIN project p ON p.id = t.project_id
		WHERE p.organization_id = $1
		ORDER BY l.created_date DESC
	`
	err := s.db.SelectContext(ctx, &logs, query, orgID)
	return logs, err
}
