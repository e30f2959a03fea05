package models

import "time"

type Task struct {
	ID          int64      `json:"id" db:"id"`
	CreatedDate time.Time  `json:"createdDate" db:"created_date"`
	DueDate     *time.Time `json:"dueDate" db:"due_date"`
	Title       string     `json:"title" db:"title"`
	Description string     `json:"description" db:"description"`
	Status      string     `json:"status" db:"status"`
	ProjectID   int64      `json:"project_id" db:"project_id"`
	AssignedTo  *int64     `json:"assigned_to" db:"assigned_to"`
	ReportingTo int64      `json:"reporting_to" db:"reporting_to"`

	Project       *ProjectRef  `json:"project,omitempty" db:"-"`
	AssignedUser  *UserSummary `json:"assigned_to_user,omitempty" db:"-"`
	ReportingUser *UserSummary `json:"reporting_to_user,omitempty" db:"-"`
}

// ProjectRef is the project summary embedded in task responses.
type ProjectRef struct {
	ID    int64  `json:"id" db:"id"`
	Title string `json:"title" db:"title"`
}

type TaskLog struct {
	ID          int64     `json:"id" db:"id"`
	CreatedDate time.Time `json:"createdDate" db:"created_date"`
	TaskID      int64     `json:"task_id" db:"task_id"`
	Reason      *string   `json:"reason" db:"reason"`
	OldStatus   *string   `json:"old_status" db:"old_status"`
	NewStatus   *string   `json:"new_status" db:"new_status"`
}

type CreateTaskInput struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      string     `json:"status"`
	ProjectID   int64      `json:"project_id"`
	DueDate     *time.Time `json:"dueDate"`
	AssignedTo  int64      `json:"assigned_to"`
	ReportingTo int64      `json:"reporting_to"`
}

type UpdateTaskInput struct {
	Title              *string    `json:"title"`
	Description        *string    `json:"description"`
	Status             *string    `json:"status"`
	ProjectID          *int64     `json:"project_id"`
	DueDate            *time.Time `json:"dueDate"`
	AssignedTo         *int64     `json:"assigned_to"`
	ReportingTo        *int64     `json:"reporting_to"`
	StatusChangeReason *string    `json:"status_change_reason"`
}
