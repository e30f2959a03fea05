package models

import "time"

type Project struct {
	ID             int64     `json:"id" db:"id"`
	CreatedDate    time.Time `json:"createdDate" db:"created_date"`
	Title          string    `json:"title" db:"title"`
	Description    string    `json:"description" db:"description"`
	OwnerID        int64     `json:"owner_id" db:"owner_id"`
	OrganizationID int64     `json:"organization_id" db:"organization_id"`
	CreatedByID    *int64    `json:"created_by_id" db:"created_by_id"`

	CreatedBy *UserSummary `json:"created_by,omitempty" db:"-"`
}

type CreateProjectInput struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

type UpdateProjectInput struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
}
