package models

import "database/sql"

const (
	RoleProductOwner = "Product Owner"
	RoleDeveloper    = "Developer"
	RoleAdmin        = "admin"
)

type ProductOwner struct {
	ID             int64          `json:"id" db:"id"`
	Username       sql.NullString `json:"-" db:"username"`
	Email          string         `json:"email" db:"email"`
	FirstName      string         `json:"firstName" db:"first_name"`
	LastName       string         `json:"lastName" db:"last_name"`
	PasswordHash   string         `json:"-" db:"password"`
	OrganizationID int64          `json:"organization_id" db:"organization_id"`
}

type Developer struct {
	ID             int64          `json:"id" db:"id"`
	Username       sql.NullString `json:"-" db:"username"`
	Email          string         `json:"email" db:"email"`
	FirstName      string         `json:"firstName" db:"first_name"`
	LastName       string         `json:"lastName" db:"last_name"`
	PasswordHash   string         `json:"-" db:"password"`
	OwnerID        *int64         `json:"owner_id" db:"owner_id"`
	OrganizationID int64          `json:"organization_id" db:"organization_id"`
}

// UserProfile is the role-agnostic view returned by the auth endpoints.
type UserProfile struct {
	ID               int64  `json:"id"`
	Email            string `json:"email"`
	FirstName        string `json:"firstName"`
	LastName         string `json:"lastName"`
	Role             string `json:"role"`
	OrganizationID   int64  `json:"organization_id"`
	OrganizationName string `json:"organization_name,omitempty"`
}

// UserSummary is the trimmed shape embedded in task and project responses.
type UserSummary struct {
	ID        int64  `json:"id" db:"id"`
	Email     string `json:"email" db:"email"`
	FirstName string `json:"firstName" db:"first_name"`
	LastName  string `json:"lastName" db:"last_name"`
}
