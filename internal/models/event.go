package models

import "time"

const (
	EventTaskCreated = "task_created"
	EventTaskUpdated = "task_updated"
	EventTaskDeleted = "task_deleted"
)

// TaskEvent is the wire format for entries on the task events queue.
type TaskEvent struct {
	EventID          string            `json:"event_id"`
	EventType        string            `json:"event_type"`
	TaskID           int64             `json:"task_id"`
	TaskTitle        string            `json:"task_title"`
	AssignedToEmail  string            `json:"assigned_to_email,omitempty"`
	ReportingToEmail string            `json:"reporting_to_email,omitempty"`
	UpdatedByID      int64             `json:"updated_by_id"`
	UpdatedByEmail   string            `json:"updated_by_email,omitempty"`
	UpdatedByRole    string            `json:"updated_by_role,omitempty"`
	OrganizationID   int64             `json:"organization_id"`
	OrganizationName string            `json:"organization_name,omitempty"`
	Changes          map[string]Change `json:"changes,omitempty"`
	Reason           string            `json:"reason,omitempty"`
	Timestamp        time.Time         `json:"timestamp"`
}

// Change carries the old and new value of a single updated field.
type Change struct {
	Old string `json:"old,omitempty"`
	New string `json:"new,omitempty"`
}

// ChartNode is one product owner with the developers they invited.
type ChartNode struct {
	Owner      UserSummary   `json:"owner" msgpack:"owner"`
	Developers []UserSummary `json:"developers" msgpack:"developers"`
}

// OrganizationChart is the cached /organization/chart response.
type OrganizationChart struct {
	OrganizationID   int64         `json:"organization_id" msgpack:"organization_id"`
	OrganizationName string        `json:"organization_name" msgpack:"organization_name"`
	Nodes            []ChartNode   `json:"nodes" msgpack:"nodes"`
	Unassigned       []UserSummary `json:"unassigned_developers" msgpack:"unassigned_developers"`
}
