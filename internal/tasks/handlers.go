package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"taskuno-backend/internal/auth"
	"taskuno-backend/internal/hub"
	"taskuno-backend/internal/models"
	"taskuno-backend/internal/queue"
	"taskuno-backend/internal/storage"
)

const defaultStatus = "To Do"

type Store interface {
	CreateTask(ctx context.Context, t *models.Task) error
	GetTask(ctx context.Context, id, orgID int64) (*models.Task, error)
	ListTasks(ctx context.Context, orgID int64) ([]models.Task, error)
	UpdateTask(ctx context.Context, t *models.Task) error
	DeleteTask(ctx context.Context, id int64) error
	CreateTaskLog(ctx context.Context, taskID int64, reason, oldStatus, newStatus *string) error
	ListTaskLogs(ctx context.Context, orgID int64) ([]models.TaskLog, error)
	GetProject(ctx context.Context, id, orgID int64) (*models.Project, error)
	GetDeveloper(ctx context.Context, id int64) (*models.Developer, error)
	GetProductOwner(ctx context.Context, id int64) (*models.ProductOwner, error)
	GetOrganization(ctx context.Context, id int64) (*models.Organization, error)
	LogAudit(ctx context.Context, employeeID int64, roleType, action string, orgID int64, resourceType string, resourceID int64, details map[string]interface{})
}

type Handler struct {
	store  Store
	events queue.Publisher
	hub    *hub.Hub
}

func NewHandler(store Store, events queue.Publisher, eventHub *hub.Hub) *Handler {
	return &Handler{store: store, events: events, hub: eventHub}
}

// Create adds a task after validating that the project, assignee and
// reporting owner all belong to the caller's organization.
// @Summary Create a task
// @Tags task
// @Accept json
// @Produce json
// @Param task body models.CreateTaskInput true "Task data"
// @Success 201 {object} models.Task
// @Failure 400 {string} string "Validation error"
// @Security BearerAuth
// @Router /task/ [post]
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	if claims.Role == models.RoleDeveloper {
		http.Error(w, "Only Product Owner can create tasks", http.StatusForbidden)
		return
	}

	var input models.CreateTaskInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if input.Title == "" || input.ProjectID == 0 {
		http.Error(w, "Title and project_id required", http.StatusBadRequest)
		return
	}
	if input.Status == "" {
		input.Status = defaultStatus
	}

	ctx := r.Context()
	project, err := h.store.GetProject(ctx, input.ProjectID, claims.OrgID)
	if err != nil {
		http.Error(w, "Project not found in your organization", http.StatusBadRequest)
		return
	}

	var assignee *models.Developer
	var assignedTo *int64
	if input.AssignedTo != 0 {
		dev, err := h.store.GetDeveloper(ctx, input.AssignedTo)
		if err != nil || dev.OrganizationID != claims.OrgID {
			http.Error(w, "Assigned developer not found in your organization", http.StatusBadRequest)
			return
		}
		assignee = dev
		assignedTo = &dev.ID
	}

	reportingTo := input.ReportingTo
	if reportingTo == 0 {
		reportingTo = claims.UserID
	}
	owner, err := h.store.GetProductOwner(ctx, reportingTo)
	if err != nil || owner.OrganizationID != claims.OrgID {
		http.Error(w, "Reporting product owner not found in your organization", http.StatusBadRequest)
		return
	}

	task := &models.Task{
		Title:       input.Title,
		Description: input.Description,
		Status:      input.Status,
		ProjectID:   project.ID,
		DueDate:     input.DueDate,
		AssignedTo:  assignedTo,
		ReportingTo: owner.ID,
	}
	if err := h.store.CreateTask(ctx, task); err != nil {
		http.Error(w, "Failed to create task", http.StatusInternalServerError)
		return
	}
	h.attachRefs(ctx, task, claims.OrgID)

	h.store.LogAudit(ctx, claims.UserID, claims.Role, "task_created", claims.OrgID, "task", task.ID,
		map[string]interface{}{"title": task.Title, "project_id": task.ProjectID})

	event := h.newEvent(ctx, models.EventTaskCreated, task, claims)
	if assignee != nil {
		event.AssignedToEmail = assignee.Email
	}
	event.ReportingToEmail = owner.Email
	h.events.Publish(event)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(task)
}

// List returns every task in the caller's organization.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	tasksList, err := h.store.ListTasks(r.Context(), claims.OrgID)
	if err != nil {
		http.Error(w, "Failed to list tasks", http.StatusInternalServerError)
		return
	}
	for i := range tasksList {
		h.attachRefs(r.Context(), &tasksList[i], claims.OrgID)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(tasksList)
}

// Get returns a single task with its project and people attached.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	id, err := pathID(r)
	if err != nil {
		http.Error(w, "Invalid task id", http.StatusBadRequest)
		return
	}

	task, err := h.store.GetTask(r.Context(), id, claims.OrgID)
	if err != nil {
		if errors.Is(err, storage.ErrTaskNotFound) {
			http.Error(w, "Task not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to fetch task", http.StatusInternalServerError)
		return
	}
	h.attachRefs(r.Context(), task, claims.OrgID)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(task)
}

// Update patches a task. Developers may change only the status, and only on
// tasks assigned to them; anything else in their payload is rejected. A status change is recorded in the
// task log together with the supplied reason.
// @Summary Update a task
// @Tags task
// @Accept json
// @Produce json
// @Param id path int true "Task ID"
// @Param task body models.UpdateTaskInput true "Fields to update"
// @Success 200 {object} models.Task
// @Failure 403 {string} string "Developers may only update status"
// @Security BearerAuth
// @Router /task/{id} [patch]
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	id, err := pathID(r)
	if err != nil {
		http.Error(w, "Invalid task id", http.StatusBadRequest)
		return
	}

	var input models.UpdateTaskInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if claims.Role == models.RoleDeveloper && touchesBeyondStatus(input) {
		http.Error(w, "Developers can only update the task status", http.StatusForbidden)
		return
	}

	ctx := r.Context()
	task, err := h.store.GetTask(ctx, id, claims.OrgID)
	if err != nil {
		if errors.Is(err, storage.ErrTaskNotFound) {
			http.Error(w, "Task not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to fetch task", http.StatusInternalServerError)
		return
	}

	if claims.Role == models.RoleDeveloper {
		if task.AssignedTo == nil || *task.AssignedTo != claims.UserID {
			http.Error(w, "Only the assigned developer can update this task status", http.StatusForbidden)
			return
		}
	}

	changes := map[string]models.Change{}
	oldStatus := task.Status

	if input.Title != nil && *input.Title != task.Title {
		changes["title"] = models.Change{Old: task.Title, New: *input.Title}
		task.Title = *input.Title
	}
	if input.Description != nil && *input.Description != task.Description {
		changes["description"] = models.Change{Old: task.Description, New: *input.Description}
		task.Description = *input.Description
	}
	if input.Status != nil && *input.Status != task.Status {
		changes["status"] = models.Change{Old: task.Status, New: *input.Status}
		task.Status = *input.Status
	}
	if input.DueDate != nil && formatDate(input.DueDate) != formatDate(task.DueDate) {
		changes["dueDate"] = models.Change{Old: formatDate(task.DueDate), New: formatDate(input.DueDate)}
		task.DueDate = input.DueDate
	}
	if input.ProjectID != nil && *input.ProjectID != task.ProjectID {
		if _, err := h.store.GetProject(ctx, *input.ProjectID, claims.OrgID); err != nil {
			http.Error(w, "Project not found in your organization", http.StatusBadRequest)
			return
		}
		changes["project_id"] = models.Change{Old: formatID(&task.ProjectID), New: formatID(input.ProjectID)}
		task.ProjectID = *input.ProjectID
	}
	if input.AssignedTo != nil {
		if *input.AssignedTo != 0 {
			dev, err := h.store.GetDeveloper(ctx, *input.AssignedTo)
			if err != nil || dev.OrganizationID != claims.OrgID {
				http.Error(w, "Assigned developer not found in your organization", http.StatusBadRequest)
				return
			}
			changes["assigned_to"] = models.Change{Old: formatID(task.AssignedTo), New: formatID(input.AssignedTo)}
			task.AssignedTo = input.AssignedTo
		} else {
			changes["assigned_to"] = models.Change{Old: formatID(task.AssignedTo)}
			task.AssignedTo = nil
		}
	}
	if input.ReportingTo != nil && *input.ReportingTo != task.ReportingTo {
		owner, err := h.store.GetProductOwner(ctx, *input.ReportingTo)
		if err != nil || owner.OrganizationID != claims.OrgID {
			http.Error(w, "Reporting product owner not found in your organization", http.StatusBadRequest)
			return
		}
		changes["reporting_to"] = models.Change{Old: formatID(&task.ReportingTo), New: formatID(input.ReportingTo)}
		task.ReportingTo = *input.ReportingTo
	}

	if len(changes) == 0 {
		h.attachRefs(ctx, task, claims.OrgID)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(task)
		return
	}

	if err := h.store.UpdateTask(ctx, task); err != nil {
		http.Error(w, "Failed to update task", http.StatusInternalServerError)
		return
	}

	if _, changed := changes["status"]; changed {
		if err := h.store.CreateTaskLog(ctx, task.ID, input.StatusChangeReason, &oldStatus, &task.Status); err != nil {
			http.Error(w, "Failed to record status change", http.StatusInternalServerError)
			return
		}
	}
	h.attachRefs(ctx, task, claims.OrgID)

	h.store.LogAudit(ctx, claims.UserID, claims.Role, "task_updated", claims.OrgID, "task", task.ID,
		map[string]interface{}{"changed_fields": changedFields(changes)})

	event := h.newEvent(ctx, models.EventTaskUpdated, task, claims)
	event.Changes = changes
	if input.StatusChangeReason != nil {
		event.Reason = *input.StatusChangeReason
	}
	h.events.Publish(event)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(task)
}

// Delete removes a task. Developers cannot delete tasks.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	if claims.Role == models.RoleDeveloper {
		http.Error(w, "Only Product Owner can delete tasks", http.StatusForbidden)
		return
	}

	id, err := pathID(r)
	if err != nil {
		http.Error(w, "Invalid task id", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	task, err := h.store.GetTask(ctx, id, claims.OrgID)
	if err != nil {
		if errors.Is(err, storage.ErrTaskNotFound) {
			http.Error(w, "Task not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to fetch task", http.StatusInternalServerError)
		return
	}

	if err := h.store.DeleteTask(ctx, task.ID); err != nil {
		http.Error(w, "Failed to delete task", http.StatusInternalServerError)
		return
	}

	h.store.LogAudit(ctx, claims.UserID, claims.Role, "task_deleted", claims.OrgID, "task", task.ID,
		map[string]interface{}{"title": task.Title})

	h.events.Publish(h.newEvent(ctx, models.EventTaskDeleted, task, claims))

	w.WriteHeader(http.StatusNoContent)
}

// Logs returns the status change history across the organization's tasks.
func (h *Handler) Logs(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	logs, err := h.store.ListTaskLogs(r.Context(), claims.OrgID)
	if err != nil {
		http.Error(w, "Failed to list task logs", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(logs)
}

// newEvent assembles the queue payload, resolving recipient emails from the
// task's current assignee and reporting owner.
func (h *Handler) newEvent(ctx context.Context, eventType string, task *models.Task, claims *auth.Claims) *models.TaskEvent {
	event := &models.TaskEvent{
		EventType:      eventType,
		TaskID:         task.ID,
		TaskTitle:      task.Title,
		UpdatedByID:    claims.UserID,
		UpdatedByEmail: claims.Email(),
		UpdatedByRole:  claims.Role,
		OrganizationID: claims.OrgID,
	}
	if org, err := h.store.GetOrganization(ctx, claims.OrgID); err == nil {
		event.OrganizationName = org.Name
	}
	if task.AssignedTo != nil {
		if dev, err := h.store.GetDeveloper(ctx, *task.AssignedTo); err == nil {
			event.AssignedToEmail = dev.Email
		}
	}
	if owner, err := h.store.GetProductOwner(ctx, task.ReportingTo); err == nil {
		event.ReportingToEmail = owner.Email
	}
	return event
}

// attachRefs fills the embedded project and user summaries on a task.
// Lookups are best effort.
func (h *Handler) attachRefs(ctx context.Context, task *models.Task, orgID int64) {
	if project, err := h.store.GetProject(ctx, task.ProjectID, orgID); err == nil {
		task.Project = &models.ProjectRef{ID: project.ID, Title: project.Title}
	}
	if task.AssignedTo != nil {
		if dev, err := h.store.GetDeveloper(ctx, *task.AssignedTo); err == nil {
			task.AssignedUser = &models.UserSummary{ID: dev.ID, Email: dev.Email, FirstName: dev.FirstName, LastName: dev.LastName}
		}
	}
	if owner, err := h.store.GetProductOwner(ctx, task.ReportingTo); err == nil {
		task.ReportingUser = &models.UserSummary{ID: owner.ID, Email: owner.Email, FirstName: owner.FirstName, LastName: owner.LastName}
	}
}

func touchesBeyondStatus(input models.UpdateTaskInput) bool {
	return input.Title != nil || input.Description != nil || input.ProjectID != nil ||
		input.DueDate != nil || input.AssignedTo != nil || input.ReportingTo != nil
}

func changedFields(changes map[string]models.Change) []string {
	fields := make([]string, 0, len(changes))
	for field := range changes {
		fields = append(fields, field)
	}
	return fields
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}

func formatID(id *int64) string {
	if id == nil {
		return ""
	}
	return fmt.Sprintf("%d", *id)
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}
