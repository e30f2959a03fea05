package projects

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"taskuno-backend/internal/auth"
	"taskuno-backend/internal/models"
	"taskuno-backend/internal/storage"
)

type Store interface {
	CreateProject(ctx context.Context, p *models.Project) error
	GetProject(ctx context.Context, id, orgID int64) (*models.Project, error)
	ListProjects(ctx context.Context, orgID int64) ([]models.Project, error)
	UpdateProject(ctx context.Context, id, orgID int64, input models.UpdateProjectInput) (*models.Project, error)
	DeleteProject(ctx context.Context, id, orgID int64) error
	GetProductOwner(ctx context.Context, id int64) (*models.ProductOwner, error)
	LogAudit(ctx context.Context, employeeID int64, roleType, action string, orgID int64, resourceType string, resourceID int64, details map[string]interface{})
}

type Handler struct {
	store Store
}

func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

// Create adds a project owned by the calling Product Owner.
// @Summary Create a project
// @Tags project
// @Accept json
// @Produce json
// @Param project body models.CreateProjectInput true "Project data"
// @Success 201 {object} models.Project
// @Failure 403 {string} string "Developers cannot create projects"
// @Security BearerAuth
// @Router /project/ [post]
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	if claims.Role == models.RoleDeveloper {
		http.Error(w, "Only Product Owner can create projects", http.StatusForbidden)
		return
	}

	var input models.CreateProjectInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if input.Title == "" {
		http.Error(w, "Title required", http.StatusBadRequest)
		return
	}

	createdBy := claims.UserID
	project := &models.Project{
		Title:          input.Title,
		Description:    input.Description,
		OwnerID:        claims.UserID,
		OrganizationID: claims.OrgID,
		CreatedByID:    &createdBy,
	}
	if err := h.store.CreateProject(r.Context(), project); err != nil {
		http.Error(w, "Failed to create project", http.StatusInternalServerError)
		return
	}
	h.attachCreatedBy(r.Context(), project)

	h.store.LogAudit(r.Context(), claims.UserID, claims.Role, "project_created", claims.OrgID, "project", project.ID,
		map[string]interface{}{"title": project.Title})

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(project)
}

// List returns the organization's projects.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	projects, err := h.store.ListProjects(r.Context(), claims.OrgID)
	if err != nil {
		http.Error(w, "Failed to list projects", http.StatusInternalServerError)
		return
	}
	for i := range projects {
		h.attachCreatedBy(r.Context(), &projects[i])
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(projects)
}

// Get returns a single project scoped to the caller's organization.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	id, err := pathID(r)
	if err != nil {
		http.Error(w, "Invalid project id", http.StatusBadRequest)
		return
	}

	project, err := h.store.GetProject(r.Context(), id, claims.OrgID)
	if err != nil {
		if errors.Is(err, storage.ErrProjectNotFound) {
			http.Error(w, "Project not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to fetch project", http.StatusInternalServerError)
		return
	}
	h.attachCreatedBy(r.Context(), project)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(project)
}

// Update patches title and description.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	if claims.Role == models.RoleDeveloper {
		http.Error(w, "Only Product Owner can update projects", http.StatusForbidden)
		return
	}

	id, err := pathID(r)
	if err != nil {
		http.Error(w, "Invalid project id", http.StatusBadRequest)
		return
	}

	var input models.UpdateProjectInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	project, err := h.store.UpdateProject(r.Context(), id, claims.OrgID, input)
	if err != nil {
		if errors.Is(err, storage.ErrProjectNotFound) {
			http.Error(w, "Project not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to update project", http.StatusInternalServerError)
		return
	}
	h.attachCreatedBy(r.Context(), project)

	h.store.LogAudit(r.Context(), claims.UserID, claims.Role, "project_updated", claims.OrgID, "project", project.ID, nil)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(project)
}

// Delete removes a project and, through cascade, its tasks.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	if claims.Role == models.RoleDeveloper {
		http.Error(w, "Only Product Owner can delete projects", http.StatusForbidden)
		return
	}

	id, err := pathID(r)
	if err != nil {
		http.Error(w, "Invalid project id", http.StatusBadRequest)
		return
	}

	if err := h.store.DeleteProject(r.Context(), id, claims.OrgID); err != nil {
		if errors.Is(err, storage.ErrProjectNotFound) {
			http.Error(w, "Project not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to delete project", http.StatusInternalServerError)
		return
	}

	h.store.LogAudit(r.Context(), claims.UserID, claims.Role, "project_deleted", claims.OrgID, "project", id, nil)

	w.WriteHeader(http.StatusNoContent)
}

// attachCreatedBy fills the creator summary when the reference survives.
func (h *Handler) attachCreatedBy(ctx context.Context, p *models.Project) {
	if p.CreatedByID == nil {
		return
	}
	if po, err := h.store.GetProductOwner(ctx, *p.CreatedByID); err == nil {
		p.CreatedBy = &models.UserSummary{ID: po.ID, Email: po.Email, FirstName: po.FirstName, LastName: po.LastName}
	}
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}
