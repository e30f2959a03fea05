package organization

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"taskuno-backend/internal/auth"
	"taskuno-backend/internal/cache"
	"taskuno-backend/internal/models"
)

const chartCacheTTL = 5 * time.Minute

type Store interface {
	ListOrganizations(ctx context.Context) ([]models.Organization, error)
	GetOrganization(ctx context.Context, id int64) (*models.Organization, error)
	ListProductOwners(ctx context.Context, orgID int64) ([]models.UserSummary, error)
	ListDevelopers(ctx context.Context, orgID int64) ([]models.UserSummary, error)
	ListDevelopersByOwner(ctx context.Context, ownerID int64) ([]models.UserSummary, error)
	ListUnassignedDevelopers(ctx context.Context, orgID int64) ([]models.UserSummary, error)
}

type Handler struct {
	store Store
	cache cache.Client
}

func NewHandler(store Store, cacheClient cache.Client) *Handler {
	return &Handler{store: store, cache: cacheClient}
}

// List returns every organization, for the registration and login pickers.
// @Summary List organizations
// @Tags organization
// @Produce json
// @Success 200 {array} models.Organization
// @Router /organization/ [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	orgs, err := h.store.ListOrganizations(r.Context())
	if err != nil {
		http.Error(w, "Failed to list organizations", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(orgs)
}

// Developers lists the developers of the caller's organization.
func (h *Handler) Developers(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	devs, err := h.store.ListDevelopers(r.Context(), claims.OrgID)
	if err != nil {
		http.Error(w, "Failed to list developers", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(devs)
}

// ProductOwners lists the product owners of the caller's organization.
func (h *Handler) ProductOwners(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	owners, err := h.store.ListProductOwners(r.Context(), claims.OrgID)
	if err != nil {
		http.Error(w, "Failed to list product owners", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(owners)
}

// Chart returns the organization tree of owners and the developers they
// invited. The built chart is cached in Redis as msgpack and invalidated
// whenever membership changes.
// @Summary Organization chart
// @Tags organization
// @Produce json
// @Success 200 {object} models.OrganizationChart
// @Security BearerAuth
// @Router /organization/chart [get]
func (h *Handler) Chart(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	if cached, err := h.cache.GetChart(claims.OrgID); err == nil {
		var chart models.OrganizationChart
		if err := msgpack.Unmarshal(cached, &chart); err == nil {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("X-Cache", "HIT")
			json.NewEncoder(w).Encode(chart)
			return
		}
		log.Printf("WARN decoding cached chart for org %d: %v", claims.OrgID, err)
	} else if !errors.Is(err, cache.ErrNoData) {
		log.Printf("WARN reading chart cache for org %d: %v", claims.OrgID, err)
	}

	chart, err := h.buildChart(r.Context(), claims.OrgID)
	if err != nil {
		http.Error(w, "Failed to build organization chart", http.StatusInternalServerError)
		return
	}

	if encoded, err := msgpack.Marshal(chart); err == nil {
		if err := h.cache.SetChart(claims.OrgID, encoded, chartCacheTTL); err != nil {
			log.Printf("WARN caching chart for org %d: %v", claims.OrgID, err)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Cache", "MISS")
	json.NewEncoder(w).Encode(chart)
}

func (h *Handler) buildChart(ctx context.Context, orgID int64) (*models.OrganizationChart, error) {
	org, err := h.store.GetOrganization(ctx, orgID)
	if err != nil {
		return nil, err
	}

	owners, err := h.store.ListProductOwners(ctx, orgID)
	if err != nil {
		return nil, err
	}

	chart := &models.OrganizationChart{
		OrganizationID:   org.ID,
		OrganizationName: org.Name,
		Nodes:            make([]models.ChartNode, 0, len(owners)),
	}

	for _, owner := range owners {
		devs, err := h.store.ListDevelopersByOwner(ctx, owner.ID)
		if err != nil {
			return nil, err
		}
		chart.Nodes = append(chart.Nodes, models.ChartNode{Owner: owner, Developers: devs})
	}

	unassigned, err := h.store.ListUnassignedDevelopers(ctx, orgID)
	if err != nil {
		return nil, err
	}
	chart.Unassigned = unassigned

	return chart, nil
}
