package auth

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"golang.org/x/crypto/bcrypt"

	"taskuno-backend/internal/cache"
	"taskuno-backend/internal/models"
	"taskuno-backend/internal/storage"
)

// Store is the slice of storage the auth handlers need.
type Store interface {
	CreateOrganization(ctx context.Context, name string) (*models.Organization, error)
	GetOrganization(ctx context.Context, id int64) (*models.Organization, error)
	GetOrganizationByName(ctx context.Context, name string) (*models.Organization, error)
	CreateProductOwner(ctx context.Context, po *models.ProductOwner) error
	CreateDeveloper(ctx context.Context, dev *models.Developer) error
	GetProductOwner(ctx context.Context, id int64) (*models.ProductOwner, error)
	GetDeveloper(ctx context.Context, id int64) (*models.Developer, error)
	GetProductOwnerByEmail(ctx context.Context, email string) (*models.ProductOwner, error)
	GetDeveloperByEmail(ctx context.Context, email string) (*models.Developer, error)
	FindProductOwner(ctx context.Context, email string, orgID int64) (*models.ProductOwner, error)
	FindDeveloper(ctx context.Context, email string, orgID int64) (*models.Developer, error)
	EmailExistsInOrganization(ctx context.Context, email string, orgID int64) (bool, error)
	UpdateProductOwnerProfile(ctx context.Context, id int64, firstName, lastName, passwordHash string) error
	UpdateDeveloperProfile(ctx context.Context, id int64, firstName, lastName, passwordHash string) error
	LogAudit(ctx context.Context, employeeID int64, roleType, action string, orgID int64, resourceType string, resourceID int64, details map[string]interface{})
}

type Handler struct {
	store Store
	cache cache.Client
}

func NewHandler(store Store, cacheClient cache.Client) *Handler {
	return &Handler{store: store, cache: cacheClient}
}

type registerRequest struct {
	Email        string `json:"email"`
	Password     string `json:"password"`
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	Role         string `json:"role"`
	Organization string `json:"organization"`
	OrgID        int64  `json:"org_id"`
}

type loginRequest struct {
	Email          string `json:"email"`
	Password       string `json:"password"`
	OrganizationID int64  `json:"organization_id"`
	Role           string `json:"role"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type inviteRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Role      string `json:"role"`
	OrgID     int64  `json:"org_id"`
}

type updateProfileRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Password  string `json:"password"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

// Register creates a Product Owner account, creating the organization when a
// new name is given.
// @Summary Register a Product Owner
// @Description Registers a Product Owner and returns JWT tokens. Developers must be invited.
// @Tags auth
// @Accept json
// @Produce json
// @Param user body registerRequest true "Registration data"
// @Success 201 {object} map[string]interface{} "Tokens and user"
// @Failure 400 {string} string "Validation error"
// @Failure 403 {string} string "Role may not self-register"
// @Router /auth/ [post]
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.Role != models.RoleProductOwner && req.Role != models.RoleAdmin {
		http.Error(w, "Only Product Owner can register. Developers must be invited by a Product Owner.", http.StatusForbidden)
		return
	}
	if req.Email == "" || req.Password == "" {
		http.Error(w, "Email and password required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	var org *models.Organization
	orgCreated := false

	switch {
	case req.OrgID != 0:
		existing, err := h.store.GetOrganization(ctx, req.OrgID)
		if err != nil {
			http.Error(w, "Organization not found", http.StatusBadRequest)
			return
		}
		org = existing
	case req.Organization != "":
		_, err := h.store.GetOrganizationByName(ctx, req.Organization)
		if err == nil {
			http.Error(w, "Organization already exists. Ask an existing owner to invite you, or use a different organization name.", http.StatusBadRequest)
			return
		}
		if !errors.Is(err, storage.ErrOrgNotFound) {
			http.Error(w, "Registration failed", http.StatusInternalServerError)
			return
		}
		created, err := h.store.CreateOrganization(ctx, req.Organization)
		if err != nil {
			if errors.Is(err, storage.ErrOrgExists) {
				http.Error(w, "Organization already exists", http.StatusBadRequest)
				return
			}
			http.Error(w, "Registration failed", http.StatusInternalServerError)
			return
		}
		org = created
		orgCreated = true
	default:
		http.Error(w, "Organization name or org_id required", http.StatusBadRequest)
		return
	}

	taken, err := h.store.EmailExistsInOrganization(ctx, req.Email, org.ID)
	if err != nil {
		http.Error(w, "Registration failed", http.StatusInternalServerError)
		return
	}
	if taken {
		http.Error(w, "User with this email already exists in this organization", http.StatusBadRequest)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		http.Error(w, "Registration failed", http.StatusInternalServerError)
		return
	}

	po := &models.ProductOwner{
		Email:          req.Email,
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		PasswordHash:   string(hash),
		OrganizationID: org.ID,
	}
	if err := h.store.CreateProductOwner(ctx, po); err != nil {
		if errors.Is(err, storage.ErrEmailTaken) {
			http.Error(w, "User with this email already exists in this organization", http.StatusBadRequest)
			return
		}
		http.Error(w, "Registration failed", http.StatusInternalServerError)
		return
	}

	if orgCreated {
		h.store.LogAudit(ctx, po.ID, models.RoleProductOwner, "organization_created", org.ID, "organization", org.ID,
			map[string]interface{}{"name": org.Name, "created_during_registration": true})
	}
	h.store.LogAudit(ctx, po.ID, models.RoleProductOwner, "user_registered", org.ID, "user", po.ID,
		map[string]interface{}{"email": po.Email, "role": models.RoleProductOwner})

	if err := h.cache.InvalidateChart(org.ID); err != nil {
		log.Printf("WARN chart cache invalidation failed for org %d: %v", org.ID, err)
	}

	tokens, err := issueTokens(po.Email, po.ID, models.RoleProductOwner, org.ID)
	if err != nil {
		http.Error(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]any{
		"tokens": tokens,
		"user": models.UserProfile{
			ID:               po.ID,
			Email:            po.Email,
			FirstName:        po.FirstName,
			LastName:         po.LastName,
			Role:             models.RoleProductOwner,
			OrganizationID:   org.ID,
			OrganizationName: org.Name,
		},
	})
}

// Login authenticates against the product owner or developer table, scoped
// to an organization when one is given.
// @Summary User login
// @Tags auth
// @Accept json
// @Produce json
// @Param credentials body loginRequest true "Login credentials"
// @Success 200 {object} map[string]interface{} "Tokens and user"
// @Failure 401 {string} string "Invalid credentials"
// @Router /auth/login [post]
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Email == "" || req.Password == "" {
		http.Error(w, "Email and password required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	profile, passwordHash, err := h.lookupUser(ctx, req)
	if err != nil {
		http.Error(w, "Wrong credentials or user does not exist in the specified organization with the specified role", http.StatusUnauthorized)
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(req.Password)); err != nil {
		http.Error(w, "Wrong credentials or user does not exist in the specified organization with the specified role", http.StatusUnauthorized)
		return
	}

	if org, err := h.store.GetOrganization(ctx, profile.OrganizationID); err == nil {
		profile.OrganizationName = org.Name
	}

	tokens, err := issueTokens(profile.Email, profile.ID, profile.Role, profile.OrganizationID)
	if err != nil {
		http.Error(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"tokens": tokens,
		"user":   profile,
	})
}

// Profile returns the authenticated user.
// @Summary Get current user profile
// @Tags auth
// @Produce json
// @Success 200 {object} models.UserProfile
// @Failure 404 {string} string "User not found"
// @Security BearerAuth
// @Router /auth/profile [get]
func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	profile, err := h.profileFor(r.Context(), claims)
	if err != nil {
		http.Error(w, "User not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(profile)
}

// UpdateProfile updates names and, optionally, the password.
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req updateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	passwordHash := ""
	if req.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			http.Error(w, "Failed to update profile", http.StatusInternalServerError)
			return
		}
		passwordHash = string(hash)
	}

	ctx := r.Context()
	var err error
	if claims.Role == models.RoleDeveloper {
		err = h.store.UpdateDeveloperProfile(ctx, claims.UserID, req.FirstName, req.LastName, passwordHash)
	} else {
		err = h.store.UpdateProductOwnerProfile(ctx, claims.UserID, req.FirstName, req.LastName, passwordHash)
	}
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			http.Error(w, "User not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to update profile", http.StatusInternalServerError)
		return
	}

	profile, err := h.profileFor(ctx, claims)
	if err != nil {
		http.Error(w, "User not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(profile)
}

// Refresh exchanges a refresh token for a fresh token pair.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		http.Error(w, "Invalid refresh token", http.StatusUnauthorized)
		return
	}

	claims, err := ParseRefreshToken(req.RefreshToken)
	if err != nil {
		http.Error(w, "Invalid refresh token", http.StatusUnauthorized)
		return
	}

	profile, err := h.profileFor(r.Context(), claims)
	if err != nil {
		http.Error(w, "Invalid refresh token", http.StatusUnauthorized)
		return
	}

	tokens, err := issueTokens(profile.Email, profile.ID, profile.Role, profile.OrganizationID)
	if err != nil {
		http.Error(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(tokens)
}

// Invite creates a Product Owner or Developer inside the inviter's
// organization. Developers are linked to the inviting owner.
// @Summary Invite a user
// @Tags auth
// @Accept json
// @Produce json
// @Param user body inviteRequest true "Invite data"
// @Success 201 {object} models.UserProfile
// @Failure 400 {string} string "Validation error"
// @Failure 403 {string} string "Only Product Owner can invite"
// @Security BearerAuth
// @Router /auth/invite [post]
func (h *Handler) Invite(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	if claims.Role != models.RoleProductOwner && claims.Role != models.RoleAdmin {
		http.Error(w, "Only Product Owner can invite users", http.StatusForbidden)
		return
	}

	var req inviteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Role != models.RoleProductOwner && req.Role != models.RoleDeveloper {
		http.Error(w, "Role must be either 'Product Owner' or 'Developer'", http.StatusBadRequest)
		return
	}
	if req.Email == "" || req.Password == "" {
		http.Error(w, "Email and password required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	orgID := claims.OrgID
	if req.OrgID != 0 {
		orgID = req.OrgID
	}
	org, err := h.store.GetOrganization(ctx, orgID)
	if err != nil {
		http.Error(w, "Organization not found", http.StatusBadRequest)
		return
	}

	taken, err := h.store.EmailExistsInOrganization(ctx, req.Email, org.ID)
	if err != nil {
		http.Error(w, "Invite failed", http.StatusInternalServerError)
		return
	}
	if taken {
		http.Error(w, "User with this email already exists in this organization", http.StatusBadRequest)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		http.Error(w, "Invite failed", http.StatusInternalServerError)
		return
	}

	profile := models.UserProfile{
		Email:            req.Email,
		FirstName:        req.FirstName,
		LastName:         req.LastName,
		Role:             req.Role,
		OrganizationID:   org.ID,
		OrganizationName: org.Name,
	}

	if req.Role == models.RoleProductOwner {
		po := &models.ProductOwner{
			Email:          req.Email,
			FirstName:      req.FirstName,
			LastName:       req.LastName,
			PasswordHash:   string(hash),
			OrganizationID: org.ID,
		}
		if err := h.store.CreateProductOwner(ctx, po); err != nil {
			inviteCreateError(w, err)
			return
		}
		profile.ID = po.ID
	} else {
		inviterID := claims.UserID
		dev := &models.Developer{
			Email:          req.Email,
			FirstName:      req.FirstName,
			LastName:       req.LastName,
			PasswordHash:   string(hash),
			OwnerID:        &inviterID,
			OrganizationID: org.ID,
		}
		if err := h.store.CreateDeveloper(ctx, dev); err != nil {
			inviteCreateError(w, err)
			return
		}
		profile.ID = dev.ID
	}

	h.store.LogAudit(ctx, claims.UserID, claims.Role, "user_invited", org.ID, "user", profile.ID,
		map[string]interface{}{"invited_email": req.Email, "invited_role": req.Role})

	if err := h.cache.InvalidateChart(org.ID); err != nil {
		log.Printf("WARN chart cache invalidation failed for org %d: %v", org.ID, err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(profile)
}

// Logout blacklists the presented access token until it expires.
// @Summary User logout
// @Tags auth
// @Produce json
// @Success 200 {object} map[string]string
// @Security BearerAuth
// @Router /auth/logout [post]
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token != "" {
		ttl := time.Hour
		if claims, err := ParseAccessToken(token); err == nil && claims.ExpiresAt != nil {
			if remaining := time.Until(claims.ExpiresAt.Time); remaining > 0 {
				ttl = remaining
			}
		}
		if err := h.cache.BlacklistToken(TokenHash(token), ttl); err != nil {
			log.Printf("WARN token blacklist failed: %v", err)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "Logged out successfully"})
}

func (h *Handler) lookupUser(ctx context.Context, req loginRequest) (models.UserProfile, string, error) {
	if req.OrganizationID != 0 && req.Role != "" {
		switch req.Role {
		case models.RoleProductOwner:
			po, err := h.store.FindProductOwner(ctx, req.Email, req.OrganizationID)
			if err != nil {
				return models.UserProfile{}, "", err
			}
			return ownerProfile(po), po.PasswordHash, nil
		case models.RoleDeveloper:
			dev, err := h.store.FindDeveloper(ctx, req.Email, req.OrganizationID)
			if err != nil {
				return models.UserProfile{}, "", err
			}
			return developerProfile(dev), dev.PasswordHash, nil
		default:
			return models.UserProfile{}, "", storage.ErrUserNotFound
		}
	}

	if po, err := h.store.GetProductOwnerByEmail(ctx, req.Email); err == nil {
		return ownerProfile(po), po.PasswordHash, nil
	}
	dev, err := h.store.GetDeveloperByEmail(ctx, req.Email)
	if err != nil {
		return models.UserProfile{}, "", err
	}
	return developerProfile(dev), dev.PasswordHash, nil
}

func (h *Handler) profileFor(ctx context.Context, claims *Claims) (models.UserProfile, error) {
	var profile models.UserProfile
	if claims.Role == models.RoleDeveloper {
		dev, err := h.store.GetDeveloper(ctx, claims.UserID)
		if err != nil {
			return models.UserProfile{}, err
		}
		profile = developerProfile(dev)
	} else {
		po, err := h.store.GetProductOwner(ctx, claims.UserID)
		if err != nil {
			return models.UserProfile{}, err
		}
		profile = ownerProfile(po)
	}

	if org, err := h.store.GetOrganization(ctx, profile.OrganizationID); err == nil {
		profile.OrganizationName = org.Name
	}
	return profile, nil
}

func ownerProfile(po *models.ProductOwner) models.UserProfile {
	return models.UserProfile{
		ID:             po.ID,
		Email:          po.Email,
		FirstName:      po.FirstName,
		LastName:       po.LastName,
		Role:           models.RoleProductOwner,
		OrganizationID: po.OrganizationID,
	}
}

func developerProfile(dev *models.Developer) models.UserProfile {
	return models.UserProfile{
		ID:             dev.ID,
		Email:          dev.Email,
		FirstName:      dev.FirstName,
		LastName:       dev.LastName,
		Role:           models.RoleDeveloper,
		OrganizationID: dev.OrganizationID,
	}
}

func issueTokens(email string, userID int64, role string, orgID int64) (tokenResponse, error) {
	access, err := GenerateAccessToken(email, userID, role, orgID)
	if err != nil {
		return tokenResponse{}, err
	}
	refresh, err := GenerateRefreshToken(email, userID, role, orgID)
	if err != nil {
		return tokenResponse{}, err
	}
	return tokenResponse{AccessToken: access, RefreshToken: refresh, TokenType: "bearer"}, nil
}

func inviteCreateError(w http.ResponseWriter, err error) {
	if errors.Is(err, storage.ErrEmailTaken) {
		http.Error(w, "User with this email already exists in this organization", http.StatusBadRequest)
		return
	}
	http.Error(w, "Invite failed", http.StatusInternalServerError)
}
