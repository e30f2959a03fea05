package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"taskuno-backend/internal/cache"
	"taskuno-backend/internal/models"
	"taskuno-backend/internal/storage"
)

type storeStub struct {
	orgs          map[int64]*models.Organization
	orgsByName    map[string]*models.Organization
	owners        map[int64]*models.ProductOwner
	developers    map[int64]*models.Developer
	nextID        int64
	auditActions  []string
	createdDevels []*models.Developer
}

func newStoreStub() *storeStub {
	return &storeStub{
		orgs:       map[int64]*models.Organization{},
		orgsByName: map[string]*models.Organization{},
		owners:     map[int64]*models.ProductOwner{},
		developers: map[int64]*models.Developer{},
		nextID:     100,
	}
}

func (s *storeStub) addOrg(id int64, name string) *models.Organization {
	org := &models.Organization{ID: id, Name: name}
	s.orgs[id] = org
	s.orgsByName[name] = org
	return org
}

func (s *storeStub) CreateOrganization(ctx context.Context, name string) (*models.Organization, error) {
	if _, ok := s.orgsByName[name]; ok {
		return nil, storage.ErrOrgExists
	}
	s.nextID++
	return s.addOrg(s.nextID, name), nil
}

func (s *storeStub) GetOrganization(ctx context.Context, id int64) (*models.Organization, error) {
	org, ok := s.orgs[id]
	if !ok {
		return nil, storage.ErrOrgNotFound
	}
	return org, nil
}

func (s *storeStub) GetOrganizationByName(ctx context.Context, name string) (*models.Organization, error) {
	org, ok := s.orgsByName[name]
	if !ok {
		return nil, storage.ErrOrgNotFound
	}
	return org, nil
}

func (s *storeStub) CreateProductOwner(ctx context.Context, po *models.ProductOwner) error {
	s.nextID++
	po.ID = s.nextID
	s.owners[po.ID] = po
	return nil
}

func (s *storeStub) CreateDeveloper(ctx context.Context, dev *models.Developer) error {
	s.nextID++
	dev.ID = s.nextID
	s.developers[dev.ID] = dev
	s.createdDevels = append(s.createdDevels, dev)
	return nil
}

func (s *storeStub) GetProductOwner(ctx context.Context, id int64) (*models.ProductOwner, error) {
	po, ok := s.owners[id]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	return po, nil
}

func (s *storeStub) GetDeveloper(ctx context.Context, id int64) (*models.Developer, error) {
	dev, ok := s.developers[id]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	return dev, nil
}

func (s *storeStub) GetProductOwnerByEmail(ctx context.Context, email string) (*models.ProductOwner, error) {
	for _, po := range s.owners {
		if po.Email == email {
			return po, nil
		}
	}
	return nil, storage.ErrUserNotFound
}

func (s *storeStub) GetDeveloperByEmail(ctx context.Context, email string) (*models.Developer, error) {
	for _, dev := range s.developers {
		if dev.Email == email {
			return dev, nil
		}
	}
	return nil, storage.ErrUserNotFound
}

func (s *storeStub) FindProductOwner(ctx context.Context, email string, orgID int64) (*models.ProductOwner, error) {
	for _, po := range s.owners {
		if po.Email == email && po.OrganizationID == orgID {
			return po, nil
		}
	}
	return nil, storage.ErrUserNotFound
}

func (s *storeStub) FindDeveloper(ctx context.Context, email string, orgID int64) (*models.Developer, error) {
	for _, dev := range s.developers {
		if dev.Email == email && dev.OrganizationID == orgID {
			return dev, nil
		}
	}
	return nil, storage.ErrUserNotFound
}

func (s *storeStub) EmailExistsInOrganization(ctx context.Context, email string, orgID int64) (bool, error) {
	for _, po := range s.owners {
		if po.Email == email && po.OrganizationID == orgID {
			return true, nil
		}
	}
	for _, dev := range s.developers {
		if dev.Email == email && dev.OrganizationID == orgID {
			return true, nil
		}
	}
	return false, nil
}

func (s *storeStub) UpdateProductOwnerProfile(ctx context.Context, id int64, firstName, lastName, passwordHash string) error {
	po, ok := s.owners[id]
	if !ok {
		return storage.ErrUserNotFound
	}
	if firstName != "" {
		po.FirstName = firstName
	}
	if lastName != "" {
		po.LastName = lastName
	}
	return nil
}

func (s *storeStub) UpdateDeveloperProfile(ctx context.Context, id int64, firstName, lastName, passwordHash string) error {
	dev, ok := s.developers[id]
	if !ok {
		return storage.ErrUserNotFound
	}
	if firstName != "" {
		dev.FirstName = firstName
	}
	if lastName != "" {
		dev.LastName = lastName
	}
	return nil
}

func (s *storeStub) LogAudit(ctx context.Context, employeeID int64, roleType, action string, orgID int64, resourceType string, resourceID int64, details map[string]interface{}) {
	s.auditActions = append(s.auditActions, action)
}

type cacheStub struct {
	mu          sync.Mutex
	blacklisted map[string]bool
	invalidated []int64
	queue       [][]byte
	charts      map[int64][]byte
	counters    map[string]int64
}

func newCacheStub() *cacheStub {
	return &cacheStub{
		blacklisted: map[string]bool{},
		charts:      map[int64][]byte{},
		counters:    map[string]int64{},
	}
}

func (c *cacheStub) Enqueue(queue string, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queue = append(c.queue, payload)
	return nil
}

func (c *cacheStub) BlockingDequeue(ctx context.Context, queue string, timeout time.Duration) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.queue) == 0 {
		return nil, context.DeadlineExceeded
	}
	payload := c.queue[0]
	c.queue = c.queue[1:]
	return payload, nil
}

func (c *cacheStub) QueueLength(queue string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return int64(len(c.queue)), nil
}

func (c *cacheStub) BlacklistToken(tokenHash string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.blacklisted[tokenHash] = true
	return nil
}

func (c *cacheStub) IsTokenBlacklisted(tokenHash string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.blacklisted[tokenHash], nil
}

func (c *cacheStub) IncrWithTTL(key string, window time.Duration) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counters[key]++
	return c.counters[key], nil
}

func (c *cacheStub) SetChart(orgID int64, data []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.charts[orgID] = data
	return nil
}

func (c *cacheStub) GetChart(orgID int64) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, ok := c.charts[orgID]
	if !ok {
		return nil, cache.ErrNoData
	}
	return data, nil
}

func (c *cacheStub) InvalidateChart(orgID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.charts, orgID)
	c.invalidated = append(c.invalidated, orgID)
	return nil
}

func (c *cacheStub) Ping() error  { return nil }
func (c *cacheStub) Close() error { return nil }

func postJSON(t *testing.T, handler http.HandlerFunc, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, target, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func TestRegisterCreatesOrganizationAndOwner(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	store := newStoreStub()
	cacheClient := newCacheStub()
	h := NewHandler(store, cacheClient)

	rec := postJSON(t, h.Register, "/auth/", map[string]any{
		"email":        "po@example.com",
		"password":     "secret123",
		"firstName":    "Pat",
		"lastName":     "Owner",
		"role":         "Product Owner",
		"organization": "Acme",
	})

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Tokens tokenResponse      `json:"tokens"`
		User   models.UserProfile `json:"user"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Tokens.AccessToken == "" || resp.Tokens.RefreshToken == "" {
		t.Fatal("expected both tokens in response")
	}
	if resp.Tokens.TokenType != "bearer" {
		t.Fatalf("unexpected token type: %q", resp.Tokens.TokenType)
	}
	if resp.User.OrganizationName != "Acme" {
		t.Fatalf("unexpected organization name: %q", resp.User.OrganizationName)
	}
	if _, ok := store.orgsByName["Acme"]; !ok {
		t.Fatal("organization was not created")
	}
	if len(store.auditActions) != 2 {
		t.Fatalf("expected organization_created and user_registered audits, got %v", store.auditActions)
	}
}

func TestRegisterRejectsDeveloperRole(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	h := NewHandler(newStoreStub(), newCacheStub())

	rec := postJSON(t, h.Register, "/auth/", map[string]any{
		"email":        "dev@example.com",
		"password":     "secret123",
		"role":         "Developer",
		"organization": "Acme",
	})

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestRegisterRejectsExistingOrganizationName(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	store := newStoreStub()
	store.addOrg(1, "Acme")
	h := NewHandler(store, newCacheStub())

	rec := postJSON(t, h.Register, "/auth/", map[string]any{
		"email":        "po2@example.com",
		"password":     "secret123",
		"role":         "Product Owner",
		"organization": "Acme",
	})

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestRegisterAllowsSameEmailInAnotherOrganization(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	store := newStoreStub()
	store.addOrg(1, "Acme")
	store.owners[5] = &models.ProductOwner{ID: 5, Email: "po@example.com", OrganizationID: 1}
	h := NewHandler(store, newCacheStub())

	rec := postJSON(t, h.Register, "/auth/", map[string]any{
		"email":        "po@example.com",
		"password":     "secret123",
		"role":         "Product Owner",
		"organization": "Globex",
	})

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 for the same email in a new organization, got %d: %s", rec.Code, rec.Body.String())
	}
	if _, ok := store.orgsByName["Globex"]; !ok {
		t.Fatal("second organization was not created")
	}
}

func TestInviteRejectsDuplicateEmailInOrganization(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	store := newStoreStub()
	store.addOrg(1, "Acme")
	store.addOrg(2, "Globex")
	store.owners[5] = &models.ProductOwner{ID: 5, Email: "po@example.com", OrganizationID: 1}
	store.developers[9] = &models.Developer{ID: 9, Email: "dev@example.com", OrganizationID: 1}
	store.developers[10] = &models.Developer{ID: 10, Email: "shared@example.com", OrganizationID: 2}
	cacheClient := newCacheStub()
	h := NewHandler(store, cacheClient)

	token, err := GenerateAccessToken("po@example.com", 5, models.RoleProductOwner, 1)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	invite := func(email string) *httptest.ResponseRecorder {
		body, _ := json.Marshal(map[string]any{"email": email, "password": "secret123", "role": "Developer"})
		req := httptest.NewRequest(http.MethodPost, "/auth/invite", bytes.NewReader(body))
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		Middleware(cacheClient)(http.HandlerFunc(h.Invite)).ServeHTTP(rec, req)
		return rec
	}

	if rec := invite("dev@example.com"); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a duplicate email in the same organization, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(store.createdDevels) != 0 {
		t.Fatalf("no developer should have been created, got %d", len(store.createdDevels))
	}

	// The same email in a different organization does not conflict.
	if rec := invite("shared@example.com"); rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 for an email only taken elsewhere, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	store := newStoreStub()
	store.addOrg(1, "Acme")
	hash, _ := bcrypt.GenerateFromPassword([]byte("right-password"), bcrypt.MinCost)
	store.owners[5] = &models.ProductOwner{ID: 5, Email: "po@example.com", PasswordHash: string(hash), OrganizationID: 1}
	h := NewHandler(store, newCacheStub())

	rec := postJSON(t, h.Login, "/auth/login", map[string]any{
		"email":    "po@example.com",
		"password": "wrong-password",
	})

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestLoginScopedToOrganizationAndRole(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	store := newStoreStub()
	store.addOrg(1, "Acme")
	store.addOrg(2, "Globex")
	hash, _ := bcrypt.GenerateFromPassword([]byte("secret123"), bcrypt.MinCost)
	store.developers[9] = &models.Developer{ID: 9, Email: "dev@example.com", PasswordHash: string(hash), OrganizationID: 2}
	h := NewHandler(store, newCacheStub())

	rec := postJSON(t, h.Login, "/auth/login", map[string]any{
		"email":           "dev@example.com",
		"password":        "secret123",
		"organization_id": 1,
		"role":            "Developer",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong organization, got %d", rec.Code)
	}

	rec = postJSON(t, h.Login, "/auth/login", map[string]any{
		"email":           "dev@example.com",
		"password":        "secret123",
		"organization_id": 2,
		"role":            "Developer",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestInviteLinksDeveloperToInviter(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	store := newStoreStub()
	store.addOrg(1, "Acme")
	store.owners[5] = &models.ProductOwner{ID: 5, Email: "po@example.com", OrganizationID: 1}
	cacheClient := newCacheStub()
	h := NewHandler(store, cacheClient)

	token, err := GenerateAccessToken("po@example.com", 5, models.RoleProductOwner, 1)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	body, _ := json.Marshal(map[string]any{
		"email":     "dev@example.com",
		"password":  "secret123",
		"firstName": "Dana",
		"lastName":  "Dev",
		"role":      "Developer",
	})
	req := httptest.NewRequest(http.MethodPost, "/auth/invite", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	Middleware(cacheClient)(http.HandlerFunc(h.Invite)).ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(store.createdDevels) != 1 {
		t.Fatalf("expected one developer created, got %d", len(store.createdDevels))
	}
	dev := store.createdDevels[0]
	if dev.OwnerID == nil || *dev.OwnerID != 5 {
		t.Fatalf("developer not linked to inviter: %v", dev.OwnerID)
	}
	if dev.OrganizationID != 1 {
		t.Fatalf("developer in wrong organization: %d", dev.OrganizationID)
	}
	if len(cacheClient.invalidated) != 1 || cacheClient.invalidated[0] != 1 {
		t.Fatalf("chart cache not invalidated: %v", cacheClient.invalidated)
	}
}

func TestInviteForbiddenForDevelopers(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	store := newStoreStub()
	store.addOrg(1, "Acme")
	cacheClient := newCacheStub()
	h := NewHandler(store, cacheClient)

	token, err := GenerateAccessToken("dev@example.com", 9, models.RoleDeveloper, 1)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	body, _ := json.Marshal(map[string]any{"email": "x@example.com", "password": "p", "role": "Developer"})
	req := httptest.NewRequest(http.MethodPost, "/auth/invite", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	Middleware(cacheClient)(http.HandlerFunc(h.Invite)).ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestLogoutBlacklistsToken(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	store := newStoreStub()
	cacheClient := newCacheStub()
	h := NewHandler(store, cacheClient)

	token, err := GenerateAccessToken("po@example.com", 5, models.RoleProductOwner, 1)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.Logout(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !cacheClient.blacklisted[TokenHash(token)] {
		t.Fatal("token was not blacklisted")
	}

	// The middleware must now reject the same token.
	req = httptest.NewRequest(http.MethodGet, "/auth/profile", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	Middleware(cacheClient)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("blacklisted token reached the handler")
	})).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 after logout, got %d", rec.Code)
	}
}
