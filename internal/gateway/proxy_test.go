package gateway

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestGateway(t *testing.T, backendURL string) *Gateway {
	t.Helper()
	t.Setenv("BACKEND_URL", backendURL)
	t.Setenv("AUTH_SERVICE_URL", "")
	t.Setenv("ORG_SERVICE_URL", "")
	t.Setenv("TASK_SERVICE_URL", "")
	t.Setenv("PROJECT_SERVICE_URL", "")
	t.Setenv("EMAIL_SERVICE_URL", "")

	gw, err := New()
	if err != nil {
		t.Fatalf("configure gateway: %v", err)
	}
	return gw
}

func TestGatewayForwardsFullPathAndQuery(t *testing.T) {
	var gotPath, gotQuery, gotAuth string
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer backend.Close()

	gw := newTestGateway(t, backend.URL)

	req := httptest.NewRequest(http.MethodGet, "/task/50?include=logs", nil)
	req.Header.Set("Authorization", "Bearer some-token")
	rec := httptest.NewRecorder()
	gw.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if gotPath != "/task/50" {
		t.Fatalf("upstream saw path %q", gotPath)
	}
	if gotQuery != "include=logs" {
		t.Fatalf("upstream saw query %q", gotQuery)
	}
	if gotAuth != "Bearer some-token" {
		t.Fatalf("Authorization header not forwarded: %q", gotAuth)
	}
}

func TestGatewayAddsAndFiltersHeaders(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Location", "http://internal:8080/auth/")
		w.Header().Set("Server", "internal-server")
		w.Header().Set("X-Forwarded-Host", "internal")
		w.Header().Set("X-Custom", "kept")
		w.WriteHeader(http.StatusOK)
	}))
	defer backend.Close()

	gw := newTestGateway(t, backend.URL)

	req := httptest.NewRequest(http.MethodGet, "/auth/profile", nil)
	rec := httptest.NewRecorder()
	gw.ServeHTTP(rec, req)

	if rec.Header().Get("X-Gateway") == "" {
		t.Fatal("X-Gateway header missing")
	}
	if rec.Header().Get("X-Process-Time") == "" {
		t.Fatal("X-Process-Time header missing")
	}
	if rec.Header().Get("Location") != "" {
		t.Fatalf("Location should be filtered, got %q", rec.Header().Get("Location"))
	}
	if rec.Header().Get("Server") != "" {
		t.Fatalf("Server should be filtered, got %q", rec.Header().Get("Server"))
	}
	if rec.Header().Get("X-Forwarded-Host") != "" {
		t.Fatal("x-forwarded-* headers should be filtered")
	}
	if rec.Header().Get("X-Custom") != "kept" {
		t.Fatal("regular upstream headers should pass through")
	}
}

func TestGatewayUnknownPrefixFallsBackToAuth(t *testing.T) {
	var gotPath string
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer backend.Close()

	gw := newTestGateway(t, backend.URL)
	if gw.routeFor("/unknown/path").service != "auth" {
		t.Fatalf("unknown prefix should route to auth, got %q", gw.routeFor("/unknown/path").service)
	}

	req := httptest.NewRequest(http.MethodGet, "/unknown/path", nil)
	rec := httptest.NewRecorder()
	gw.ServeHTTP(rec, req)
	if gotPath != "/unknown/path" {
		t.Fatalf("upstream saw %q", gotPath)
	}
}

func TestGatewayReturns503WhenServiceDown(t *testing.T) {
	// Reserve a port with no listener behind it.
	dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	deadURL := dead.URL
	dead.Close()

	gw := newTestGateway(t, deadURL)

	req := httptest.NewRequest(http.MethodGet, "/task/", nil)
	rec := httptest.NewRecorder()
	gw.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if body["detail"] == "" {
		t.Fatal("expected a detail message")
	}
	if rec.Header().Get("X-Gateway") == "" {
		t.Fatal("error responses should still carry gateway headers")
	}
}

func TestGatewayHealthAggregatesServices(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, `{"status":"ok"}`)
	}))
	defer backend.Close()

	gw := newTestGateway(t, backend.URL)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	gw.Health(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var body struct {
		Status   string            `json:"status"`
		Services map[string]string `json:"services"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode health body: %v", err)
	}
	if body.Status != "ok" {
		t.Fatalf("unexpected status: %q", body.Status)
	}
	for _, name := range []string{"auth", "organization", "task", "project", "email"} {
		if body.Services[name] != "ok" {
			t.Fatalf("service %s not ok: %v", name, body.Services)
		}
	}
}
