package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

const (
	requestTimeout = 30 * time.Second
	healthTimeout  = 5 * time.Second
)

// Hop-by-hop and origin-revealing headers stripped from upstream responses.
var filteredResponseHeaders = []string{
	"Location",
	"Server",
	"Connection",
	"Transfer-Encoding",
}

type route struct {
	prefix  string
	service string
	target  *url.URL
}

// Gateway routes requests to backend services by path prefix. Requests with
// no matching prefix go to the auth service.
type Gateway struct {
	routes   []route
	fallback route
	client   *http.Client
}

func New() (*Gateway, error) {
	defaultBackend := getEnv("BACKEND_URL", "http://localhost:8080")

	specs := []struct {
		prefix  string
		service string
		envKey  string
	}{
		{"/auth", "auth", "AUTH_SERVICE_URL"},
		{"/organization", "organization", "ORG_SERVICE_URL"},
		{"/task", "task", "TASK_SERVICE_URL"},
		{"/project", "project", "PROJECT_SERVICE_URL"},
		{"/email", "email", "EMAIL_SERVICE_URL"},
	}

	g := &Gateway{client: &http.Client{Timeout: requestTimeout}}
	for _, spec := range specs {
		raw := getEnv(spec.envKey, defaultBackend)
		target, err := url.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", spec.envKey, err)
		}
		r := route{prefix: spec.prefix, service: spec.service, target: target}
		g.routes = append(g.routes, r)
		if spec.service == "auth" {
			g.fallback = r
		}
	}
	return g, nil
}

func (g *Gateway) routeFor(path string) route {
	for _, r := range g.routes {
		if path == r.prefix || strings.HasPrefix(path, r.prefix+"/") {
			return r
		}
	}
	return g.fallback
}

// ServeHTTP forwards the request to the routed service, preserving the full
// path and query.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	target := g.routeFor(r.URL.Path)

	upstream := *target.target
	upstream.Path = r.URL.Path
	upstream.RawQuery = r.URL.RawQuery

	req, err := http.NewRequestWithContext(r.Context(), r.Method, upstream.String(), r.Body)
	if err != nil {
		http.Error(w, "Bad gateway request", http.StatusInternalServerError)
		return
	}
	copyRequestHeaders(req.Header, r.Header)
	req.Header.Set("X-Forwarded-For", clientIP(r))

	resp, err := g.client.Do(req)
	if err != nil {
		status := http.StatusServiceUnavailable
		message := fmt.Sprintf("Service %s unavailable", target.service)
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			status = http.StatusGatewayTimeout
			message = fmt.Sprintf("Service %s timed out", target.service)
		}
		log.Printf("WARN gateway %s %s -> %s: %v", r.Method, r.URL.Path, target.service, err)
		writeJSONError(w, status, message, time.Since(start))
		return
	}
	defer resp.Body.Close()

	copyResponseHeaders(w.Header(), resp.Header)
	setGatewayHeaders(w.Header(), time.Since(start))
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		log.Printf("WARN gateway copying response body: %v", err)
	}
}

// Health probes every routed service and aggregates the results.
func (g *Gateway) Health(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	client := &http.Client{Timeout: healthTimeout}

	services := map[string]string{}
	healthy := true
	probed := map[string]bool{}

	for _, rt := range g.routes {
		if probed[rt.service] {
			continue
		}
		probed[rt.service] = true

		probe := *rt.target
		probe.Path = rt.prefix + "/health"
		resp, err := client.Get(probe.String())
		if err != nil {
			services[rt.service] = "unreachable"
			healthy = false
			continue
		}
		resp.Body.Close()
		if resp.StatusCode >= 500 {
			services[rt.service] = "unhealthy"
			healthy = false
			continue
		}
		services[rt.service] = "ok"
	}

	status := "ok"
	code := http.StatusOK
	if !healthy {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	setGatewayHeaders(w.Header(), time.Since(start))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]any{
		"status":   status,
		"services": services,
	})
}

func copyRequestHeaders(dst, src http.Header) {
	for key, values := range src {
		if strings.EqualFold(key, "Connection") || strings.EqualFold(key, "Host") {
			continue
		}
		for _, v := range values {
			dst.Add(key, v)
		}
	}
}

func copyResponseHeaders(dst, src http.Header) {
	for key, values := range src {
		if filteredHeader(key) {
			continue
		}
		for _, v := range values {
			dst.Add(key, v)
		}
	}
}

func filteredHeader(key string) bool {
	if strings.HasPrefix(strings.ToLower(key), "x-forwarded-") {
		return true
	}
	for _, f := range filteredResponseHeaders {
		if strings.EqualFold(key, f) {
			return true
		}
	}
	return false
}

func setGatewayHeaders(h http.Header, elapsed time.Duration) {
	h.Set("X-Gateway", "taskuno-gateway")
	h.Set("X-Process-Time", fmt.Sprintf("%.6f", elapsed.Seconds()))
}

func writeJSONError(w http.ResponseWriter, status int, message string, elapsed time.Duration) {
	setGatewayHeaders(w.Header(), elapsed)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"detail": message})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
