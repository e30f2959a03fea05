package middleware

import (
	"net"
	"net/http"
	"strings"
	"time"

	"taskuno-backend/internal/cache"
)

const (
	loginLimit     = 10
	loginWindow    = time.Minute
	registerLimit  = 10
	registerWindow = time.Minute
	inviteLimit    = 20
	inviteWindow   = time.Minute
)

func RateLimitLogin(cacheClient cache.Client) func(http.Handler) http.Handler {
	return rateLimitByIP(cacheClient, "rl:login:", loginLimit, loginWindow)
}

func RateLimitRegister(cacheClient cache.Client) func(http.Handler) http.Handler {
	return rateLimitByIP(cacheClient, "rl:register:", registerLimit, registerWindow)
}

func RateLimitInvite(cacheClient cache.Client) func(http.Handler) http.Handler {
	return rateLimitByIP(cacheClient, "rl:invite:", inviteLimit, inviteWindow)
}

func rateLimitByIP(cacheClient cache.Client, prefix string, limit int64, window time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := prefix + clientIP(r)
			count, err := cacheClient.IncrWithTTL(key, window)
			if err == nil && count > limit {
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
