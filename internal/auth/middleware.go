package auth

import (
	"context"
	"net/http"
	"strings"

	"taskuno-backend/internal/cache"
)

type contextKey string

const claimsKey contextKey = "taskuno_claims"

// Middleware authenticates the request with a bearer access token and
// rejects tokens blacklisted by logout.
func Middleware(cacheClient cache.Client) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			claims, err := ParseAccessToken(token)
			if err != nil || claims.Subject == "" || claims.UserID == 0 {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			if blacklisted, err := cacheClient.IsTokenBlacklisted(TokenHash(token)); err == nil && blacklisted {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(claimsKey).(*Claims)
	return claims, ok
}

func bearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
}
