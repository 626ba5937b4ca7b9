package auth

import (
	"context"
	"net/http"
	"strings"
)

type contextKey string

const adminContextKey contextKey = "admin"

// Middleware rejects requests without a valid admin bearer token and
// stores the admin id in the request context.
func Middleware(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" || !strings.HasPrefix(header, "Bearer ") {
				writeUnauthorized(w, "unauthorized")
				return
			}
			claims, err := ValidateToken(secret, strings.TrimPrefix(header, "Bearer "))
			if err != nil {
				writeUnauthorized(w, "invalid token")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithAdmin(r.Context(), claims.AdminID)))
		})
	}
}

func WithAdmin(ctx context.Context, adminID string) context.Context {
	return context.WithValue(ctx, adminContextKey, adminID)
}

// AdminID returns the authenticated admin, or "" outside the middleware.
func AdminID(ctx context.Context) string {
	id, _ := ctx.Value(adminContextKey).(string)
	return id
}

func writeUnauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"` + msg + `"}`))
}
