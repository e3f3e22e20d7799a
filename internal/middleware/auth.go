package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"budget-service/internal/service"
	"github.com/gorilla/mux"
)

// Context key type to avoid collisions.
type contextKey string

// UserContextKey is the context key for the authenticated username.
const UserContextKey contextKey = "user"

// Auth returns middleware that requires a valid bearer access token.
// Every failure produces the same 401 challenge; the body never says
// whether the token was missing, malformed, expired or for an unknown user.
func Auth(auth *service.Auth) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				Challenge(w, "Invalid/expired access token")
				return
			}

			username, err := auth.ValidateAccessToken(token)
			if err != nil {
				Challenge(w, "Invalid/expired access token")
				return
			}

			ctx := context.WithValue(r.Context(), UserContextKey, username)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Username retrieves the authenticated username from the request context.
func Username(r *http.Request) string {
	if u, ok := r.Context().Value(UserContextKey).(string); ok {
		return u
	}
	return ""
}

// Challenge writes a 401 with the bearer authentication challenge header.
func Challenge(w http.ResponseWriter, detail string) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"detail": detail})
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	return header[len(prefix):], true
}
