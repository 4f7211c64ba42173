package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
)

type contextKey string

// AdminKey is the request context key set once the admin token is verified.
const AdminKey contextKey = "admin"

// AdminAuthenticator guards the management endpoints with a static bearer
// token.
type AdminAuthenticator struct {
	token []byte
}

// NewAdminAuthenticator creates the middleware. An empty token rejects every
// request.
func NewAdminAuthenticator(token string) *AdminAuthenticator {
	return &AdminAuthenticator{token: []byte(token)}
}

// Middleware returns an HTTP middleware that checks the bearer token
func (a *AdminAuthenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")

		if len(authHeader) == 0 {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte("Authorization missing"))
			return
		}

		scheme, presented, ok := strings.Cut(authHeader, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || presented == "" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte("Malformed authorization header"))
			return
		}

		if len(a.token) == 0 || subtle.ConstantTimeCompare([]byte(presented), a.token) != 1 {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte("Invalid token"))
			return
		}

		ctx := context.WithValue(r.Context(), AdminKey, true)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
