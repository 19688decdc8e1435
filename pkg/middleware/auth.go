package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

type contextKeyType string

const principalKey contextKeyType = "principal"

// Principal is the authenticated identity resolved by the auth middleware.
type Principal struct {
	UserID int64
	Email  string
}

// PrincipalResolver turns a bearer token into an authenticated principal.
// The service injects its own resolution logic (token decode + user lookup).
type PrincipalResolver func(ctx context.Context, token string) (*Principal, error)

// Auth middleware extracts a bearer token from the Authorization header,
// resolves the acting user, and injects the principal into the request
// context. A missing header, wrong scheme, missing token, or failed
// resolution all produce the same 401 response.
func Auth(resolve PrincipalResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := BearerToken(r)
			if !ok {
				writeAuthError(w)
				return
			}

			principal, err := resolve(r.Context(), token)
			if err != nil || principal == nil {
				writeAuthError(w)
				return
			}

			ctx := context.WithValue(r.Context(), principalKey, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// BearerToken extracts the token from an "Authorization: Bearer <token>"
// header. The second return value is false for a missing or malformed header.
func BearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", false
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}

	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", false
	}

	return token, true
}

// PrincipalFromContext extracts the authenticated principal from the request
// context. Returns nil outside the Auth middleware.
func PrincipalFromContext(ctx context.Context) *Principal {
	if p, ok := ctx.Value(principalKey).(*Principal); ok {
		return p
	}
	return nil
}

// UserIDFromContext extracts the authenticated user's id from the request
// context. Returns 0 outside the Auth middleware.
func UserIDFromContext(ctx context.Context) int64 {
	if p := PrincipalFromContext(ctx); p != nil {
		return p.UserID
	}
	return 0
}

func writeAuthError(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"code":    "UNAUTHORIZED",
		"message": "invalid or missing credentials",
	})
}
