package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/meridian-care/platform/internal/privacy"
	"github.com/meridian-care/platform/internal/shared/config"
)

type contextKey string

const (
	UserContextKey contextKey = "user"
)

// User represents the authenticated caller from JWT claims.
type User struct {
	ID        string       `json:"sub"`
	Role      privacy.Role `json:"role"`
	Name      string       `json:"name,omitempty"`
	SessionID string       `json:"session_id,omitempty"`
}

// Claims extends JWT claims with the clinical role.
type Claims struct {
	jwt.RegisteredClaims
	Role      string `json:"role"`
	Name      string `json:"name,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

// Middleware creates JWT authentication middleware. The token's role
// claim must map to a known clinical role; anything else is rejected
// before the handler runs.
func Middleware(cfg config.AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeError(w, http.StatusUnauthorized, "missing authorization header")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				writeError(w, http.StatusUnauthorized, "invalid authorization header format")
				return
			}

			token, err := jwt.ParseWithClaims(parts[1], &Claims{}, func(token *jwt.Token) (interface{}, error) {
				return []byte(cfg.JWTSecret), nil
			})
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			claims, ok := token.Claims.(*Claims)
			if !ok || !token.Valid {
				writeError(w, http.StatusUnauthorized, "invalid token claims")
				return
			}

			role, ok := privacy.ParseRole(claims.Role)
			if !ok {
				writeError(w, http.StatusForbidden, "unknown role")
				return
			}

			user := &User{
				ID:        claims.Subject,
				Role:      role,
				Name:      claims.Name,
				SessionID: claims.SessionID,
			}

			ctx := context.WithValue(r.Context(), UserContextKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetUser extracts the user from request context.
func GetUser(ctx context.Context) *User {
	user, ok := ctx.Value(UserContextKey).(*User)
	if !ok {
		return nil
	}
	return user
}

// RequireRoles creates middleware that requires one of the given roles.
func RequireRoles(roles ...privacy.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := GetUser(r.Context())
			if user == nil {
				writeError(w, http.StatusUnauthorized, "authentication required")
				return
			}

			for _, role := range roles {
				if user.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}

			writeError(w, http.StatusForbidden, "insufficient permissions")
		})
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
