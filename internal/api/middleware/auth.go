package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/Rrens/livedesk/internal/api/response"
	"github.com/Rrens/livedesk/internal/domain"
	"github.com/Rrens/livedesk/internal/security"
)

type contextKey string

const principalKey contextKey = "principal"

// AuthMiddleware resolves the bearer token to a Principal for the agent and
// admin REST surface.
type AuthMiddleware struct {
	auth security.Authenticator
}

// NewAuthMiddleware creates a new auth middleware
func NewAuthMiddleware(auth security.Authenticator) *AuthMiddleware {
	return &AuthMiddleware{auth: auth}
}

// Authenticate validates the bearer token and stores the principal in the
// request context.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			response.Error(w, http.StatusUnauthorized, "missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			response.Error(w, http.StatusUnauthorized, "invalid authorization header format")
			return
		}

		principal, err := m.auth.Authenticate(r.Context(), parts[1])
		if err != nil {
			response.Unauthorized(w, "invalid or expired token")
			return
		}

		ctx := context.WithValue(r.Context(), principalKey, *principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin rejects non-admin principals. Must run after Authenticate.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := GetPrincipal(r.Context())
		if !ok || !p.IsAdmin() {
			response.Forbidden(w, "admin role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetPrincipal gets the authenticated principal from context.
func GetPrincipal(ctx context.Context) (domain.Principal, bool) {
	p, ok := ctx.Value(principalKey).(domain.Principal)
	return p, ok
}
