package middleware

import (
	"context"
	"net/http"

	"github.com/go-site-api/internal/domain"
	websession "github.com/go-site-api/internal/transport/http/session"
)

type contextKey string

const userKey contextKey = "user"

// RequireUser returns middleware that resolves the cookie session to a user
// and injects it into the request context. Anonymous requests get a 401; the
// session cookie is re-committed on the way out so lazy renewals and purges
// reach the client.
func RequireUser(sessions *websession.Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cs := sessions.FromRequest(r)
			u := cs.GetUser(r.Context())
			cs.Save(w)
			if u == nil {
				writeJSONError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			ctx := context.WithValue(r.Context(), userKey, u)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole returns middleware that allows access only to users whose role
// matches one of the provided role names (e.g. domain.RoleAdmin).
// It must run inside RequireUser.
func RequireRole(allowedRoles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, ok := UserFromContext(r.Context())
			if !ok {
				writeJSONError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			for _, role := range allowedRoles {
				if u.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeJSONError(w, http.StatusForbidden, "forbidden")
		})
	}
}

// UserFromContext extracts the signed-in user from the request context.
func UserFromContext(ctx context.Context) (*domain.User, bool) {
	u, ok := ctx.Value(userKey).(*domain.User)
	return u, ok
}
