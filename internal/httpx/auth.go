package httpx

import (
	"context"
	"net/http"
	"strings"

	"github.com/mrrahbarnia/Backend-Form-Generator/internal/authz"
)

// Identity headers set by the authentication layer in front of this service.
const (
	HeaderUserID   = "X-User-Id"
	HeaderUserRole = "X-User-Role"
)

type contextKey struct{ name string }

var userKey = contextKey{"user"}

// WithUser resolves the requester identity from headers and stores it on the
// request context. Requests without identity headers proceed as anonymous;
// handlers decide whether that is acceptable.
func WithUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := authz.User{
			ID:   strings.TrimSpace(r.Header.Get(HeaderUserID)),
			Role: strings.ToLower(strings.TrimSpace(r.Header.Get(HeaderUserRole))),
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey, user)))
	})
}

// UserFrom returns the requester stored by WithUser.
func UserFrom(ctx context.Context) authz.User {
	user, _ := ctx.Value(userKey).(authz.User)
	return user
}

// RequireAuthenticated rejects requests without a resolved user id.
func RequireAuthenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if UserFrom(r.Context()).ID == "" {
			Error(w, http.StatusUnauthorized, "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireElevated rejects requests from non-elevated users.
func RequireElevated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := UserFrom(r.Context())
		if user.ID == "" {
			Error(w, http.StatusUnauthorized, "authentication required")
			return
		}
		if !authz.IsElevated(user) {
			Error(w, http.StatusForbidden, "admin role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
