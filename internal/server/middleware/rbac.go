package middleware

import (
	"net/http"
	"slices"
)

// The companion knows two roles: members talk to the coach, admins review
// flagged safety events. There is no viewer tier; even read access to the
// audit surface exposes restricted data.
const (
	RoleAdmin  = "admin"
	RoleMember = "member"
)

// RequireRole gates a route group on the role the Auth middleware stored
// in the request context. A request that never passed Auth (no role in
// context) gets 401; an authenticated user outside the allowed set gets
// 403. Used with RoleAdmin to fence off the audit review and alert-stream
// surfaces.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role, ok := RoleFromContext(r.Context())
			if !ok || role == "" {
				http.Error(w, `{"title":"Unauthorized","status":401,"detail":"authentication required"}`, http.StatusUnauthorized)
				return
			}

			if !slices.Contains(roles, role) {
				http.Error(w, `{"title":"Forbidden","status":403,"detail":"insufficient permissions"}`, http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin gates the safety review surfaces.
func RequireAdmin() func(http.Handler) http.Handler {
	return RequireRole(RoleAdmin)
}
