package shared

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/dgknshn20/yapigraniterp/internal/platform/httpx"
)

// Header names populated by the upstream authentication proxy.
const (
	HeaderActorID   = "X-Actor-ID"
	HeaderActorRole = "X-Actor-Role"
)

// WithActor reads the trusted actor headers and attaches the Actor to the
// request context. Requests without a valid role are rejected.
func WithActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(r.Header.Get(HeaderActorID), 10, 64)
		role := Role(r.Header.Get(HeaderActorRole))
		if err != nil || id <= 0 || !role.Valid() {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing or invalid actor identity")
			return
		}
		ctx := ContextWithActor(r.Context(), Actor{ID: id, Role: role})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRoles gates a route on the actor's role. ADMIN always passes.
func RequireRoles(roles ...Role) func(http.Handler) http.Handler {
	allowed := make(map[Role]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor := ActorFromContext(r.Context())
			if _, ok := allowed[actor.Role]; !ok && !actor.IsAdmin() {
				httpx.RespondError(w, fmt.Errorf("%w: role not permitted for this action", httpx.ErrForbidden))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
