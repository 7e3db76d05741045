// Package shared holds cross-domain primitives: the request actor, role
// gates, and common error values.
package shared

import "context"

// Role is the closed set of application roles supplied by the upstream
// authentication layer.
type Role string

const (
	RoleAdmin      Role = "ADMIN"
	RoleSales      Role = "SALES"
	RoleFinance    Role = "FINANCE"
	RoleProduction Role = "PRODUCTION"
)

// Valid reports whether the role belongs to the closed set.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleSales, RoleFinance, RoleProduction:
		return true
	}
	return false
}

// Actor identifies the authenticated caller. Credentials are validated
// upstream; the core trusts the identity it is handed.
type Actor struct {
	ID   int64
	Role Role
}

// IsAdmin reports whether the actor carries the ADMIN role.
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

type actorContextKey struct{}

// ContextWithActor stores the actor in context.
func ContextWithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext extracts the actor from context. The zero Actor is
// returned when no actor was attached.
func ActorFromContext(ctx context.Context) Actor {
	actor, _ := ctx.Value(actorContextKey{}).(Actor)
	return actor
}
