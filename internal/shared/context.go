package shared

import (
	"context"
	"strings"
)

// Role enumerates actor roles supplied by the auth gateway.
type Role string

const (
	// RoleAdmin approves proposals and manages master data.
	RoleAdmin Role = "admin"
	// RoleStaff proposes items and stock movements.
	RoleStaff Role = "staff"
)

// ParseRole validates a role string.
func ParseRole(raw string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleAdmin:
		return RoleAdmin, nil
	case RoleStaff:
		return RoleStaff, nil
	default:
		return "", Invalid("role", "must be admin or staff")
	}
}

// Actor is the authenticated identity threaded through every operation.
type Actor struct {
	ID   int64
	Role Role
}

// IsAdmin reports whether the actor holds the admin role.
func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }

// Valid reports whether the actor carries an identity and a known role.
func (a Actor) Valid() bool {
	return a.ID > 0 && (a.Role == RoleAdmin || a.Role == RoleStaff)
}

// RequireAdmin returns ErrForbidden unless the actor is an admin.
func RequireAdmin(a Actor) error {
	if !a.Valid() || !a.IsAdmin() {
		return ErrForbidden
	}
	return nil
}

// RequireActor returns ErrForbidden for an anonymous or malformed actor.
func RequireActor(a Actor) error {
	if !a.Valid() {
		return ErrForbidden
	}
	return nil
}

type actorContextKey struct{}

// ContextWithActor stores the actor in context.
func ContextWithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext extracts the actor from context.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(Actor)
	return actor, ok
}
