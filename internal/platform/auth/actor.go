package auth

import (
	"context"
	"fmt"
)

// Role is the account type of an authenticated user.
type Role string

const (
	RolePatient    Role = "patient"
	RoleResearcher Role = "researcher"
)

// ParseRole validates a role string coming from a token or header.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RolePatient, RoleResearcher:
		return Role(s), nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// Actor is the authenticated user performing an operation. It is supplied by
// the identity provider and never modified by the forum.
type Actor struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Role        Role   `json:"role"`
	AvatarRef   string `json:"avatar_ref,omitempty"`
}

func (a *Actor) IsPatient() bool    { return a != nil && a.Role == RolePatient }
func (a *Actor) IsResearcher() bool { return a != nil && a.Role == RoleResearcher }

// Valid reports whether the actor carries enough identity to act.
func (a *Actor) Valid() bool {
	if a == nil || a.ID == "" {
		return false
	}
	_, err := ParseRole(string(a.Role))
	return err == nil
}

type contextKey string

const actorKey contextKey = "actor"

// WithActor returns a copy of ctx carrying the actor.
func WithActor(ctx context.Context, a *Actor) context.Context {
	return context.WithValue(ctx, actorKey, a)
}

// ActorFromContext returns the actor set by the auth middleware, or nil.
func ActorFromContext(ctx context.Context) *Actor {
	a, _ := ctx.Value(actorKey).(*Actor)
	return a
}
