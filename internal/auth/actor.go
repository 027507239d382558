// Package auth carries the identity of whoever performs an order action.
// Token issuance lives outside this service; we only verify bearer tokens.
package auth

import "context"

type Role string

const (
	RoleCustomer Role = "customer"
	RoleStaff    Role = "staff"
)

type Actor struct {
	ID   string
	Role Role
}

func (a Actor) IsStaff() bool { return a.Role == RoleStaff }

type ctxKey struct{}

func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, ctxKey{}, a)
}

// ActorFrom returns the actor stored in ctx, if any. Calls without an actor
// come from inside the system (consumers, jobs).
func ActorFrom(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(ctxKey{}).(Actor)
	return a, ok
}
