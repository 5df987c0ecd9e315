package shared

import (
	"context"

	"github.com/google/uuid"
)

// Principal describes the authenticated actor attached to a request.
type Principal struct {
	UserID uuid.UUID
	Role   string
}

type contextKey string

const principalKey contextKey = "principal"

// ContextWithPrincipal attaches the principal to the context.
func ContextWithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromContext returns the principal stored in the context, if any.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	return p, ok
}

// ActorID returns the acting user's id, or uuid.Nil when unauthenticated.
func ActorID(ctx context.Context) uuid.UUID {
	p, ok := PrincipalFromContext(ctx)
	if !ok {
		return uuid.Nil
	}
	return p.UserID
}
