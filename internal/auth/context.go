package auth

import (
	"context"

	"github.com/google/uuid"

	"github.com/Samocology/noap-backend/internal/model"
)

// Identity is the authenticated principal as seen by handlers. It is passed by value.
type Identity struct {
	ID       uuid.UUID      `json:"id"`
	Kind     model.Kind     `json:"kind"`
	Role     model.RoleName `json:"role"`
	Email    string         `json:"email"`
	Name     string         `json:"name"`
	Verified bool           `json:"is_verified"`
}

// IdentityOf projects a stored principal.
func IdentityOf(p model.Principal) Identity {
	creds := p.Creds()
	return Identity{
		ID:       p.PrincipalID(),
		Kind:     p.PrincipalKind(),
		Role:     model.RoleFor(p.PrincipalKind()),
		Email:    creds.Email,
		Name:     p.DisplayName(),
		Verified: creds.Verified,
	}
}

type identityContextKey struct{}

// ContextWithIdentity attaches the authenticated identity to the context.
func ContextWithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, identity)
}

// IdentityFromContext extracts the authenticated identity from the context.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	if ctx == nil {
		return Identity{}, false
	}
	v, ok := ctx.Value(identityContextKey{}).(Identity)
	return v, ok
}
