package auth

import (
	"context"

	"github.com/HerbHall/tubedeck/internal/services"
)

// Identity is the signed-in user attached to a request.
type Identity struct {
	Session *services.Session
	User    *services.User
}

type identityKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// FromContext returns the identity stored by the session middleware.
func FromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(*Identity)
	return id, ok && id != nil
}
