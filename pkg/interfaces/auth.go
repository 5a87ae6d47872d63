package interfaces

import (
	"context"

	"github.com/google/uuid"
)

// Actor identifies the authenticated editor performing a write.
type Actor struct {
	ID      uuid.UUID
	Subject string
	Role    string
}

// IsZero reports whether the actor carries no identity.
func (a Actor) IsZero() bool {
	return a.ID == uuid.Nil
}

// ActorResolver resolves the authenticated actor for a request context.
// Implementations return false when the caller is anonymous.
type ActorResolver interface {
	ResolveActor(ctx context.Context) (Actor, bool)
}
