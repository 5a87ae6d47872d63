// Package auth carries the authenticated editor on request contexts and
// verifies admin bearer tokens.
package auth

import (
	"context"

	"github.com/waliasolutions/mindful-mindset-coaching-sub001/pkg/interfaces"
)

type actorKey struct{}

// WithActor returns a context carrying actor. A zero actor is ignored.
func WithActor(ctx context.Context, actor interfaces.Actor) context.Context {
	if actor.IsZero() {
		return ctx
	}
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFromContext returns the actor stored by WithActor.
func ActorFromContext(ctx context.Context) (interfaces.Actor, bool) {
	if ctx == nil {
		return interfaces.Actor{}, false
	}
	actor, ok := ctx.Value(actorKey{}).(interfaces.Actor)
	if !ok || actor.IsZero() {
		return interfaces.Actor{}, false
	}
	return actor, true
}

// ContextResolver resolves actors placed on the context by WithActor.
type ContextResolver struct{}

func (ContextResolver) ResolveActor(ctx context.Context) (interfaces.Actor, bool) {
	return ActorFromContext(ctx)
}
