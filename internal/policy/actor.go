package policy

import "context"

// Actor describes the authenticated principal performing a request.
// Authentication itself happens upstream; the actor is always passed in
// explicitly, never read from ambient state.
type Actor struct {
	ID   string
	Role Role
}

type actorContextKey struct{}

// ContextWithActor stores the actor in context.
func ContextWithActor(ctx context.Context, actor *Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext extracts the actor from context, nil when absent.
func ActorFromContext(ctx context.Context) *Actor {
	actor, _ := ctx.Value(actorContextKey{}).(*Actor)
	return actor
}
