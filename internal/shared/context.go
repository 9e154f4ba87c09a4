package shared

import "context"

// Actor identifies the user performing a request for audit purposes.
type Actor struct {
	Name string
	IP   string
}

type actorContextKey struct{}

// ContextWithActor stores the request actor in the context.
func ContextWithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext returns the request actor, or a zero Actor when absent.
func ActorFromContext(ctx context.Context) Actor {
	actor, _ := ctx.Value(actorContextKey{}).(Actor)
	return actor
}
