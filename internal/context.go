package internal

import (
	"context"
	"time"
)

type ctxKey string

const ContextActorKey ctxKey = "actor"

// Actor is the authenticated caller of an operation.
type Actor struct {
	UserID  int64
	IsAdmin bool
}

func (a Actor) CanAccess(ownerID int64) bool {
	return a.IsAdmin || a.UserID == ownerID
}

func ActorFromContext(ctx context.Context) (Actor, bool) {
	if ctx == nil {
		return Actor{}, false
	}
	actor, ok := ctx.Value(ContextActorKey).(Actor)
	return actor, ok
}

func ContextWithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, ContextActorKey, actor)
}

// ResolveUser returns the user an operation runs for. A zero target means the actor itself;
// any other user requires admin rights.
func ResolveUser(actor Actor, target int64) (int64, error) {
	if target == 0 || target == actor.UserID {
		return actor.UserID, nil
	}
	if !actor.IsAdmin {
		return 0, ErrPermissionDenied
	}
	return target, nil
}

// WithTimeout returns a context with timeout, defaulting to 5 seconds if duration is zero or negative.
func WithTimeout(ctx context.Context, duration time.Duration) (context.Context, context.CancelFunc) {
	if duration <= 0 {
		duration = 5 * time.Second
	}
	return context.WithTimeout(ctx, duration)
}
