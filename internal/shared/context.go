package shared

import "context"

type sessionContextKey struct{}

type actorContextKey struct{}

// ContextWithSession stores the session in context.
func ContextWithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, sess)
}

// SessionFromContext extracts the session from context.
func SessionFromContext(ctx context.Context) *Session {
	sess, _ := ctx.Value(sessionContextKey{}).(*Session)
	return sess
}

// ContextWithActor records the acting user id for audit trails.
func ContextWithActor(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, actorContextKey{}, userID)
}

// ActorFromContext returns the acting user id, falling back to the session user.
func ActorFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(actorContextKey{}).(string); ok && id != "" {
		return id
	}
	if sess := SessionFromContext(ctx); sess != nil {
		return sess.User()
	}
	return ""
}
