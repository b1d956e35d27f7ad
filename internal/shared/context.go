package shared

import "context"

type sessionContextKey struct{}

type callerContextKey struct{}

// Caller identifies the authenticated user for the current request.
// It is assembled once by the auth middleware and carried in context;
// downstream code must never reach back into session state or globals.
type Caller struct {
	ID    int64
	Email string
	Role  string
}

// ContextWithSession stores the session in context.
func ContextWithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, sess)
}

// SessionFromContext extracts the session from context.
func SessionFromContext(ctx context.Context) *Session {
	sess, _ := ctx.Value(sessionContextKey{}).(*Session)
	return sess
}

// ContextWithCaller stores the resolved caller in context.
func ContextWithCaller(ctx context.Context, caller *Caller) context.Context {
	return context.WithValue(ctx, callerContextKey{}, caller)
}

// CallerFromContext extracts the caller from context; nil when unauthenticated.
func CallerFromContext(ctx context.Context) *Caller {
	caller, _ := ctx.Value(callerContextKey{}).(*Caller)
	return caller
}
