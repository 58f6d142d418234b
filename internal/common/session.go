package common

import "context"

// Session holds the authenticated identity for one request. It is resolved
// by the bearer-token middleware and passed explicitly through the request
// context — there is no process-wide current-user state.
type Session struct {
	Username string
	Email    string
	Role     string
	Provider string
}

type contextKey int

const sessionContextKey contextKey = iota

// WithSession stores a Session in the request context.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey, s)
}

// SessionFromContext retrieves the Session from context, or nil if the
// request is unauthenticated.
func SessionFromContext(ctx context.Context) *Session {
	s, _ := ctx.Value(sessionContextKey).(*Session)
	return s
}

// IsAdmin reports whether the context carries an admin session.
func IsAdmin(ctx context.Context) bool {
	s := SessionFromContext(ctx)
	return s != nil && s.Role == "admin"
}
