package shared

import "context"

type sessionKey struct{}

// WithSession attaches the request session to ctx.
func WithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, sess)
}

// SessionFrom returns the request session, or nil outside the session middleware.
func SessionFrom(ctx context.Context) *Session {
	sess, _ := ctx.Value(sessionKey{}).(*Session)
	return sess
}

// ClientFrom returns the client id bound to the request session; 0 when signed out.
func ClientFrom(ctx context.Context) int64 {
	return SessionFrom(ctx).Client()
}
