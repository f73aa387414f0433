package events

import "context"

// Session scopes the events of one running investigation
type Session struct {
	ID    string
	Start int64 // Absolute log cursor when the session began
}

type sessionKey struct{}

// WithSession returns a context carrying s
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// SessionFrom returns the session carried by ctx, or nil
func SessionFrom(ctx context.Context) *Session {
	if ctx == nil {
		return nil
	}
	s, _ := ctx.Value(sessionKey{}).(*Session)
	return s
}

// SessionID returns the id of the session in ctx, or ""
func SessionID(ctx context.Context) string {
	if s := SessionFrom(ctx); s != nil {
		return s.ID
	}
	return ""
}
