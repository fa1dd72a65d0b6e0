package domain

import (
	"context"
	"errors"
	"time"
)

type contextKey string

const sessionContextKey contextKey = "session"

// ErrNoSession is returned when no session is found in the context.
var ErrNoSession = errors.New("no session in context")

// Session is the per-browser state the SPA used to keep in its global store.
// An anonymous session has an ID but no token.
type Session struct {
	ID        string    `json:"id"`
	Token     string    `json:"token,omitempty"`
	Username  string    `json:"username,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SetSession attaches a session to the given context.
func SetSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey, s)
}

// GetSession retrieves the session from the given context.
func GetSession(ctx context.Context) (*Session, error) {
	s, ok := ctx.Value(sessionContextKey).(*Session)
	if !ok || s == nil {
		return nil, ErrNoSession
	}
	return s, nil
}

// IsAuthenticated reports whether the session carries an API token.
func (s *Session) IsAuthenticated() bool {
	return s != nil && s.Token != ""
}

// IsExpired checks the expiry against now. A zero ExpiresAt never expires.
func (s *Session) IsExpired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}
