// Package session keeps the per-browser user state: the Conduit token and
// username the SPA would otherwise hold in a global store.
package session

import (
	"context"
	"errors"

	"conduit-facade/internal/domain"
)

// ErrNotFound is returned when a session does not exist or has expired.
var ErrNotFound = errors.New("session not found")

// Store persists sessions. Implementations drop a session once its
// ExpiresAt has passed.
type Store interface {
	Get(ctx context.Context, id string) (*domain.Session, error)
	Put(ctx context.Context, s *domain.Session) error
	Delete(ctx context.Context, id string) error
}
