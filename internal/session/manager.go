package session

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"conduit-facade/internal/domain"
)

// ErrEmptyToken is returned by Login when no token is given.
var ErrEmptyToken = errors.New("token is required")

// Manager creates, resolves and updates sessions on top of a Store.
type Manager struct {
	store  Store
	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger
}

// NewManager creates a Manager. ttl bounds every session's lifetime.
func NewManager(store Store, ttl time.Duration, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{store: store, ttl: ttl, now: time.Now, logger: logger}
}

// Resolve returns the session for id, or a fresh anonymous one when id is
// empty, unknown or expired. created reports whether a new session was made.
func (m *Manager) Resolve(ctx context.Context, id string) (s *domain.Session, created bool, err error) {
	if id != "" {
		s, err = m.store.Get(ctx, id)
		if err == nil {
			return s, false, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, false, err
		}
	}

	now := m.now()
	s = &domain.Session{
		ID:        uuid.NewString(),
		CreatedAt: now,
		ExpiresAt: now.Add(m.ttl),
	}
	if err := m.store.Put(ctx, s); err != nil {
		return nil, false, err
	}
	return s, true, nil
}

// Login stores the user's token on the session.
func (m *Manager) Login(ctx context.Context, s *domain.Session, token, username string) (*domain.Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrEmptyToken
	}

	updated := *s
	updated.Token = token
	updated.Username = username
	updated.ExpiresAt = ExpiresAt(token, m.now(), m.ttl)
	if err := m.store.Put(ctx, &updated); err != nil {
		return nil, err
	}

	m.logger.InfoContext(ctx, "session authenticated", "session_id", s.ID, "username", username)
	return &updated, nil
}

// Logout deletes the session.
func (m *Manager) Logout(ctx context.Context, s *domain.Session) error {
	return m.store.Delete(ctx, s.ID)
}
