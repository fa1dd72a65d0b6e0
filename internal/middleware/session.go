package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"conduit-facade/internal/domain"
)

// SessionCookie is the cookie holding the session ID.
const SessionCookie = "conduit_session"

// SessionResolver finds or creates the session for a cookie value.
type SessionResolver interface {
	Resolve(ctx context.Context, id string) (*domain.Session, bool, error)
}

// SessionMiddleware attaches a session to every request, creating an
// anonymous one when the cookie is missing or stale.
type SessionMiddleware struct {
	resolver SessionResolver
	logger   *slog.Logger
	secure   bool
}

// NewSessionMiddleware creates the middleware. secure marks the cookie Secure.
func NewSessionMiddleware(resolver SessionResolver, logger *slog.Logger, secure bool) *SessionMiddleware {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionMiddleware{resolver: resolver, logger: logger, secure: secure}
}

// Middleware returns the echo middleware.
func (m *SessionMiddleware) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			var id string
			if cookie, err := req.Cookie(SessionCookie); err == nil {
				id = cookie.Value
			}

			s, created, err := m.resolver.Resolve(req.Context(), id)
			if err != nil {
				m.logger.ErrorContext(req.Context(), "session resolution failed", "error", err)
				return echo.NewHTTPError(http.StatusServiceUnavailable, "session store unavailable")
			}
			if created {
				SetSessionCookie(c, s, m.secure)
			}

			c.SetRequest(req.WithContext(domain.SetSession(req.Context(), s)))
			return next(c)
		}
	}
}

// SetSessionCookie writes the session cookie, expiring with the session.
func SetSessionCookie(c echo.Context, s *domain.Session, secure bool) {
	cookie := &http.Cookie{
		Name:     SessionCookie,
		Value:    s.ID,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	if !s.ExpiresAt.IsZero() {
		cookie.Expires = s.ExpiresAt
		cookie.MaxAge = int(time.Until(s.ExpiresAt).Seconds())
	}
	c.SetCookie(cookie)
}

// ClearSessionCookie removes the session cookie.
func ClearSessionCookie(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
}
