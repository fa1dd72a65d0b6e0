package middleware

import "github.com/labstack/echo/v4"

// SecurityHeaders adds security-related HTTP headers to all responses.
// View models are per-session, so nothing may be cached by intermediaries.
func SecurityHeaders() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			h.Set("Cache-Control", "no-store, private")
			return next(c)
		}
	}
}
