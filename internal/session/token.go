package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenExpiry returns the exp claim of a Conduit JWT. The signature is not
// verified: the facade never holds the API's signing key and only uses the
// claim to bound the session lifetime. ok is false for tokens that are not
// JWTs or carry no exp.
func TokenExpiry(token string) (exp time.Time, ok bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	t, err := claims.GetExpirationTime()
	if err != nil || t == nil {
		return time.Time{}, false
	}
	return t.Time, true
}

// ExpiresAt picks the session expiry: now+ttl, capped by the token's exp.
func ExpiresAt(token string, now time.Time, ttl time.Duration) time.Time {
	expiry := now.Add(ttl)
	if exp, ok := TokenExpiry(token); ok && exp.Before(expiry) {
		return exp
	}
	return expiry
}
