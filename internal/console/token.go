package console

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenInfo is what the console can read from a pasted bearer token.
type TokenInfo struct {
	Subject   string
	Username  string
	ExpiresAt time.Time
}

// Expired reports whether the token carried an expiry that has passed.
func (i TokenInfo) Expired(now time.Time) bool {
	return !i.ExpiresAt.IsZero() && now.After(i.ExpiresAt)
}

// DescribeToken reads the claims of a JWT without verifying its signature.
// It is for display only; ok is false for anything that is not a JWT and the
// token is still used as is.
func DescribeToken(raw string) (TokenInfo, bool) {
	raw = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(raw), "Bearer "))
	if raw == "" {
		return TokenInfo{}, false
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return TokenInfo{}, false
	}

	var info TokenInfo
	if sub, err := claims.GetSubject(); err == nil {
		info.Subject = sub
	}
	if name, ok := claims["preferred_username"].(string); ok {
		info.Username = name
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		info.ExpiresAt = exp.Time
	}

	return info, true
}
