package session

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenClaims is the subset of JWT claims the client cares about for
// display purposes. The token is treated as opaque for authentication
// (presence alone means authenticated), but whoami can still show who the
// backend thinks you are and when the token lapses.
type TokenClaims struct {
	UserID string `json:"user_id,omitempty"`
	Email  string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// InspectToken decodes a JWT without verifying its signature. The client
// has no signing secret and no business validating backend tokens; this
// is informational only.
func InspectToken(token string) (*TokenClaims, error) {
	claims := &TokenClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("failed to decode token: %w", err)
	}
	return claims, nil
}

// ExpiresIn returns the remaining token lifetime, or zero when the token
// carries no expiry claim or is already expired.
func (c *TokenClaims) ExpiresIn(now time.Time) time.Duration {
	if c.ExpiresAt == nil {
		return 0
	}
	remaining := c.ExpiresAt.Time.Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}
