// Package auth inspects bearer tokens for diagnostics. Verification is the
// server's job; nothing here grants or denies access.
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the subset of token claims the client cares about.
type Claims struct {
	UserID string `json:"user"`
	jwt.RegisteredClaims
}

// ParseClaims decodes a JWT bearer token without verifying its signature.
// It is used to attach the user id to logs and to warn about expired tokens
// before dialing.
func ParseClaims(token string) (*Claims, error) {
	claims := &Claims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	return claims, nil
}

// Expired reports whether the token carries an expiry in the past.
func (c *Claims) Expired(now time.Time) bool {
	if c.ExpiresAt == nil {
		return false
	}
	return c.ExpiresAt.Time.Before(now)
}
