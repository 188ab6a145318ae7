// Package auth supplies bearer tokens to the API client.
//
// Tokens come from an explicit flag or environment value, or from the
// session file written by "leapadmin login". Providers never perform I/O
// beyond reading that file.
package auth

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenProvider yields the current bearer token, if any.
type TokenProvider interface {
	Token() (string, bool)
}

// StaticToken is a token fixed at construction, typically from --token or
// LEAPADMIN_TOKEN. The empty string means no token.
type StaticToken string

// Token implements TokenProvider.
func (s StaticToken) Token() (string, bool) {
	return string(s), s != ""
}

// Chain returns the token of the first provider that has one.
type Chain []TokenProvider

// Token implements TokenProvider.
func (c Chain) Token() (string, bool) {
	for _, p := range c {
		if p == nil {
			continue
		}
		if tok, ok := p.Token(); ok {
			return tok, true
		}
	}
	return "", false
}

// TokenExpiry reads the exp claim of a JWT without verifying its signature.
// ok is false when token is not a JWT or carries no exp claim.
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

// Expired reports whether token should no longer be sent. A JWT whose payload
// cannot be read is treated as expired; opaque non-JWT tokens never expire
// on the client side.
func Expired(token string, now time.Time) bool {
	if strings.Count(token, ".") != 2 {
		return false
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return true
	}
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return true
	}
	if exp == nil {
		return false
	}
	return !now.Before(exp.Time)
}
