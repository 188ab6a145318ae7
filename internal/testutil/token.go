package testutil

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenSecret signs tokens made by SignedToken.
const TokenSecret = "test-secret"

// SignedToken returns an HS256 JWT for subject sub. A zero exp leaves the
// exp claim out.
func SignedToken(t testing.TB, sub string, exp time.Time) string {
	t.Helper()
	claims := jwt.MapClaims{"sub": sub}
	if !exp.IsZero() {
		claims["exp"] = exp.Unix()
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(TokenSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return tok
}
