package auth

import (
	"errors"
	"strings"
)

var (
	// ErrUnauthorized means no usable credential was presented at all.
	ErrUnauthorized = errors.New("access denied")
	// ErrInvalidToken means a credential was presented but failed verification.
	ErrInvalidToken = errors.New("invalid token")
)

// Gate verifies bearer credentials on protected routes.
type Gate struct {
	issuer *Issuer
}

func NewGate(issuer *Issuer) *Gate {
	return &Gate{issuer: issuer}
}

// Authenticate extracts the token from an "Authorization: Bearer <token>"
// header value and verifies it.
func (g *Gate) Authenticate(header string) (*Claims, error) {
	token, ok := BearerToken(header)
	if !ok {
		return nil, ErrUnauthorized
	}
	return g.issuer.Verify(token)
}

// BearerToken returns the token part of a bearer header value.
func BearerToken(header string) (string, bool) {
	fields := strings.Fields(header)
	if len(fields) != 2 || !strings.EqualFold(fields[0], "Bearer") {
		return "", false
	}
	return fields[1], true
}
