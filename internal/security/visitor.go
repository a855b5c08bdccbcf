package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrInvalidVisitor = errors.New("invalid visitor token")

const visitorIssuer = "breakupguide"

// VisitorSigner issues the signed cookie that identifies a browser profile.
// The visitor ID is the namespace of that browser's funnel state.
type VisitorSigner struct {
	secret []byte
	ttl    time.Duration
}

func NewVisitorSigner(secret string, ttl time.Duration) *VisitorSigner {
	return &VisitorSigner{secret: []byte(secret), ttl: ttl}
}

// TTL is how long an issued token stays valid
func (s *VisitorSigner) TTL() time.Duration {
	return s.ttl
}

// NewVisitor mints a fresh visitor ID and its token
func (s *VisitorSigner) NewVisitor() (id, token string, err error) {
	id = uuid.NewString()
	token, err = s.Sign(id)
	return id, token, err
}

// Sign returns an HS256 token with id as subject
func (s *VisitorSigner) Sign(id string) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   id,
		Issuer:    visitorIssuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Verify returns the visitor ID carried by token
func (s *VisitorSigner) Verify(token string) (string, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(visitorIssuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidVisitor, err)
	}
	if _, err := uuid.Parse(claims.Subject); err != nil {
		return "", fmt.Errorf("%w: bad subject", ErrInvalidVisitor)
	}
	return claims.Subject, nil
}
