package auth

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid or expired token")
	ErrMissingToken = errors.New("missing authorization token")
)

// Claims holds the JWT payload.
type Claims struct {
	Scope string `json:"scope,omitempty"`
	jwt.RegisteredClaims
}

// JWTManager mints and validates HS256 bearer tokens. The decision loop uses
// it to sign requests to the reasoning service; the debug API uses it to
// authenticate observers.
type JWTManager struct {
	secret []byte
	issuer string
	expiry time.Duration
}

// NewJWTManager creates a JWTManager with the given secret.
func NewJWTManager(secret string) *JWTManager {
	return &JWTManager{
		secret: []byte(secret),
		issuer: "hannibal",
		expiry: 5 * time.Minute,
	}
}

// WithExpiry returns a copy of m that issues tokens valid for d.
func (m *JWTManager) WithExpiry(d time.Duration) *JWTManager {
	cp := *m
	cp.expiry = d
	return &cp
}

// GenerateToken creates a short-lived token for subject.
func (m *JWTManager) GenerateToken(subject, scope string) (string, error) {
	now := time.Now()
	claims := &Claims{
		Scope: scope,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(m.expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// ValidateToken parses and validates a JWT string, returning the claims.
func (m *JWTManager) ValidateToken(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// SignedCredential mints a fresh bearer token for every request.
type SignedCredential struct {
	mgr     *JWTManager
	subject string
	scope   string
}

// NewSignedCredential signs tokens for subject with mgr.
func NewSignedCredential(mgr *JWTManager, subject, scope string) *SignedCredential {
	return &SignedCredential{mgr: mgr, subject: subject, scope: scope}
}

// Token implements the inference credential contract.
func (c *SignedCredential) Token(context.Context) (string, error) {
	return c.mgr.GenerateToken(c.subject, c.scope)
}

// StaticCredential is a fixed API key sent as the bearer token.
type StaticCredential string

// Token implements the inference credential contract.
func (c StaticCredential) Token(context.Context) (string, error) {
	if c == "" {
		return "", ErrMissingToken
	}
	return string(c), nil
}
