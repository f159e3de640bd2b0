// Package auth issues and verifies the bearer tokens that identify the
// acting member.
//
// Accounts live with an external identity provider. The server checks the
// HS256 signature, issuer and lifetime, then reads the member from the
// claims. Sign is for local development and tests (see cmd/token).
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mmynk/splitledger/internal/models"
)

// Issuer is written to and required in every token.
const Issuer = "splitledger"

// clockSkew is how far apart signer and verifier clocks may drift.
const clockSkew = 30 * time.Second

var (
	ErrInvalidToken = errors.New("invalid or expired token")
	ErrMissingToken = errors.New("authorization token required")
)

// TokenSigner signs member tokens with a shared secret and verifies them.
type TokenSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// Claims carries the member identity next to the registered claims.
type Claims struct {
	UserID     string `json:"user_id"`
	Name       string `json:"name"`
	ProfileURL string `json:"picture,omitempty"`
	jwt.RegisteredClaims
}

// User returns the member identity carried by the claims.
func (c *Claims) User() models.User {
	return models.User{ID: c.UserID, Name: c.Name, ProfileURL: c.ProfileURL}
}

func NewTokenSigner(secret string, ttl time.Duration) *TokenSigner {
	return &TokenSigner{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Sign returns a token for user valid for the signer's ttl.
func (s *TokenSigner) Sign(user models.User) (string, error) {
	if user.ID == "" {
		return "", errors.New("failed to sign token: user id is required")
	}
	issued := s.now()
	claims := &Claims{
		UserID:     user.ID,
		Name:       user.Name,
		ProfileURL: user.ProfileURL,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(issued),
			NotBefore: jwt.NewNumericDate(issued),
			ExpiresAt: jwt.NewNumericDate(issued.Add(s.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify checks token and returns its claims. Every failure wraps
// ErrInvalidToken.
func (s *TokenSigner) Verify(token string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(clockSkew),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.UserID == "" || claims.Subject != claims.UserID {
		return nil, fmt.Errorf("%w: subject does not match user", ErrInvalidToken)
	}
	return claims, nil
}
