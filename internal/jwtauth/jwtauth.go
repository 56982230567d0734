// Package jwtauth issues and verifies the HS256 tokens used for sessions and
// password resets.
package jwtauth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	SessionTTL = 30 * time.Minute
	ResetTTL   = 15 * time.Minute
)

// Purpose distinguishes the two token classes. It is carried in the claims in
// addition to the classes being signed with different keys.
type Purpose string

const (
	PurposeSession Purpose = "session"
	PurposeReset   Purpose = "reset"
)

var (
	ErrInvalidToken          = errors.New("invalid token")
	ErrInvalidOrExpiredToken = errors.New("invalid or expired reset token")
)

// Claims are the claims carried by every token this package issues.
// The subject is the user's email.
type Claims struct {
	jwt.RegisteredClaims
	Purpose Purpose `json:"purpose"`
}

// Email returns the identity the token was issued for.
func (c *Claims) Email() string {
	return c.Subject
}

// Signer issues and verifies one class of token with one key.
type Signer struct {
	key     []byte
	ttl     time.Duration
	purpose Purpose
	now     func() time.Time
}

// NewSigner creates a signer for tokens of the given purpose.
func NewSigner(key []byte, ttl time.Duration, purpose Purpose) (*Signer, error) {
	if len(key) == 0 {
		return nil, fmt.Errorf("%s signing key is required", purpose)
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("%s token lifetime must be positive", purpose)
	}
	return &Signer{
		key:     key,
		ttl:     ttl,
		purpose: purpose,
		now:     time.Now,
	}, nil
}

// Issue signs a new token for subject. The returned claims carry the token ID
// and expiry so callers can revoke it later.
func (s *Signer) Issue(subject string) (string, *Claims, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return "", nil, errors.New("token subject is required")
	}

	now := s.now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
		Purpose: s.purpose,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return "", nil, fmt.Errorf("failed to sign %s token: %w", s.purpose, err)
	}
	return signed, claims, nil
}

// Verify parses tokenString and checks signature, algorithm, expiry and
// purpose. The error wraps the parser's reason; callers collapse it.
func (s *Signer) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		return s.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("token is not valid")
	}
	if claims.Purpose != s.purpose {
		return nil, fmt.Errorf("unexpected token purpose %q", claims.Purpose)
	}
	if claims.Subject == "" {
		return nil, errors.New("token has no subject")
	}
	return claims, nil
}

// Config holds the two signing keys. They must be distinct.
type Config struct {
	SessionKey []byte
	ResetKey   []byte
}

// Service is the token service: session tokens (30 minutes) and password
// reset tokens (15 minutes) signed with different keys.
type Service struct {
	session *Signer
	reset   *Signer
}

// NewService builds the token service. Keys are copied and never mutated.
func NewService(cfg Config) (*Service, error) {
	if string(cfg.SessionKey) == string(cfg.ResetKey) {
		return nil, errors.New("session and reset signing keys must differ")
	}

	session, err := NewSigner(append([]byte(nil), cfg.SessionKey...), SessionTTL, PurposeSession)
	if err != nil {
		return nil, err
	}
	reset, err := NewSigner(append([]byte(nil), cfg.ResetKey...), ResetTTL, PurposeReset)
	if err != nil {
		return nil, err
	}

	return &Service{session: session, reset: reset}, nil
}

// IssueSessionToken issues a session token for the given email.
func (s *Service) IssueSessionToken(subject string) (string, *Claims, error) {
	return s.session.Issue(subject)
}

// VerifySessionToken returns the claims of a valid session token, or ErrInvalidToken.
func (s *Service) VerifySessionToken(token string) (*Claims, error) {
	claims, err := s.session.Verify(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return claims, nil
}

// IssueResetToken issues a password reset token for the given email.
func (s *Service) IssueResetToken(subject string) (string, *Claims, error) {
	return s.reset.Issue(subject)
}

// VerifyResetToken returns the claims of a valid reset token, or ErrInvalidOrExpiredToken.
func (s *Service) VerifyResetToken(token string) (*Claims, error) {
	claims, err := s.reset.Verify(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOrExpiredToken, err)
	}
	return claims, nil
}

// SetClock overrides the time source of both signers.
func (s *Service) SetClock(now func() time.Time) {
	s.session.now = now
	s.reset.now = now
}
