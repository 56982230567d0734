package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sprintium/internal/jwtauth"
)

// ErrUnauthorized is returned for every token that cannot be accepted:
// malformed, badly signed, expired, signed with the wrong key, or revoked.
var ErrUnauthorized = errors.New("unauthorized")

// Identity is the acting user of a request.
type Identity struct {
	Email     string
	TokenID   string
	ExpiresAt time.Time
}

// Resolver turns a session token into the acting identity.
type Resolver struct {
	tokens  *jwtauth.Service
	revoked RevocationStore
}

// NewResolver creates a Resolver. A nil store disables revocation checks.
func NewResolver(tokens *jwtauth.Service, revoked RevocationStore) *Resolver {
	if revoked == nil {
		revoked = NopRevocationStore{}
	}
	return &Resolver{tokens: tokens, revoked: revoked}
}

// Resolve verifies token and returns the identity it was issued to.
// Verification failures return ErrUnauthorized; revocation store failures
// are returned wrapped so callers can tell an outage from a bad token.
func (r *Resolver) Resolve(ctx context.Context, token string) (*Identity, error) {
	claims, err := r.tokens.VerifySessionToken(token)
	if err != nil {
		return nil, ErrUnauthorized
	}

	revoked, err := r.revoked.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve identity: %w", err)
	}
	if revoked {
		return nil, ErrUnauthorized
	}

	return identityFromClaims(claims), nil
}

// ResolveReset verifies a password reset token that has not been redeemed yet.
// Invalid, expired and already used tokens all return jwtauth.ErrInvalidOrExpiredToken.
func (r *Resolver) ResolveReset(ctx context.Context, token string) (*Identity, error) {
	claims, err := r.tokens.VerifyResetToken(token)
	if err != nil {
		return nil, jwtauth.ErrInvalidOrExpiredToken
	}

	revoked, err := r.revoked.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check reset token: %w", err)
	}
	if revoked {
		return nil, jwtauth.ErrInvalidOrExpiredToken
	}

	return identityFromClaims(claims), nil
}

func identityFromClaims(claims *jwtauth.Claims) *Identity {
	identity := &Identity{
		Email:   claims.Email(),
		TokenID: claims.ID,
	}
	if claims.ExpiresAt != nil {
		identity.ExpiresAt = claims.ExpiresAt.Time
	}
	return identity
}

// Revoke invalidates the token behind identity for the rest of its lifetime.
func (r *Resolver) Revoke(ctx context.Context, identity *Identity) error {
	if identity == nil || identity.TokenID == "" {
		return nil
	}
	return r.revoked.Revoke(ctx, identity.TokenID, identity.ExpiresAt)
}
