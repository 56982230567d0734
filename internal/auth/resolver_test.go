package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"sprintium/internal/jwtauth"
)

type stubRevocationStore struct {
	revoked map[string]time.Time
	err     error
}

func (s *stubRevocationStore) Revoke(_ context.Context, id string, until time.Time) error {
	if s.revoked == nil {
		s.revoked = make(map[string]time.Time)
	}
	s.revoked[id] = until
	return nil
}

func (s *stubRevocationStore) IsRevoked(_ context.Context, id string) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	_, ok := s.revoked[id]
	return ok, nil
}

func newTokens(t *testing.T) *jwtauth.Service {
	t.Helper()
	svc, err := jwtauth.NewService(jwtauth.Config{
		SessionKey: []byte("session-key"),
		ResetKey:   []byte("reset-key"),
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func TestResolver_Resolve(t *testing.T) {
	tokens := newTokens(t)
	resolver := NewResolver(tokens, nil)

	token, claims, err := tokens.IssueSessionToken("alice@example.com")
	if err != nil {
		t.Fatalf("IssueSessionToken: %v", err)
	}

	identity, err := resolver.Resolve(context.Background(), token)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if identity.Email != "alice@example.com" {
		t.Errorf("expected alice@example.com, got %q", identity.Email)
	}
	if identity.TokenID != claims.ID {
		t.Errorf("expected token ID %q, got %q", claims.ID, identity.TokenID)
	}
	if identity.ExpiresAt.IsZero() {
		t.Error("expected expiry to be set")
	}
}

func TestResolver_FailuresCollapseToUnauthorized(t *testing.T) {
	tokens := newTokens(t)
	resolver := NewResolver(tokens, nil)

	resetToken, _, err := tokens.IssueResetToken("alice@example.com")
	if err != nil {
		t.Fatalf("IssueResetToken: %v", err)
	}

	for name, token := range map[string]string{
		"garbage":     "garbage",
		"empty":       "",
		"reset token": resetToken,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := resolver.Resolve(context.Background(), token)
			if !errors.Is(err, ErrUnauthorized) {
				t.Errorf("expected ErrUnauthorized, got %v", err)
			}
		})
	}
}

func TestResolver_RevokedToken(t *testing.T) {
	tokens := newTokens(t)
	store := &stubRevocationStore{}
	resolver := NewResolver(tokens, store)
	ctx := context.Background()

	token, _, err := tokens.IssueSessionToken("alice@example.com")
	if err != nil {
		t.Fatalf("IssueSessionToken: %v", err)
	}

	identity, err := resolver.Resolve(ctx, token)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	if err := resolver.Revoke(ctx, identity); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if until := store.revoked[identity.TokenID]; !until.Equal(identity.ExpiresAt) {
		t.Errorf("expected revocation until %v, got %v", identity.ExpiresAt, until)
	}

	if _, err := resolver.Resolve(ctx, token); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized after revocation, got %v", err)
	}
}

func TestResolver_StoreFailureIsNotUnauthorized(t *testing.T) {
	tokens := newTokens(t)
	resolver := NewResolver(tokens, &stubRevocationStore{err: errors.New("connection refused")})

	token, _, err := tokens.IssueSessionToken("alice@example.com")
	if err != nil {
		t.Fatalf("IssueSessionToken: %v", err)
	}

	_, err = resolver.Resolve(context.Background(), token)
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, ErrUnauthorized) {
		t.Error("store outage must not be reported as unauthorized")
	}
}

func TestResolver_ResolveReset_SingleUse(t *testing.T) {
	tokens := newTokens(t)
	resolver := NewResolver(tokens, &stubRevocationStore{})
	ctx := context.Background()

	token, _, err := tokens.IssueResetToken("alice@example.com")
	if err != nil {
		t.Fatalf("IssueResetToken: %v", err)
	}

	identity, err := resolver.ResolveReset(ctx, token)
	if err != nil {
		t.Fatalf("ResolveReset: %v", err)
	}
	if identity.Email != "alice@example.com" {
		t.Errorf("expected alice@example.com, got %q", identity.Email)
	}

	if err := resolver.Revoke(ctx, identity); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if _, err := resolver.ResolveReset(ctx, token); !errors.Is(err, jwtauth.ErrInvalidOrExpiredToken) {
		t.Errorf("expected used token to be rejected, got %v", err)
	}
}

func TestResolver_ResolveReset_RejectsSessionToken(t *testing.T) {
	tokens := newTokens(t)
	resolver := NewResolver(tokens, nil)

	session, _, err := tokens.IssueSessionToken("alice@example.com")
	if err != nil {
		t.Fatalf("IssueSessionToken: %v", err)
	}

	if _, err := resolver.ResolveReset(context.Background(), session); !errors.Is(err, jwtauth.ErrInvalidOrExpiredToken) {
		t.Errorf("expected ErrInvalidOrExpiredToken, got %v", err)
	}
}
