package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const revokedKeyPrefix = "sprintium:revoked:"

// RevocationStore records token IDs that must no longer be accepted, such as
// session tokens after logout and reset tokens after use.
// Entries only need to outlive the token they refer to.
type RevocationStore interface {
	// Revoke marks id as revoked until the given time.
	Revoke(ctx context.Context, id string, until time.Time) error

	// IsRevoked reports whether id has been revoked.
	IsRevoked(ctx context.Context, id string) (bool, error)
}

// RedisRevocationStore implements RevocationStore with one expiring key per token.
type RedisRevocationStore struct {
	rdb *redis.Client
	now func() time.Time
}

// NewRedisRevocationStore creates a RevocationStore backed by rdb.
func NewRedisRevocationStore(rdb *redis.Client) *RedisRevocationStore {
	return &RedisRevocationStore{rdb: rdb, now: time.Now}
}

// Revoke stores the token ID with a TTL equal to its remaining lifetime.
// Tokens that already expired are not stored.
func (s *RedisRevocationStore) Revoke(ctx context.Context, id string, until time.Time) error {
	if id == "" {
		return errors.New("token id is required")
	}
	ttl := until.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	if err := s.rdb.Set(ctx, revokedKeyPrefix+id, "1", ttl).Err(); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

// IsRevoked checks for the token ID's key.
func (s *RedisRevocationStore) IsRevoked(ctx context.Context, id string) (bool, error) {
	if id == "" {
		return false, nil
	}
	n, err := s.rdb.Exists(ctx, revokedKeyPrefix+id).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check token revocation: %w", err)
	}
	return n > 0, nil
}

// NopRevocationStore never revokes anything. Used when Redis is not configured,
// which makes logout stateless.
type NopRevocationStore struct{}

func (NopRevocationStore) Revoke(context.Context, string, time.Time) error { return nil }

func (NopRevocationStore) IsRevoked(context.Context, string) (bool, error) { return false, nil }
