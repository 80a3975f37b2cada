package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// SessionRevocations stores ended session ids until their token would expire.
type SessionRevocations struct {
	rdb func() *redis.Client
}

// NewSessionRevocations uses the package-level client at call time.
func NewSessionRevocations() *SessionRevocations {
	return &SessionRevocations{rdb: GetClient}
}

// Revoke marks jti as ended for ttl.
func (s *SessionRevocations) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	rdb := s.rdb()
	if rdb == nil {
		return errors.New("redis unavailable")
	}
	return rdb.Set(ctx, RevokedKey(jti), "1", ttl).Err()
}

// IsRevoked reports whether jti was revoked. Without Redis nothing is revoked.
func (s *SessionRevocations) IsRevoked(ctx context.Context, jti string) (bool, error) {
	rdb := s.rdb()
	if rdb == nil {
		return false, nil
	}
	n, err := rdb.Exists(ctx, RevokedKey(jti)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
