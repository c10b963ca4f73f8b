// Package dedupe guards against reconciling the same FormShare submission twice.
package dedupe

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultTTL is how long a claim is held when none is configured.
const DefaultTTL = 24 * time.Hour

const keyPrefix = "formshare:submission:"

// Guard claims submission ids so duplicate deliveries are skipped.
type Guard interface {
	Claim(ctx context.Context, submissionID string) (bool, error)
	Release(ctx context.Context, submissionID string) error
}

// Store is a Redis-backed Guard.
type Store struct {
	redis redis.Cmdable
	ttl   time.Duration
}

var _ Guard = (*Store)(nil)

// NewStore panics on a nil client, mirroring the other Redis stores.
func NewStore(client redis.Cmdable, ttl time.Duration) *Store {
	if client == nil {
		panic("dedupe: redis client required")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{redis: client, ttl: ttl}
}

func (s *Store) key(submissionID string) string {
	return keyPrefix + strings.TrimSpace(submissionID)
}

// Claim returns true the first time submissionID is seen within the TTL.
func (s *Store) Claim(ctx context.Context, submissionID string) (bool, error) {
	if strings.TrimSpace(submissionID) == "" {
		return false, errors.New("dedupe: submission id required")
	}
	ok, err := s.redis.SetNX(ctx, s.key(submissionID), time.Now().UTC().Format(time.RFC3339), s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("dedupe: claim %s: %w", submissionID, err)
	}
	return ok, nil
}

// Release drops a claim so the sender's retry is processed.
func (s *Store) Release(ctx context.Context, submissionID string) error {
	if err := s.redis.Del(ctx, s.key(submissionID)).Err(); err != nil {
		return fmt.Errorf("dedupe: release %s: %w", submissionID, err)
	}
	return nil
}
