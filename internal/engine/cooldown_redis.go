package engine

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisCooldownStore keeps cooldown expiries in a per-org sorted set scored
// by expiry time (unix milliseconds). Entries are compared against logical
// time supplied by the caller, never against Redis TTLs, so simulated time
// works against this store too.
type RedisCooldownStore struct {
	client *redis.Client
	orgID  string
}

func NewRedisCooldownStore(client *redis.Client, orgID string) *RedisCooldownStore {
	return &RedisCooldownStore{client: client, orgID: orgID}
}

func (s *RedisCooldownStore) key() string {
	return fmt.Sprintf("playbook:cooldowns:%s", s.orgID)
}

func member(playbookID, customerID uuid.UUID) string {
	return playbookID.String() + ":" + customerID.String()
}

func (s *RedisCooldownStore) IsCoolingDown(ctx context.Context, playbookID, customerID uuid.UUID, asOf time.Time) (bool, time.Time, error) {
	score, err := s.client.ZScore(ctx, s.key(), member(playbookID, customerID)).Result()
	if err == redis.Nil {
		return false, time.Time{}, nil
	}
	if err != nil {
		return false, time.Time{}, fmt.Errorf("cooldown lookup: %w", err)
	}
	expiresAt := time.UnixMilli(int64(score))
	if !expiresAt.After(asOf) {
		return false, time.Time{}, nil
	}
	return true, expiresAt, nil
}

func (s *RedisCooldownStore) StartCooldown(ctx context.Context, playbookID, customerID uuid.UUID, asOf time.Time, duration time.Duration) error {
	if duration <= 0 {
		return nil
	}
	expiresAt := asOf.Add(duration)
	err := s.client.ZAdd(ctx, s.key(), redis.Z{
		Score:  float64(expiresAt.UnixMilli()),
		Member: member(playbookID, customerID),
	}).Err()
	if err != nil {
		return fmt.Errorf("cooldown start: %w", err)
	}
	return nil
}

func (s *RedisCooldownStore) ExpireBetween(ctx context.Context, from, to time.Time) (int, error) {
	// Exclusive lower bound: entries expiring exactly at `from` were
	// already expired before the jump.
	min := "(" + strconv.FormatInt(from.UnixMilli(), 10)
	max := strconv.FormatInt(to.UnixMilli(), 10)
	count, err := s.client.ZCount(ctx, s.key(), min, max).Result()
	if err != nil {
		return 0, fmt.Errorf("cooldown count: %w", err)
	}
	return int(count), nil
}

func (s *RedisCooldownStore) Reset(ctx context.Context) error {
	return s.client.Del(ctx, s.key()).Err()
}
