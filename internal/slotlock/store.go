package slotlock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"slotbook/internal/metrics"
	"slotbook/internal/schedule"

	"github.com/redis/go-redis/v9"
)

const DefaultTTL = 10 * time.Minute

var ErrEmptySession = errors.New("session id is required")

// Acquire or renew. The holder may re-lock; anyone else is refused.
const lockScript = `
local holder = redis.call('GET', KEYS[1])
if holder == false or holder == ARGV[1] then
	redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[2])
	return 1
end
return 0`

const unlockScript = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0`

// Store is a session-scoped advisory hold on a slot occurrence. It only keeps
// two customers from filling the same checkout form; capacity is enforced by
// the booking transaction.
type Store struct {
	redis      *redis.Client
	defaultTTL time.Duration
}

func NewStore(rdb *redis.Client, defaultTTL time.Duration) *Store {
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}
	return &Store{redis: rdb, defaultTTL: defaultTTL}
}

func Key(locationID int64, date time.Time, start schedule.Clock) string {
	return fmt.Sprintf("slotlock:%d:%s:%s", locationID, date.Format(schedule.DateLayout), start)
}

// Lock returns false when another session holds key. A zero ttl uses the store default.
func (s *Store) Lock(ctx context.Context, key, session string, ttl time.Duration) (bool, error) {
	if session == "" {
		return false, ErrEmptySession
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}

	res, err := s.redis.Eval(ctx, lockScript, []string{key}, session, ttl.Milliseconds()).Int64()
	if err != nil {
		return false, fmt.Errorf("lock %s: %w", key, err)
	}

	if res == 1 {
		metrics.RecordSlotLock("acquired")
		return true, nil
	}
	metrics.RecordSlotLock("refused")
	return false, nil
}

// Unlock releases key only if session owns it.
func (s *Store) Unlock(ctx context.Context, key, session string) (bool, error) {
	if session == "" {
		return false, ErrEmptySession
	}

	res, err := s.redis.Eval(ctx, unlockScript, []string{key}, session).Int64()
	if err != nil {
		return false, fmt.Errorf("unlock %s: %w", key, err)
	}
	return res == 1, nil
}

// IsLocked reports whether key is held by anyone other than excludingSession.
func (s *Store) IsLocked(ctx context.Context, key, excludingSession string) (bool, error) {
	holder, err := s.redis.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check lock %s: %w", key, err)
	}
	return excludingSession == "" || holder != excludingSession, nil
}

// TTL is how long key stays held; zero when it is free.
func (s *Store) TTL(ctx context.Context, key string) (time.Duration, error) {
	d, err := s.redis.PTTL(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, nil
	}
	return d, nil
}
