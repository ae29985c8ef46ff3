package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/kbukum/snapstream/logger"
)

const lockNamespace = "__lock__:"

// DefaultLockTTL bounds how long WithLock holds a key.
const DefaultLockTTL = 30 * time.Second

var (
	// ErrLockHeld is returned by TryLock when another holder owns the key.
	ErrLockHeld = errors.New("redis: lock is held")
	// ErrLockLost is returned by Release when the lock expired or was taken
	// over before release.
	ErrLockLost = errors.New("redis: lock was lost")
)

var releaseScript = goredis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

func isLockKey(full string) bool {
	return strings.HasPrefix(full, lockNamespace) || strings.Contains(full, ":"+lockNamespace)
}

// Lock is a held key lock. Only the holder's token can release it.
type Lock struct {
	store *Store
	key   string
	token string
}

// Key returns the locked store key.
func (l *Lock) Key() string { return l.key }

func (s *Store) lockKey(key string) string {
	if s.prefix == "" {
		return lockNamespace + key
	}
	return s.prefix + ":" + lockNamespace + key
}

// TryLock claims key for ttl with SET NX PX. It fails with ErrLockHeld when
// the key is already locked.
func (s *Store) TryLock(ctx context.Context, key string, ttl time.Duration) (*Lock, error) {
	token := uuid.NewString()
	ok, err := s.client.Unwrap().SetNX(ctx, s.lockKey(key), token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("lock %q: %w", key, err)
	}
	if !ok {
		return nil, ErrLockHeld
	}
	return &Lock{store: s, key: key, token: token}, nil
}

// Lock waits for key with exponential backoff until it is acquired or ctx
// ends.
func (s *Store) Lock(ctx context.Context, key string, ttl time.Duration) (*Lock, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 10 * time.Millisecond
	policy.MaxInterval = 500 * time.Millisecond

	lk, err := backoff.Retry(ctx, func() (*Lock, error) {
		lk, err := s.TryLock(ctx, key, ttl)
		if err != nil && !errors.Is(err, ErrLockHeld) {
			return nil, backoff.Permanent(err)
		}
		return lk, err
	}, backoff.WithBackOff(policy), backoff.WithMaxElapsedTime(0))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("lock %q: %w", key, ctxErr)
		}
		return nil, err
	}
	return lk, nil
}

// Release deletes the lock if it still carries this holder's token.
func (l *Lock) Release(ctx context.Context) error {
	n, err := releaseScript.Run(ctx, l.store.client.Unwrap(), []string{l.store.lockKey(l.key)}, l.token).Int()
	if err != nil {
		return fmt.Errorf("unlock %q: %w", l.key, err)
	}
	if n == 0 {
		return ErrLockLost
	}
	return nil
}

// WithLock runs fn while holding the lock on key. The lock is released even
// when fn fails; release failures are joined to fn's error.
func (s *Store) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	lk, err := s.Lock(ctx, key, DefaultLockTTL)
	if err != nil {
		return err
	}
	fnErr := fn(ctx)

	releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := lk.Release(releaseCtx); err != nil {
		s.log.Warn("Lock release failed", logger.ErrFields(err, "key", key))
		return errors.Join(fnErr, err)
	}
	return fnErr
}
