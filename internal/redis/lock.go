package redisclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/hackgods/healing-scheduler/internal/scheduling"
)

const retryInterval = 25 * time.Millisecond

type redisStaffLocker struct {
	client redis.Cmdable
	ttl    time.Duration
	wait   time.Duration
	logger *zap.Logger
}

// NewRedisStaffLocker creates a locker that uses a per staff Redis key.
// Callers poll for up to wait before giving up with scheduling.ErrLockNotAcquired.
func NewRedisStaffLocker(client redis.Cmdable, ttl, wait time.Duration, logger *zap.Logger) scheduling.Locker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &redisStaffLocker{
		client: client,
		ttl:    ttl,
		wait:   wait,
		logger: logger,
	}
}

func lockKey(staffID int64) string {
	return fmt.Sprintf("lock:staff:%d", staffID)
}

func (l *redisStaffLocker) WithStaffLock(ctx context.Context, staffID int64, fn func(ctx context.Context) error) error {
	key := lockKey(staffID)
	token := uuid.NewString()

	if err := l.acquire(ctx, key, token); err != nil {
		return err
	}

	defer func() {
		// release with a fresh context so a cancelled request still frees the key
		relCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := l.release(relCtx, key, token); err != nil {
			l.logger.Warn("staff lock release failed", zap.Int64("staff_id", staffID), zap.Error(err))
		}
	}()

	ctxWithTimeout, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()

	return fn(ctxWithTimeout)
}

func (l *redisStaffLocker) acquire(ctx context.Context, key, token string) error {
	deadline := time.Now().Add(l.wait)
	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return fmt.Errorf("acquire staff lock: %w", err)
		}
		if ok {
			return nil
		}
		if !time.Now().Add(retryInterval).Before(deadline) {
			return scheduling.ErrLockNotAcquired
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("acquire staff lock: %w", ctx.Err())
		case <-time.After(retryInterval):
		}
	}
}

var unlockScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

func (l *redisStaffLocker) release(ctx context.Context, key, token string) error {
	_, err := unlockScript.Run(ctx, l.client, []string{key}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release staff lock: %w", err)
	}
	return nil
}
