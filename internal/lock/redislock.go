package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisLocker is a distributed Locker backed by a Redis SET NX PX /
// compare-and-delete pair, for multi-process deployments of the engine
// (§6.4's row-level-locking requirement extended across processes).
type RedisLocker struct {
	client  *redis.Client
	ttl     time.Duration
	retry   time.Duration
	keyPfx  string
	log     zerolog.Logger
}

// NewRedisLocker builds a RedisLocker. ttl bounds how long a lock is held
// before it self-expires (a safety net against a crashed holder); retry is
// the poll interval used while waiting to acquire.
func NewRedisLocker(client *redis.Client, ttl, retry time.Duration, log zerolog.Logger) *RedisLocker {
	return &RedisLocker{
		client: client,
		ttl:    ttl,
		retry:  retry,
		keyPfx: "bte:lock:",
		log:    log.With().Str("component", "lock.RedisLocker").Logger(),
	}
}

var unlockScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`)

// Lock blocks, polling every retry interval, until it sets the key or the
// context expires.
func (r *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	token := uuid.NewString()
	redisKey := r.keyPfx + key

	ticker := time.NewTicker(r.retry)
	defer ticker.Stop()

	for {
		ok, err := r.client.SetNX(ctx, redisKey, token, r.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("redis lock acquire %q: %w", key, err)
		}
		if ok {
			release := func() {
				if err := unlockScript.Run(context.Background(), r.client, []string{redisKey}, token).Err(); err != nil {
					r.log.Warn().Err(err).Str("key", key).Msg("redis lock release failed")
				}
			}
			return release, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
