package locksvc

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/session"
)

const (
	keyPrefix     = "ratiba:lock:"
	retryInterval = 50 * time.Millisecond
	defaultTTL    = 30 * time.Second
)

// deletes the key only while it still holds our token
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisLocker serializes holders of the same keys across API instances with SET NX PX.
// A holder that dies keeps its keys until the TTL expires.
type RedisLocker struct {
	client *redis.Client
	ttl    time.Duration
	logger core.Logger
}

var _ session.Locker = (*RedisLocker)(nil)

func NewRedisClient(ctx context.Context, conf *core.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     conf.Redis.Addr,
		Password: conf.Redis.Password,
		DB:       conf.Redis.DB,
	})
	if _, err := client.Ping(ctx).Result(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "pinging redis")
	}
	return client, nil
}

func NewRedisLocker(client *redis.Client, logger core.Logger, conf *core.Config) *RedisLocker {
	ttl := conf.Lock.TTL
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &RedisLocker{client: client, ttl: ttl, logger: logger}
}

func (l *RedisLocker) Acquire(ctx context.Context, keys ...string) (func(), error) {
	token := uuid.New().String()
	held := make([]string, 0, len(keys))
	release := func() {
		bg := context.Background()
		for i := len(held) - 1; i >= 0; i-- {
			if err := releaseScript.Run(bg, l.client, []string{keyPrefix + held[i]}, token).Err(); err != nil {
				l.logger.Error("releasing redis lock", errors.Wrap(err, held[i]))
			}
		}
		held = held[:0]
	}

	for _, k := range keys {
		if err := l.lock(ctx, k, token); err != nil {
			release()
			return nil, err
		}
		held = append(held, k)
	}
	return release, nil
}

func (l *RedisLocker) lock(ctx context.Context, key, token string) error {
	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return errors.Wrapf(ctx.Err(), "waiting for %s", key)
		case <-timer.C:
		}
		ok, err := l.client.SetNX(ctx, keyPrefix+key, token, l.ttl).Result()
		if err != nil {
			return errors.Wrapf(err, "locking %s", key)
		}
		if ok {
			return nil
		}
		timer.Reset(retryInterval)
	}
}
