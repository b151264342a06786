package lock

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// compare-and-delete so an expired owner cannot release a lock taken over by someone else
var redisReleaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis is a lease lock shared by every instance talking to the same Redis.
// The lease expires after ttl so a crashed owner cannot wedge a calendar.
type Redis struct {
	rdb    redis.UniversalClient
	wait   time.Duration
	ttl    time.Duration
	poll   time.Duration
	prefix string
	log    *slog.Logger
}

type RedisOption func(*Redis)

func WithTTL(ttl time.Duration) RedisOption {
	return func(r *Redis) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

func WithPollInterval(d time.Duration) RedisOption {
	return func(r *Redis) {
		if d > 0 {
			r.poll = d
		}
	}
}

func WithPrefix(prefix string) RedisOption {
	return func(r *Redis) {
		if p := strings.TrimSpace(prefix); p != "" {
			r.prefix = p
		}
	}
}

func WithLogger(log *slog.Logger) RedisOption {
	return func(r *Redis) {
		if log != nil {
			r.log = log
		}
	}
}

func NewRedis(rdb redis.UniversalClient, wait time.Duration, opts ...RedisOption) *Redis {
	if wait <= 0 {
		wait = DefaultWait
	}
	r := &Redis{
		rdb:    rdb,
		wait:   wait,
		ttl:    30 * time.Second,
		poll:   25 * time.Millisecond,
		prefix: "chronobook:lock",
		log:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Redis) Acquire(ctx context.Context, key string) (func(), error) {
	k := r.prefix + ":" + key
	token := uuid.NewString()
	deadline := time.Now().Add(r.wait)

	for {
		ok, err := r.rdb.SetNX(ctx, k, token, r.ttl).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			return r.releaser(k, token), nil
		}
		if !time.Now().Before(deadline) {
			return nil, ErrTimeout
		}

		t := time.NewTimer(r.poll)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}
}

func (r *Redis) releaser(key, token string) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := redisReleaseScript.Run(ctx, r.rdb, []string{key}, token).Err(); err != nil {
				r.log.Warn("redis lock release failed", slog.String("key", key), slog.Any("err", err))
			}
		})
	}
}
