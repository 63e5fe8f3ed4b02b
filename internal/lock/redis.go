package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyNamespace = "groupbuy:lock:"

// unlockScript удаляет ключ, только если он всё ещё принадлежит владельцу.
var unlockScript = `if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`

type cmdable interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) *redis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...any) *redis.Cmd
}

// RedisLocker реализует распределённую блокировку по ключу поверх Redis (SET NX PX).
type RedisLocker struct {
	store cmdable
	raw   *redis.Client
	ttl   time.Duration
	retry time.Duration
}

// NewRedisLocker подключается к Redis по URL и проверяет соединение.
func NewRedisLocker(ctx context.Context, url string, ttl time.Duration) (*RedisLocker, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	raw := redis.NewClient(opts)
	if err := raw.Ping(ctx).Err(); err != nil {
		_ = raw.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return newRedisLocker(raw, ttl), nil
}

func newRedisLocker(store cmdable, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	l := &RedisLocker{store: store, ttl: ttl, retry: 20 * time.Millisecond}
	if raw, ok := store.(*redis.Client); ok {
		l.raw = raw
	}
	return l
}

// Lock захватывает ключ с TTL, повторяя попытки до отмены контекста.
// TTL ограничивает время удержания блокировки упавшим процессом.
func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	full := keyNamespace + key
	token := uuid.NewString()

	for {
		ok, err := l.store.SetNX(ctx, full, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if ok {
			break
		}

		timer := time.NewTimer(l.retry)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	return func() {
		// контекст запроса к этому моменту может быть отменён
		releaseCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = l.store.Eval(releaseCtx, unlockScript, []string{full}, token).Err()
	}, nil
}

// Close закрывает соединение с Redis.
func (l *RedisLocker) Close() error {
	if l.raw == nil {
		return nil
	}
	return l.raw.Close()
}
