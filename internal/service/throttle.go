// throttle.go — ограничение частоты заявок с одного IP на Redis
// (фиксированное окно: INCR + EXPIRE).
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// throttleKeyPrefix — префикс ключей счётчиков в Redis.
const throttleKeyPrefix = "pv:intake:"

// RedisThrottler — счётчик заявок в фиксированном окне.
type RedisThrottler struct {
	client redis.Cmdable
	limit  int64
	window time.Duration
}

// NewRedisThrottler создаёт throttle: не более limit заявок за window.
func NewRedisThrottler(client redis.Cmdable, limit int, window time.Duration) *RedisThrottler {
	return &RedisThrottler{
		client: client,
		limit:  int64(limit),
		window: window,
	}
}

// Allow увеличивает счётчик ключа и сообщает, укладывается ли он в лимит.
// Ошибка Redis возвращается вызывающему, решение fail-open принимает он.
func (t *RedisThrottler) Allow(ctx context.Context, key string) (bool, error) {
	redisKey := throttleKeyPrefix + key

	pipe := t.client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.ExpireNX(ctx, redisKey, t.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("throttle %s: %w", key, err)
	}

	return incr.Val() <= t.limit, nil
}
