// cache.go — LRU-кэш каталога с TTL поверх hashicorp/golang-lru/v2/expirable.
package service

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// ContentCache — кэш ответов каталога. Ключ включает вид выборки и её
// параметры, значение хранится как есть. Кэш локален для процесса.
type ContentCache struct {
	cache *expirable.LRU[string, any]
}

// NewContentCache создаёт кэш на maxSize записей с временем жизни ttl.
func NewContentCache(maxSize int, ttl time.Duration) *ContentCache {
	return &ContentCache{cache: expirable.NewLRU[string, any](maxSize, nil, ttl)}
}

// Get возвращает значение и считает попадания и промахи.
func (c *ContentCache) Get(key string) (any, bool) {
	v, ok := c.cache.Get(key)
	if ok {
		contentCacheHitsTotal.Inc()
		return v, true
	}
	contentCacheMissesTotal.Inc()
	return nil, false
}

// Set добавляет или заменяет значение.
func (c *ContentCache) Set(key string, v any) {
	c.cache.Add(key, v)
}

// Purge очищает кэш.
func (c *ContentCache) Purge() {
	c.cache.Purge()
}

// Len — число записей.
func (c *ContentCache) Len() int {
	return c.cache.Len()
}

// cached берёт значение из кэша или вычисляет его через load.
// Ошибки load не кэшируются.
func cached[T any](c *ContentCache, key string, load func() (T, error)) (T, error) {
	if c != nil {
		if v, ok := c.Get(key); ok {
			if t, ok := v.(T); ok {
				return t, nil
			}
		}
	}
	t, err := load()
	if err != nil {
		return t, err
	}
	if c != nil {
		c.Set(key, t)
	}
	return t, nil
}
