package common

import (
	"time"

	"github.com/patrickmn/go-cache"
)

type Cache struct {
	*cache.Cache
}

// NewCache returns a cache whose entries never expire when expirationTime is zero.
func NewCache(expirationTime, cleanupTime time.Duration) *Cache {
	if expirationTime == 0 {
		expirationTime = cache.NoExpiration
	}
	return &Cache{cache.New(expirationTime, cleanupTime)}
}

func (c *Cache) Set(key string, value interface{}, expiration ...time.Duration) {
	if len(expiration) > 0 {
		c.Cache.Set(key, value, expiration[0])
		return
	}
	c.Cache.Set(key, value, cache.DefaultExpiration)
}

func (c *Cache) Get(key string) (interface{}, bool) {
	return c.Cache.Get(key)
}

func (c *Cache) GetBytes(key string) ([]byte, bool) {
	v, ok := c.Cache.Get(key)
	if !ok {
		return nil, false
	}
	b, ok := v.([]byte)
	return b, ok
}

func (c *Cache) Delete(keys ...string) {
	for _, key := range keys {
		c.Cache.Delete(key)
	}
}

func (c *Cache) Flush() {
	c.Cache.Flush()
}
