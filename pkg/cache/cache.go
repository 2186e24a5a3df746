// Package cache is a small in-memory byte cache backed by freecache.
package cache

import (
	"errors"
	"time"

	"github.com/Brownie44l1/leuko-api/pkg/metric"
	"github.com/coocood/freecache"
)

const (
	HitRate    = "in_memory_cache_hit_rate"
	ItemCount  = "in_memory_cache_item_count"
	minSize    = 512 * 1024
	noExpiry   = 0
	metricTick = time.Minute
)

var ErrMiss = errors.New("cache miss")

type Cache struct {
	name  string
	store *freecache.Cache
}

// New allocates a cache of sizeInBytes (freecache enforces a 512KB minimum).
func New(name string, sizeInBytes int) *Cache {
	if sizeInBytes < minSize {
		sizeInBytes = minSize
	}
	return &Cache{name: name, store: freecache.NewCache(sizeInBytes)}
}

func (c *Cache) Get(key []byte) ([]byte, error) {
	v, err := c.store.Get(key)
	if errors.Is(err, freecache.ErrNotFound) {
		return nil, ErrMiss
	}
	return v, err
}

// Set stores value; ttl <= 0 keeps it until evicted.
func (c *Cache) Set(key, value []byte, ttl time.Duration) error {
	seconds := noExpiry
	if ttl > 0 {
		seconds = int(ttl.Seconds())
		if seconds == 0 {
			seconds = 1
		}
	}
	return c.store.Set(key, value, seconds)
}

func (c *Cache) Has(key []byte) bool {
	_, err := c.store.Get(key)
	return err == nil
}

func (c *Cache) Delete(key []byte) bool {
	return c.store.Del(key)
}

// PublishMetrics reports hit rate and entry count until stop is closed.
func (c *Cache) PublishMetrics(stop <-chan struct{}) {
	ticker := time.NewTicker(metricTick)
	defer ticker.Stop()
	tags := metric.BuildTag(metric.NewTag("cache_name", c.name))
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			metric.Gauge(HitRate, c.store.HitRate(), tags)
			metric.Gauge(ItemCount, float64(c.store.EntryCount()), tags)
		}
	}
}
