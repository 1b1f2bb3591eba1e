package cache

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

type localEntry struct {
	value    string
	deadline time.Time // zero means no expiry
}

func (e localEntry) liveAt(now time.Time) bool {
	return e.deadline.IsZero() || now.Before(e.deadline)
}

// LocalCache is the process-local ports.Cache used when no Redis URL is
// configured. Entries are not shared between instances, so analytics reports
// and token revocations only hold for this process.
type LocalCache struct {
	mu   sync.Mutex
	data map[string]localEntry
	now  func() time.Time
	log  *zap.Logger

	cancel context.CancelFunc
}

func NewLocalCache(cleanupInterval time.Duration, log *zap.Logger) *LocalCache {
	if cleanupInterval <= 0 {
		cleanupInterval = time.Minute
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &LocalCache{
		data:   make(map[string]localEntry),
		now:    time.Now,
		log:    log,
		cancel: cancel,
	}
	go c.janitor(ctx, cleanupInterval)

	log.Info("Using local cache", zap.Duration("cleanup_interval", cleanupInterval))
	return c
}

// Get returns ("", nil) for a missing or expired key and drops the latter
func (c *LocalCache) Get(ctx context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.data[key]
	if !ok {
		return "", nil
	}
	if !e.liveAt(c.now()) {
		delete(c.data, key)
		return "", nil
	}
	return e.value, nil
}

func (c *LocalCache) Set(ctx context.Context, key string, value string, expiration time.Duration) error {
	e := localEntry{value: value}
	c.mu.Lock()
	defer c.mu.Unlock()
	if expiration > 0 {
		e.deadline = c.now().Add(expiration)
	}
	c.data[key] = e
	return nil
}

func (c *LocalCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	delete(c.data, key)
	c.mu.Unlock()
	return nil
}

func (c *LocalCache) Ping() error { return nil }

// Close stops the janitor. It is safe to call more than once.
func (c *LocalCache) Close() error {
	c.cancel()
	return nil
}

func (c *LocalCache) janitor(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := c.cleanup(); n > 0 {
				c.log.Debug("Dropped expired cache entries", zap.Int("count", n))
			}
		}
	}
}

// cleanup removes expired entries and returns how many it dropped
func (c *LocalCache) cleanup() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	dropped := 0
	for key, e := range c.data {
		if !e.liveAt(now) {
			delete(c.data, key)
			dropped++
		}
	}
	return dropped
}
