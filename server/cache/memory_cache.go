package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
)

// MemoryCache is the default backend: a bounded in-process map with per-key
// TTLs, LRU eviction when full, and a background sweep for expired entries.
type MemoryCache struct {
	entries   map[string]*memoryEntry
	mutex     sync.RWMutex
	maxSize   int
	ttl       time.Duration
	logger    *zap.Logger
	sweep     *time.Ticker
	stopCh    chan struct{}
	closeOnce sync.Once
}

// memoryEntry values hold the JSON encoding of what was stored, so reads
// behave exactly like the redis backend's.
type memoryEntry struct {
	value       []byte
	expiresAt   time.Time
	lastUsed    time.Time
	accessCount int64
}

func NewMemoryCache(maxSize int, ttl time.Duration, logger *zap.Logger) *MemoryCache {
	c := &MemoryCache{
		entries: make(map[string]*memoryEntry),
		maxSize: maxSize,
		ttl:     ttl,
		logger:  logger,
		stopCh:  make(chan struct{}),
	}

	c.sweep = time.NewTicker(1 * time.Minute)
	go c.sweepExpired()

	return c
}

func (c *MemoryCache) Set(ctx context.Context, key string, value any) error {
	return c.SetWithTTL(ctx, key, value, c.ttl)
}

func (c *MemoryCache) SetWithTTL(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cache value: %w", err)
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxSize {
		c.evictLRU()
	}

	c.entries[key] = &memoryEntry{
		value:       data,
		expiresAt:   time.Now().Add(ttl),
		lastUsed:    time.Now(),
		accessCount: 1,
	}

	return nil
}

func (c *MemoryCache) Get(ctx context.Context, key string, dest any) error {
	c.mutex.RLock()
	entry, exists := c.entries[key]
	c.mutex.RUnlock()

	if !exists {
		return ErrCacheMiss
	}

	if time.Now().After(entry.expiresAt) {
		c.mutex.Lock()
		delete(c.entries, key)
		c.mutex.Unlock()
		return ErrCacheMiss
	}

	c.mutex.Lock()
	entry.lastUsed = time.Now()
	entry.accessCount++
	data := entry.value
	c.mutex.Unlock()

	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("unmarshal cache value: %w", err)
	}
	return nil
}

func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	delete(c.entries, key)
	return nil
}

func (c *MemoryCache) Exists(ctx context.Context, key string) (bool, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	entry, exists := c.entries[key]
	if !exists {
		return false, nil
	}

	if time.Now().After(entry.expiresAt) {
		return false, nil
	}

	return true, nil
}

func (c *MemoryCache) GetTTL(ctx context.Context, key string) (time.Duration, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	entry, exists := c.entries[key]
	if !exists {
		return 0, ErrCacheMiss
	}

	if time.Now().After(entry.expiresAt) {
		return 0, ErrCacheMiss
	}

	return time.Until(entry.expiresAt), nil
}

func (c *MemoryCache) Increment(ctx context.Context, key string) (int64, error) {
	return c.increment(key, c.ttl, false)
}

func (c *MemoryCache) IncrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	return c.increment(key, ttl, true)
}

// increment mirrors redis INCR: the counter lives as its decimal encoding,
// and a non-numeric value restarts at one.
func (c *MemoryCache) increment(key string, ttl time.Duration, refreshTTL bool) (int64, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	now := time.Now()
	entry, exists := c.entries[key]
	if !exists || now.After(entry.expiresAt) {
		c.entries[key] = &memoryEntry{
			value:       []byte("1"),
			expiresAt:   now.Add(ttl),
			lastUsed:    now,
			accessCount: 1,
		}
		return 1, nil
	}

	count, err := strconv.ParseInt(string(entry.value), 10, 64)
	if err != nil {
		count = 0
	}
	count++
	entry.value = strconv.AppendInt(entry.value[:0], count, 10)
	entry.lastUsed = now
	entry.accessCount++
	if refreshTTL {
		entry.expiresAt = now.Add(ttl)
	}

	return count, nil
}

func (c *MemoryCache) Purge(ctx context.Context) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.entries = make(map[string]*memoryEntry)
	c.logger.Info("Memory cache purged")
	return nil
}

func (c *MemoryCache) GetStats(ctx context.Context) (*CacheStats, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	now := time.Now()
	expired := 0
	var totalAccess int64

	for _, entry := range c.entries {
		if now.After(entry.expiresAt) {
			expired++
		}
		totalAccess += entry.accessCount
	}

	return &CacheStats{
		Connected: true,
		Info: fmt.Sprintf("backend=memory,items=%d,expired=%d,access_count=%d,max_size=%d",
			len(c.entries), expired, totalAccess, c.maxSize),
	}, nil
}

func (c *MemoryCache) Close() error {
	c.closeOnce.Do(func() {
		c.sweep.Stop()
		close(c.stopCh)
	})
	return nil
}

// evictLRU drops the least recently used entry. Callers hold the lock.
func (c *MemoryCache) evictLRU() {
	var oldestKey string
	var oldestTime time.Time

	for key, entry := range c.entries {
		if oldestKey == "" || entry.lastUsed.Before(oldestTime) {
			oldestKey = key
			oldestTime = entry.lastUsed
		}
	}

	if oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}

func (c *MemoryCache) sweepExpired() {
	for {
		select {
		case <-c.sweep.C:
			c.mutex.Lock()
			now := time.Now()
			for key, entry := range c.entries {
				if now.After(entry.expiresAt) {
					delete(c.entries, key)
				}
			}
			c.mutex.Unlock()
		case <-c.stopCh:
			return
		}
	}
}
