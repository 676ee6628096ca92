// Package cache implements a bounded in-memory result cache with TTL,
// size, and criticality-aware eviction and a self-tuning cleanup interval.
package cache

import (
	"sort"
	"sync"
	"time"

	"github.com/omnivoice/omni/internal/errors"
	"github.com/omnivoice/omni/internal/event"
	"github.com/omnivoice/omni/internal/logging"
)

// Cleanup interval bounds. The adaptive loop never tunes outside these.
const (
	MinCleanupInterval = 60 * time.Second
	MaxCleanupInterval = 3600 * time.Second
)

// largeEntryFraction marks entries bigger than this share of the size
// budget as large, making them the second eviction tier.
const largeEntryFraction = 0.10

// entry is the stored record for one key.
type entry struct {
	value        any
	createdAt    time.Time
	ttl          time.Duration // 0 means no expiry
	sizeBytes    int64
	accessCount  int64
	lastAccessAt time.Time
	isLarge      bool
	isCritical   bool
}

// expired reports whether the entry's TTL has elapsed at now.
func (e *entry) expired(now time.Time) bool {
	return e.ttl > 0 && now.Sub(e.createdAt) > e.ttl
}

// score ranks non-critical entries for the final eviction tier. Higher is
// better to keep. The formula is deterministic: frequently and recently
// accessed small entries score highest.
//
//	score = (accessCount + 1) / ((ageSeconds + 1) * sizeKB)
func (e *entry) score(now time.Time) float64 {
	age := now.Sub(e.lastAccessAt).Seconds()
	sizeKB := float64(e.sizeBytes) / 1024.0
	if sizeKB < 1 {
		sizeKB = 1
	}
	return float64(e.accessCount+1) / ((age + 1) * sizeKB)
}

// Options configures an AdaptiveCache.
type Options struct {
	// MaxSize is the total size budget in bytes. Required, must be positive.
	MaxSize int64
	// CleanupInterval is the starting interval for the periodic cleanup
	// pass. Clamped to [MinCleanupInterval, MaxCleanupInterval].
	CleanupInterval time.Duration
	// Estimator computes entry sizes. Defaults to DefaultEstimator.
	Estimator SizeEstimator
	// Bus receives eviction and interval-change events. Optional.
	Bus *event.Bus
	// Logger for cache diagnostics. Defaults to a no-op logger.
	Logger *logging.Logger
}

// AdaptiveCache is a bounded key/value store. All operations are safe for
// concurrent use; mutations are serialized by a single mutex so the size
// accounting is always consistent.
type AdaptiveCache struct {
	mu sync.Mutex

	entries     map[string]*entry
	currentSize int64
	maxSize     int64
	estimate    SizeEstimator

	// Adaptive cleanup state
	cleanupInterval     time.Duration
	evictedSinceCleanup int64
	lastCleanupAt       time.Time

	bus    *event.Bus
	logger *logging.Logger

	stopCh  chan struct{}
	doneCh  chan struct{}
	started bool
}

// New creates an AdaptiveCache. The cleanup loop does not run until
// StartCleanup is called.
func New(opts Options) *AdaptiveCache {
	if opts.Estimator == nil {
		opts.Estimator = DefaultEstimator
	}
	if opts.Logger == nil {
		opts.Logger = logging.NopLogger()
	}
	interval := opts.CleanupInterval
	if interval < MinCleanupInterval {
		interval = MinCleanupInterval
	}
	if interval > MaxCleanupInterval {
		interval = MaxCleanupInterval
	}

	return &AdaptiveCache{
		entries:         make(map[string]*entry),
		maxSize:         opts.MaxSize,
		estimate:        opts.Estimator,
		cleanupInterval: interval,
		lastCleanupAt:   time.Now(),
		bus:             opts.Bus,
		logger:          opts.Logger.WithComponent("cache"),
		stopCh:          make(chan struct{}),
		doneCh:          make(chan struct{}),
	}
}

// Set stores a value with the given TTL. A ttl of 0 means no expiry.
func (c *AdaptiveCache) Set(key string, value any, ttl time.Duration) error {
	return c.set(key, value, ttl, false)
}

// SetCritical stores a value exempt from score-based and large-entry
// eviction. Critical entries still expire by TTL.
func (c *AdaptiveCache) SetCritical(key string, value any, ttl time.Duration) error {
	return c.set(key, value, ttl, true)
}

func (c *AdaptiveCache) set(key string, value any, ttl time.Duration, critical bool) error {
	if key == "" {
		return errors.NewCacheError("key must not be empty", errors.ErrInvalidKey).WithOp("set")
	}
	if ttl < 0 {
		return errors.NewCacheError("ttl must not be negative", errors.ErrInvalidTTL).
			WithKey(key).WithOp("set")
	}

	size := c.estimate(value) + entryOverhead + int64(len(key))
	if size > c.maxSize && !critical {
		return errors.NewCacheError("value exceeds cache size budget", errors.ErrOversizeValue).
			WithKey(key).WithOp("set")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Replacing an existing entry releases its size, but the old entry is
	// kept until the replacement is known to fit.
	var prev *entry
	if old, ok := c.entries[key]; ok {
		prev = old
		c.currentSize -= old.sizeBytes
		delete(c.entries, key)
	}

	if c.currentSize+size > c.maxSize {
		c.makeRoom(size)
	}
	if c.currentSize+size > c.maxSize && !critical {
		// Everything left is critical; the new entry loses and a
		// replaced entry is restored.
		if prev != nil {
			c.entries[key] = prev
			c.currentSize += prev.sizeBytes
		}
		return errors.NewCacheError("cache full of critical entries", errors.ErrOversizeValue).
			WithKey(key).WithOp("set")
	}

	now := time.Now()
	c.entries[key] = &entry{
		value:        value,
		createdAt:    now,
		ttl:          ttl,
		sizeBytes:    size,
		lastAccessAt: now,
		isLarge:      float64(size) > float64(c.maxSize)*largeEntryFraction,
		isCritical:   critical,
	}
	c.currentSize += size

	return nil
}

// Get returns the cached value for key. Expired entries are deleted lazily
// and reported as a miss. A hit updates the entry's access metadata.
func (c *AdaptiveCache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}

	now := time.Now()
	if e.expired(now) {
		c.removeLocked(key)
		return nil, false
	}

	e.accessCount++
	e.lastAccessAt = now
	return e.value, true
}

// Delete removes a key. Removing a missing key is a no-op.
func (c *AdaptiveCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removeLocked(key)
}

// Clear removes every entry.
func (c *AdaptiveCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry)
	c.currentSize = 0
}

// Len returns the number of live entries, counting expired ones that have
// not yet been swept.
func (c *AdaptiveCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// CurrentSize returns the accounted size of all entries in bytes.
func (c *AdaptiveCache) CurrentSize() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentSize
}

// CleanupInterval returns the current adaptive cleanup interval.
func (c *AdaptiveCache) CleanupInterval() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cleanupInterval
}

// removeLocked deletes a key and releases its size. Caller holds the mutex.
func (c *AdaptiveCache) removeLocked(key string) {
	if e, ok := c.entries[key]; ok {
		c.currentSize -= e.sizeBytes
		delete(c.entries, key)
	}
}

// makeRoom evicts entries until incoming bytes fit or nothing evictable
// remains. Tiers: expired entries, then large non-critical entries, then
// lowest-score non-critical entries. Caller holds the mutex.
func (c *AdaptiveCache) makeRoom(incoming int64) {
	now := time.Now()

	if n := c.evictExpiredLocked(now); n > 0 {
		c.publishEvicted(n, "expired")
	}
	if c.currentSize+incoming <= c.maxSize {
		return
	}

	// Large non-critical entries, in key order so the pass is deterministic.
	evicted := 0
	for _, key := range c.sortedKeys() {
		if c.currentSize+incoming <= c.maxSize {
			break
		}
		e := c.entries[key]
		if e.isLarge && !e.isCritical {
			c.removeLocked(key)
			evicted++
		}
	}
	if evicted > 0 {
		c.evictedSinceCleanup += int64(evicted)
		c.publishEvicted(evicted, "large")
	}
	if c.currentSize+incoming <= c.maxSize {
		return
	}

	// Score tier: repeatedly drop the lowest-scoring non-critical entry.
	evicted = 0
	for c.currentSize+incoming > c.maxSize {
		victim := c.lowestScoreLocked(now)
		if victim == "" {
			break
		}
		c.removeLocked(victim)
		evicted++
	}
	if evicted > 0 {
		c.evictedSinceCleanup += int64(evicted)
		c.publishEvicted(evicted, "score")
	}
}

// evictExpiredLocked removes all TTL-expired entries and returns the count.
// Caller holds the mutex.
func (c *AdaptiveCache) evictExpiredLocked(now time.Time) int {
	evicted := 0
	for key, e := range c.entries {
		if e.expired(now) {
			c.removeLocked(key)
			evicted++
		}
	}
	c.evictedSinceCleanup += int64(evicted)
	return evicted
}

// lowestScoreLocked returns the non-critical key with the lowest score,
// breaking ties by key order. Returns "" if only critical entries remain.
func (c *AdaptiveCache) lowestScoreLocked(now time.Time) string {
	var (
		victim string
		lowest float64
	)
	for _, key := range c.sortedKeys() {
		e := c.entries[key]
		if e.isCritical {
			continue
		}
		s := e.score(now)
		if victim == "" || s < lowest {
			victim = key
			lowest = s
		}
	}
	return victim
}

// sortedKeys returns the entry keys in ascending order. Caller holds the
// mutex.
func (c *AdaptiveCache) sortedKeys() []string {
	keys := make([]string, 0, len(c.entries))
	for key := range c.entries {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// publishEvicted emits a CacheEvictedEvent if a bus is attached.
func (c *AdaptiveCache) publishEvicted(count int, reason string) {
	if c.bus != nil {
		c.bus.Publish(event.NewCacheEvictedEvent(count, reason, c.currentSize))
	}
}

// StartCleanup launches the periodic cleanup goroutine. Calling it twice
// is a no-op.
func (c *AdaptiveCache) StartCleanup() {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return
	}
	c.started = true
	c.lastCleanupAt = time.Now()
	c.mu.Unlock()

	go c.cleanupLoop()
}

// StopCleanup stops the cleanup goroutine and waits for it to exit.
func (c *AdaptiveCache) StopCleanup() {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	close(c.stopCh)
	<-c.doneCh
}

// cleanupLoop sweeps expired entries on the adaptive interval.
func (c *AdaptiveCache) cleanupLoop() {
	defer close(c.doneCh)

	timer := time.NewTimer(c.CleanupInterval())
	defer timer.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-timer.C:
			c.runCleanup()
			timer.Reset(c.CleanupInterval())
		}
	}
}

// runCleanup performs one sweep and retunes the cleanup interval. Exposed
// to tests through RunCleanupNow.
func (c *AdaptiveCache) runCleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	evicted := c.evictExpiredLocked(now)
	if evicted > 0 {
		c.publishEvicted(evicted, "cleanup")
	}

	elapsed := now.Sub(c.lastCleanupAt).Seconds()
	if elapsed <= 0 {
		elapsed = 1
	}

	sizePressure := 0.0
	if c.maxSize > 0 {
		sizePressure = float64(c.currentSize) / float64(c.maxSize)
	}
	evictionRate := float64(c.evictedSinceCleanup) / elapsed

	previous := c.cleanupInterval
	switch {
	case sizePressure > 0.8 || evictionRate > 0.5:
		c.cleanupInterval = max(c.cleanupInterval/2, MinCleanupInterval)
	case sizePressure < 0.5 && evictionRate < 0.1:
		c.cleanupInterval = min(c.cleanupInterval*2, MaxCleanupInterval)
	}

	if c.cleanupInterval != previous {
		c.logger.Debug("cleanup interval changed",
			"interval", c.cleanupInterval.String(),
			"size_pressure", sizePressure,
			"eviction_rate", evictionRate)
		if c.bus != nil {
			c.bus.Publish(event.NewCacheIntervalChangedEvent(c.cleanupInterval, sizePressure, evictionRate))
		}
	}

	c.evictedSinceCleanup = 0
	c.lastCleanupAt = now
}

// RunCleanupNow forces a cleanup pass outside the periodic schedule.
func (c *AdaptiveCache) RunCleanupNow() {
	c.runCleanup()
}
