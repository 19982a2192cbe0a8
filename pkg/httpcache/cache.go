// Package httpcache is a persistent, size-bounded HTTP response cache:
// entries are keyed by a hash of method+URL, expire on TTL, and are
// evicted by least-recently-accessed order when the cache grows past
// its configured byte budget.
package httpcache

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/localcore/client/pkg/metrics"
	"github.com/localcore/client/pkg/store"
)

var bucketEntries = []byte("http_cache")

// Entry is a single cached HTTP response.
type Entry struct {
	CacheKey       string
	StatusCode     int
	HeadersJSON    string
	Body           string
	CachedAt       time.Time
	ExpiresAt      time.Time
	ETag           string
	LastModified   string
	BodySize       int64
	LastAccessedAt time.Time
}

// Stats summarizes the cache's contents and hit/miss counters since
// the Cache was opened.
type Stats struct {
	TotalEntries   int
	TotalSizeBytes int64
	HitCount       uint64
	MissCount      uint64
	HitRate        float64
}

// Config configures a new Cache.
type Config struct {
	DBPath       string
	MaxSizeBytes int64
}

// Cache is a mutex-guarded, store-backed HTTP response cache.
type Cache struct {
	mu           sync.Mutex
	db           *store.DB
	maxSizeBytes int64
	hitCount     uint64
	missCount    uint64
}

// New opens (or creates) the cache's backing store.
func New(cfg Config) (*Cache, error) {
	db, err := store.Open(cfg.DBPath, bucketEntries)
	if err != nil {
		return nil, fmt.Errorf("httpcache: open store: %w", err)
	}
	return &Cache{db: db, maxSizeBytes: cfg.MaxSizeBytes}, nil
}

// Close releases the cache's backing store.
func (c *Cache) Close() error {
	return c.db.Close()
}

// GenerateKey derives a deterministic cache key from method and url.
func GenerateKey(method, url string) string {
	h := sha256.New()
	h.Write([]byte(method))
	h.Write([]byte(":"))
	h.Write([]byte(url))
	return base64.URLEncoding.WithPadding(base64.NoPadding).EncodeToString(h.Sum(nil))
}

// Get returns the cached response for method+url, or ok=false if
// absent or expired. A hit refreshes the entry's LastAccessedAt for
// LRU eviction purposes.
func (c *Cache) Get(method, url string) (entry Entry, ok bool, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := GenerateKey(method, url)
	raw, err := c.db.Get(bucketEntries, []byte(key))
	if err != nil {
		return Entry{}, false, err
	}
	if raw == nil {
		c.missCount++
		metrics.CacheMissesTotal.Inc()
		return Entry{}, false, nil
	}

	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return Entry{}, false, err
	}
	if time.Now().After(e.ExpiresAt) {
		c.missCount++
		metrics.CacheMissesTotal.Inc()
		return Entry{}, false, nil
	}

	e.LastAccessedAt = time.Now()
	if err := c.write(e); err != nil {
		return Entry{}, false, err
	}
	c.hitCount++
	metrics.CacheHitsTotal.Inc()
	return e, true, nil
}

// Put stores a response under method+url with the given TTL, evicting
// existing entries first if necessary to stay within the configured
// byte budget.
func (c *Cache) Put(method, url string, statusCode int, headersJSON, body string, ttl time.Duration, etag, lastModified string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	bodySize := int64(len(body))

	if err := c.evictIfNeeded(bodySize); err != nil {
		return err
	}

	entry := Entry{
		CacheKey:       GenerateKey(method, url),
		StatusCode:     statusCode,
		HeadersJSON:    headersJSON,
		Body:           body,
		CachedAt:       now,
		ExpiresAt:      now.Add(ttl),
		ETag:           etag,
		LastModified:   lastModified,
		BodySize:       bodySize,
		LastAccessedAt: now,
	}
	return c.write(entry)
}

func (c *Cache) write(e Entry) error {
	raw, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return c.db.Put(bucketEntries, []byte(e.CacheKey), raw)
}

// Invalidate removes a specific entry, reporting whether it existed.
func (c *Cache) Invalidate(method, url string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := []byte(GenerateKey(method, url))
	existing, err := c.db.Get(bucketEntries, key)
	if err != nil || existing == nil {
		return false, err
	}
	return true, c.db.Delete(bucketEntries, key)
}

// CleanupExpired removes every expired entry, returning the count
// removed.
func (c *Cache) CleanupExpired() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cleanupExpiredLocked()
}

func (c *Cache) cleanupExpiredLocked() (int, error) {
	now := time.Now()
	var expired [][]byte
	err := c.db.ForEach(bucketEntries, func(k, v []byte) error {
		var e Entry
		if err := json.Unmarshal(v, &e); err != nil {
			return nil
		}
		if now.After(e.ExpiresAt) {
			expired = append(expired, append([]byte(nil), k...))
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	for _, k := range expired {
		if err := c.db.Delete(bucketEntries, k); err != nil {
			return 0, err
		}
	}
	return len(expired), nil
}

// evictIfNeeded clears expired entries, then — if still over budget —
// removes the 10 least-recently-accessed entries. Mirrors a fixed-size
// sweep rather than evicting exactly to budget, trading precision for
// a bounded amount of work per Put.
func (c *Cache) evictIfNeeded(newEntrySize int64) error {
	total, err := c.totalSizeLocked()
	if err != nil {
		return err
	}
	if total+newEntrySize <= c.maxSizeBytes {
		return nil
	}

	if _, err := c.cleanupExpiredLocked(); err != nil {
		return err
	}

	total, err = c.totalSizeLocked()
	if err != nil {
		return err
	}
	if total+newEntrySize <= c.maxSizeBytes {
		return nil
	}

	type keyed struct {
		key      []byte
		accessed time.Time
	}
	var all []keyed
	err = c.db.ForEach(bucketEntries, func(k, v []byte) error {
		var e Entry
		if err := json.Unmarshal(v, &e); err != nil {
			return nil
		}
		all = append(all, keyed{key: append([]byte(nil), k...), accessed: e.LastAccessedAt})
		return nil
	})
	if err != nil {
		return err
	}

	for i := 1; i < len(all); i++ {
		for j := i; j > 0 && all[j-1].accessed.After(all[j].accessed); j-- {
			all[j-1], all[j] = all[j], all[j-1]
		}
	}

	const evictBatch = 10
	for i := 0; i < len(all) && i < evictBatch; i++ {
		if err := c.db.Delete(bucketEntries, all[i].key); err != nil {
			return err
		}
		metrics.CacheEvictionsTotal.Inc()
	}
	return nil
}

func (c *Cache) totalSizeLocked() (int64, error) {
	var total int64
	err := c.db.ForEach(bucketEntries, func(_, v []byte) error {
		var e Entry
		if err := json.Unmarshal(v, &e); err != nil {
			return nil
		}
		total += e.BodySize
		return nil
	})
	return total, err
}

// Clear empties the cache entirely.
func (c *Cache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var keys [][]byte
	err := c.db.ForEach(bucketEntries, func(k, _ []byte) error {
		keys = append(keys, append([]byte(nil), k...))
		return nil
	})
	if err != nil {
		return err
	}
	for _, k := range keys {
		if err := c.db.Delete(bucketEntries, k); err != nil {
			return err
		}
	}
	return nil
}

// Stats reports aggregate cache counters.
func (c *Cache) Stats() (Stats, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var s Stats
	err := c.db.ForEach(bucketEntries, func(_, v []byte) error {
		var e Entry
		if err := json.Unmarshal(v, &e); err != nil {
			return nil
		}
		s.TotalEntries++
		s.TotalSizeBytes += e.BodySize
		return nil
	})
	if err != nil {
		return Stats{}, err
	}

	s.HitCount = c.hitCount
	s.MissCount = c.missCount
	total := s.HitCount + s.MissCount
	if total > 0 {
		s.HitRate = float64(s.HitCount) / float64(total)
	}
	return s, nil
}
