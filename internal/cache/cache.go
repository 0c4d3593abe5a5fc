// Package cache provides a disk-backed key/value store with a soft byte-size
// ceiling. Values are serialized to JSON and stored one file per key, so the
// cache survives process restarts and can be shared between the history and
// encoding layers.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// entryExt is the extension used for cache entry files.
const entryExt = ".json"

// entry is the on-disk record format: the original key is kept alongside the
// value because the filename is a one-way hash.
type entry struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}

// Cache is a persistent key/value store with least-recently-touched eviction.
// The size limit is soft: a single oversized value is still stored (the cache
// never evicts down to zero entries to satisfy an insert).
//
// Cache is designed for single-process use. Concurrent writers against the
// same directory are not serialized and may corrupt size accounting.
type Cache struct {
	dir         string
	sizeLimit   int64 // 0 means unlimited
	currentSize int64
	logger      *zap.Logger
}

// New creates a Cache rooted at dir, creating the directory if needed.
// sizeLimit is the soft ceiling in bytes; 0 disables eviction.
func New(dir string, sizeLimit int64, logger *zap.Logger) (*Cache, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create cache directory %s: %w", dir, err)
	}

	c := &Cache{
		dir:       dir,
		sizeLimit: sizeLimit,
		logger:    logger,
	}
	if err := c.recomputeSize(); err != nil {
		return nil, err
	}
	c.logger.Debug("cache initialized",
		zap.String("dir", dir),
		zap.Int64("size_limit", sizeLimit),
		zap.Int64("current_size", c.currentSize),
	)
	return c, nil
}

// filePath maps a logical key to its storage location. The hash is one-way;
// collisions are not defended against.
func (c *Cache) filePath(key string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(c.dir, hex.EncodeToString(sum[:])+entryExt)
}

// recomputeSize rescans the directory and resets the size accounting.
func (c *Cache) recomputeSize() error {
	var total int64
	paths, err := c.entryPaths()
	if err != nil {
		return err
	}
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			continue
		}
		total += info.Size()
	}
	c.currentSize = total
	return nil
}

// entryPaths lists all entry files currently in the cache directory.
func (c *Cache) entryPaths() ([]string, error) {
	pattern := filepath.Join(c.dir, "*"+entryExt)
	paths, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("scan cache directory %s: %w", c.dir, err)
	}
	return paths, nil
}

// Set stores value under key, serialized as JSON. If the post-insert total
// would exceed the size limit, the oldest entries (by modification time) are
// evicted first, but at least one entry always remains.
func (c *Cache) Set(key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("serialize value for key %q: %w", key, err)
	}
	content, err := json.Marshal(entry{Key: key, Value: raw})
	if err != nil {
		return fmt.Errorf("serialize entry for key %q: %w", key, err)
	}

	path := c.filePath(key)
	contentSize := int64(len(content))

	if c.sizeLimit > 0 {
		if info, err := os.Stat(path); err == nil {
			// Overwriting: only the size delta matters.
			if diff := contentSize - info.Size(); diff > 0 {
				if err := c.evictUntilFits(diff, path); err != nil {
					return err
				}
			}
		} else {
			if err := c.evictUntilFits(contentSize, path); err != nil {
				return err
			}
		}
	}

	if info, err := os.Stat(path); err == nil {
		c.currentSize -= info.Size()
	}

	if err := os.WriteFile(path, content, 0644); err != nil {
		return fmt.Errorf("write cache entry for key %q: %w", key, err)
	}
	c.currentSize += contentSize

	now := time.Now()
	_ = os.Chtimes(path, now, now)

	c.logger.Debug("cache set",
		zap.String("key", key),
		zap.Int64("entry_size", contentSize),
		zap.Int64("current_size", c.currentSize),
	)
	return nil
}

// evictUntilFits removes oldest-mtime entries until incoming bytes fit under
// the limit or only one entry (besides the incoming one) remains.
func (c *Cache) evictUntilFits(incoming int64, exclude string) error {
	for c.currentSize+incoming > c.sizeLimit && c.Len() > 1 {
		if !c.evictOldest(exclude) {
			break
		}
	}
	return nil
}

// evictOldest removes the entry with the oldest modification time, skipping
// exclude. Reports whether an entry was removed.
func (c *Cache) evictOldest(exclude string) bool {
	paths, err := c.entryPaths()
	if err != nil {
		return false
	}

	var victim string
	var victimTime time.Time
	var victimSize int64
	for _, p := range paths {
		if p == exclude {
			continue
		}
		info, err := os.Stat(p)
		if err != nil {
			continue
		}
		if victim == "" || info.ModTime().Before(victimTime) {
			victim = p
			victimTime = info.ModTime()
			victimSize = info.Size()
		}
	}
	if victim == "" {
		return false
	}

	if err := os.Remove(victim); err != nil {
		c.logger.Warn("cache eviction failed", zap.String("path", victim), zap.Error(err))
		return false
	}
	c.currentSize -= victimSize
	c.logger.Debug("cache evicted entry",
		zap.String("path", victim),
		zap.Int64("freed", victimSize),
		zap.Int64("current_size", c.currentSize),
	)
	return true
}

// Get loads the value stored under key into out (a pointer), refreshing the
// entry's access time. It reports whether the key was present.
func (c *Cache) Get(key string, out any) (bool, error) {
	path := c.filePath(key)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("read cache entry for key %q: %w", key, err)
	}

	var e entry
	if err := json.Unmarshal(data, &e); err != nil {
		return false, fmt.Errorf("decode cache entry for key %q: %w", key, err)
	}
	if err := json.Unmarshal(e.Value, out); err != nil {
		return false, fmt.Errorf("decode cached value for key %q: %w", key, err)
	}

	now := time.Now()
	_ = os.Chtimes(path, now, now)
	return true, nil
}

// GetString is a convenience wrapper for string-valued entries.
func (c *Cache) GetString(key string) (string, bool, error) {
	var s string
	ok, err := c.Get(key, &s)
	return s, ok, err
}

// Delete removes the entry for key if present. Absent keys are not an error.
func (c *Cache) Delete(key string) error {
	path := c.filePath(key)
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("stat cache entry for key %q: %w", key, err)
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("delete cache entry for key %q: %w", key, err)
	}
	c.currentSize -= info.Size()
	c.logger.Debug("cache deleted entry",
		zap.String("key", key),
		zap.Int64("current_size", c.currentSize),
	)
	return nil
}

// Clear removes every entry and resets size tracking.
func (c *Cache) Clear() error {
	paths, err := c.entryPaths()
	if err != nil {
		return err
	}
	for _, p := range paths {
		if err := os.Remove(p); err != nil {
			return fmt.Errorf("clear cache entry %s: %w", p, err)
		}
	}
	c.currentSize = 0
	c.logger.Debug("cache cleared")
	return nil
}

// Contains reports whether key has an entry. No side effects.
func (c *Cache) Contains(key string) bool {
	_, err := os.Stat(c.filePath(key))
	return err == nil
}

// Len returns the number of entries currently stored.
func (c *Cache) Len() int {
	paths, err := c.entryPaths()
	if err != nil {
		return 0
	}
	return len(paths)
}

// Size returns the tracked total size in bytes of all stored entries.
func (c *Cache) Size() int64 {
	return c.currentSize
}

// Keys returns the logical keys of all stored entries, in no particular order.
func (c *Cache) Keys() ([]string, error) {
	paths, err := c.entryPaths()
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			continue
		}
		var e entry
		if err := json.Unmarshal(data, &e); err != nil {
			continue
		}
		keys = append(keys, e.Key)
	}
	return keys, nil
}
