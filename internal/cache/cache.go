// Package cache stores finished metrics tables on disk, keyed by project and
// validated against a hash of everything that produced them.
package cache

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/panbanda/refmine/pkg/models"
	"github.com/zeebo/blake3"
)

// Cache provides file-based caching for metrics tables.
type Cache struct {
	dir     string
	ttl     time.Duration
	enabled bool
}

// Entry represents a cached table.
type Entry struct {
	Hash      string    `json:"hash"`
	Timestamp time.Time `json:"timestamp"`
	Data      []byte    `json:"data"`
}

// New creates a new cache instance. A disabled cache misses every lookup and
// drops every write.
func New(dir string, ttlHours int, enabled bool) (*Cache, error) {
	if !enabled {
		return &Cache{enabled: false}, nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	return &Cache{
		dir:     dir,
		ttl:     time.Duration(ttlHours) * time.Hour,
		enabled: true,
	}, nil
}

// Enabled reports whether lookups can hit.
func (c *Cache) Enabled() bool {
	return c.enabled
}

// InputHash identifies a metrics run: the repository HEAD, the ordered
// target hashes and a settings string that changes whenever metric
// semantics do.
func InputHash(head string, targets []string, settings string) string {
	h := blake3.New()
	fmt.Fprintf(h, "head=%s\nsettings=%s\n", head, settings)
	for _, t := range targets {
		fmt.Fprintf(h, "target=%s\n", t)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// HashBytes computes a BLAKE3 hash of bytes and returns it as a hex string.
func HashBytes(data []byte) string {
	hash := blake3.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// GetWithHash retrieves a cached entry only if the hash matches and the
// entry has not expired.
func (c *Cache) GetWithHash(key, hash string) ([]byte, bool) {
	if !c.enabled {
		return nil, false
	}

	path := c.keyPath(key)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, false
	}

	if entry.Hash != hash {
		return nil, false
	}

	if c.ttl > 0 && time.Since(entry.Timestamp) > c.ttl {
		os.Remove(path)
		return nil, false
	}

	return entry.Data, true
}

// SetWithHash stores data in the cache with a hash for validation.
func (c *Cache) SetWithHash(key, hash string, data []byte) error {
	if !c.enabled {
		return nil
	}

	entryData, err := json.Marshal(Entry{
		Hash:      hash,
		Timestamp: time.Now(),
		Data:      data,
	})
	if err != nil {
		return err
	}

	return os.WriteFile(c.keyPath(key), entryData, 0600)
}

// GetTable returns the cached table for project when it was produced from
// the same inputs.
func (c *Cache) GetTable(project, inputHash string) (*models.MetricsTable, bool) {
	data, ok := c.GetWithHash(project, inputHash)
	if !ok {
		return nil, false
	}
	var table models.MetricsTable
	if err := json.Unmarshal(data, &table); err != nil {
		return nil, false
	}
	return &table, true
}

// PutTable caches table under project.
func (c *Cache) PutTable(project, inputHash string, table *models.MetricsTable) error {
	if !c.enabled {
		return nil
	}
	data, err := json.Marshal(table)
	if err != nil {
		return err
	}
	return c.SetWithHash(project, inputHash, data)
}

// Invalidate removes a cache entry.
func (c *Cache) Invalidate(key string) error {
	if !c.enabled {
		return nil
	}
	return os.Remove(c.keyPath(key))
}

// Clear removes all cache entries.
func (c *Cache) Clear() error {
	if !c.enabled {
		return nil
	}
	return os.RemoveAll(c.dir)
}

// keyPath converts a key to a filesystem path.
func (c *Cache) keyPath(key string) string {
	return filepath.Join(c.dir, HashBytes([]byte(key))+".json")
}
