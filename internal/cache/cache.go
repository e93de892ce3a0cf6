// Package cache stores lexing results on disk, keyed by file path and
// validated by a BLAKE3 hash of the file contents.
package cache

import (
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/zeebo/blake3"

	"github.com/panbanda/veil/pkg/lexer"
)

// formatVersion is mixed into every key. Bump it when lexer output changes.
const formatVersion = "lex/v2"

// Cache provides file-based caching for lexing results.
type Cache struct {
	dir     string
	ttl     time.Duration
	enabled bool
}

// Entry represents a cached result.
type Entry struct {
	Hash      string          `json:"hash"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// lexed is the cached part of a lexer.File. Src is never stored.
type lexed struct {
	Spans    []lexer.Span    `json:"spans"`
	Tokens   []lexer.Token   `json:"tokens"`
	Warnings []lexer.Warning `json:"warnings,omitempty"`
}

// New creates a new cache instance. A disabled cache never hits and never
// writes.
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

// Enabled reports whether the cache reads and writes entries.
func (c *Cache) Enabled() bool {
	return c != nil && c.enabled
}

// HashBytes computes a BLAKE3 hash of bytes and returns it as a hex string.
func HashBytes(data []byte) string {
	hash := blake3.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// Lex returns the lexed form of src, from the cache when an entry for path
// matches the content hash. The second result reports a cache hit.
func (c *Cache) Lex(path string, src []byte) (*lexer.File, bool) {
	hash := HashBytes(src)
	if data, ok := c.get(path, hash); ok {
		var l lexed
		if err := json.Unmarshal(data, &l); err == nil {
			return &lexer.File{Src: src, Spans: l.Spans, Tokens: l.Tokens, Warnings: l.Warnings}, true
		}
	}

	f := lexer.Lex(src)
	if c.Enabled() {
		// A failed write only costs a future miss.
		_ = c.set(path, hash, lexed{Spans: f.Spans, Tokens: f.Tokens, Warnings: f.Warnings})
	}
	return f, false
}

// get retrieves an entry if it exists, matches hash and is not expired.
func (c *Cache) get(key, hash string) ([]byte, bool) {
	if !c.Enabled() {
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

func (c *Cache) set(key, hash string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	entryData, err := json.Marshal(Entry{Hash: hash, Timestamp: time.Now(), Data: data})
	if err != nil {
		return err
	}
	return os.WriteFile(c.keyPath(key), entryData, 0600)
}

// Clear removes all cache entries.
func (c *Cache) Clear() error {
	if !c.Enabled() {
		return nil
	}
	return os.RemoveAll(c.dir)
}

// keyPath converts a key to a filesystem path.
func (c *Cache) keyPath(key string) string {
	// Use BLAKE3 hash of key for filename to avoid path issues
	hash := blake3.Sum256([]byte(formatVersion + "\x00" + key))
	return filepath.Join(c.dir, hex.EncodeToString(hash[:])+".json")
}

// Stats returns cache statistics.
type Stats struct {
	Entries   int           `json:"entries"`
	TotalSize int64         `json:"total_size"`
	OldestAge time.Duration `json:"oldest_age"`
	NewestAge time.Duration `json:"newest_age"`
}

// GetStats returns statistics about the cache.
func (c *Cache) GetStats() (*Stats, error) {
	if !c.Enabled() {
		return &Stats{}, nil
	}

	stats := &Stats{}
	var oldest, newest time.Time

	err := filepath.Walk(c.dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || filepath.Ext(path) != ".json" {
			return nil
		}

		stats.Entries++
		stats.TotalSize += info.Size()

		modTime := info.ModTime()
		if oldest.IsZero() || modTime.Before(oldest) {
			oldest = modTime
		}
		if newest.IsZero() || modTime.After(newest) {
			newest = modTime
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !oldest.IsZero() {
		stats.OldestAge = time.Since(oldest)
	}
	if !newest.IsZero() {
		stats.NewestAge = time.Since(newest)
	}
	return stats, nil
}
