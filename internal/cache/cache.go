// Package cache stores parsed function definitions on disk, keyed by file
// path and validated by a BLAKE3 hash of the file content.
package cache

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gaps-closure/vscle/pkg/config"
	"github.com/gaps-closure/vscle/pkg/parser"
	"github.com/zeebo/blake3"
)

// Cache is a file-backed store of parse results.
// It is safe for concurrent use.
type Cache struct {
	dir     string
	ttl     time.Duration
	enabled bool

	mu  sync.RWMutex
	mem map[string]Entry
}

// Entry is one cached file's function definitions.
type Entry struct {
	Hash      string                `json:"hash"`
	Timestamp time.Time             `json:"timestamp"`
	Functions []parser.FunctionNode `json:"functions"`
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
		mem:     make(map[string]Entry),
	}, nil
}

// FromConfig creates the cache described by cfg.Cache.
func FromConfig(cfg *config.Config) (*Cache, error) {
	return New(cfg.Cache.Dir, cfg.Cache.TTL, cfg.Cache.Enabled)
}

// HashBytes computes a BLAKE3 hash of bytes and returns it as a hex string.
func HashBytes(data []byte) string {
	hash := blake3.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// Lookup returns the cached definitions for path if they were stored for
// content with the same hash and have not expired.
func (c *Cache) Lookup(path, hash string) ([]parser.FunctionNode, bool) {
	if !c.enabled {
		return nil, false
	}

	c.mu.RLock()
	entry, ok := c.mem[path]
	c.mu.RUnlock()

	if !ok {
		data, err := os.ReadFile(c.keyPath(path))
		if err != nil {
			return nil, false
		}
		if err := json.Unmarshal(data, &entry); err != nil {
			return nil, false
		}
	}

	if entry.Hash != hash {
		return nil, false
	}
	if time.Since(entry.Timestamp) > c.ttl {
		_ = c.Invalidate(path)
		return nil, false
	}

	if !ok {
		c.mu.Lock()
		c.mem[path] = entry
		c.mu.Unlock()
	}
	return entry.Functions, true
}

// Store records the definitions parsed from content with the given hash.
func (c *Cache) Store(path, hash string, fns []parser.FunctionNode) error {
	if !c.enabled {
		return nil
	}

	entry := Entry{
		Hash:      hash,
		Timestamp: time.Now(),
		Functions: fns,
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.mem[path] = entry
	c.mu.Unlock()

	return os.WriteFile(c.keyPath(path), data, 0600)
}

// Functions returns the function definitions in content, parsing only on
// a cache miss.
func (c *Cache) Functions(path string, content []byte) ([]parser.FunctionNode, error) {
	hash := HashBytes(content)
	if fns, ok := c.Lookup(path, hash); ok {
		return fns, nil
	}

	psr := parser.New()
	defer psr.Close()

	result, err := psr.Parse(content, parser.DetectLanguage(path), path)
	if err != nil {
		return nil, err
	}
	fns := parser.GetFunctions(result)

	// A failed write only costs a re-parse next time.
	_ = c.Store(path, hash, fns)
	return fns, nil
}

// Invalidate removes a cache entry.
func (c *Cache) Invalidate(path string) error {
	if !c.enabled {
		return nil
	}
	c.mu.Lock()
	delete(c.mem, path)
	c.mu.Unlock()

	err := os.Remove(c.keyPath(path))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// Clear removes all cache entries.
func (c *Cache) Clear() error {
	if !c.enabled {
		return nil
	}
	c.mu.Lock()
	c.mem = make(map[string]Entry)
	c.mu.Unlock()
	return os.RemoveAll(c.dir)
}

// keyPath converts a key to a filesystem path.
func (c *Cache) keyPath(key string) string {
	// hashed so arbitrary paths are valid file names
	hash := blake3.Sum256([]byte(key))
	return filepath.Join(c.dir, hex.EncodeToString(hash[:])+".json")
}
