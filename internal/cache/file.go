// Package cache remembers predicted lodging prices between runs. Entries
// expire after a TTL; nothing here is a system of record.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const fileExt = ".price.json"

// fileRecord is the on-disk envelope. Key is stored so a record found under
// the wrong name is never served; Payload is whatever the caller handed Set.
type fileRecord struct {
	Key       string          `json:"key"`
	ExpiresAt time.Time       `json:"expiresAt"`
	Payload   json.RawMessage `json:"payload"`
}

func (r fileRecord) expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// FileCache keeps one price record per lookup under dir. Payloads must be
// valid JSON.
type FileCache struct {
	dir string
	ttl time.Duration
	mu  sync.RWMutex
	now func() time.Time
}

func NewFileCache(dir string, ttl time.Duration) (*FileCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &FileCache{dir: dir, ttl: ttl, now: time.Now}, nil
}

func (c *FileCache) Get(_ context.Context, key string) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	rec, err := c.read(c.path(key))
	if err != nil || rec.Key != key || rec.expired(c.now()) {
		return nil, false
	}
	return rec.Payload, true
}

// Set writes through a temp file so a concurrent reader in another process
// never sees a half-written record.
func (c *FileCache) Set(_ context.Context, key string, data []byte) error {
	if !json.Valid(data) {
		return errors.New("file cache: payload is not JSON")
	}
	raw, err := json.Marshal(fileRecord{
		Key:       key,
		ExpiresAt: c.now().Add(c.ttl).UTC(),
		Payload:   data,
	})
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	tmp, err := os.CreateTemp(c.dir, "tmp-*")
	if err != nil {
		return fmt.Errorf("file cache: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("file cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("file cache: %w", err)
	}
	return os.Rename(tmp.Name(), c.path(key))
}

// Prune deletes expired or unreadable price records and reports how many
// went. Files that are not price records are left alone.
func (c *FileCache) Prune() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return 0, err
	}
	now := c.now()
	removed := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), fileExt) {
			continue
		}
		p := filepath.Join(c.dir, e.Name())
		if rec, err := c.read(p); err == nil && !rec.expired(now) {
			continue
		}
		if err := os.Remove(p); err == nil {
			removed++
		}
	}
	return removed, nil
}

func (c *FileCache) String() string {
	return "file:" + c.dir
}

func (c *FileCache) read(path string) (fileRecord, error) {
	var rec fileRecord
	data, err := os.ReadFile(path)
	if err != nil {
		return rec, err
	}
	err = json.Unmarshal(data, &rec)
	return rec, err
}

func (c *FileCache) path(key string) string {
	h := sha256.Sum256([]byte(key))
	return filepath.Join(c.dir, hex.EncodeToString(h[:16])+fileExt)
}

// CacheKey joins parts into an opaque key. Parts are length-prefixed so
// ("ab","c") and ("a","bc") differ.
func CacheKey(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		fmt.Fprintf(h, "%d:%s|", len(p), p)
	}
	return hex.EncodeToString(h.Sum(nil))
}
