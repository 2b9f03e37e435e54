// Package cache is a small JSON disk cache with optional TTL.
//
// Each key is stored as its own file named by the SHA-256 of the key, holding
// a JSON envelope {expires_at, value}. Expired or corrupt entries are deleted
// on read and reported as absent. There is no atomicity across entries.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"

	"monobudget/pkg/clock"
)

// Cache is a file-per-key JSON blob store.
type Cache struct {
	root  string
	clock clock.Clock
}

// New creates a Cache rooted at dir, creating it if needed.
func New(dir string, clk clock.Clock) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	if clk == nil {
		clk = clock.NewReal()
	}
	return &Cache{root: dir, clock: clk}, nil
}

type envelope struct {
	ExpiresAt *int64          `json:"expires_at"`
	Value     json.RawMessage `json:"value"`
}

func (c *Cache) path(key string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(c.root, hex.EncodeToString(sum[:])+".json")
}

// Get unmarshals the cached value for key into out.
// Returns false when the entry is absent, expired, or unreadable.
func (c *Cache) Get(key string, out any) bool {
	path := c.path(key)
	raw, err := os.ReadFile(path)
	if err != nil {
		return false
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		_ = os.Remove(path)
		return false
	}
	if env.ExpiresAt != nil && c.clock.Now().Unix() >= *env.ExpiresAt {
		_ = os.Remove(path)
		return false
	}
	if err := json.Unmarshal(env.Value, out); err != nil {
		_ = os.Remove(path)
		return false
	}
	return true
}

// Set stores value under key. ttlSeconds <= 0 means no expiry.
func (c *Cache) Set(key string, value any, ttlSeconds int64) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	env := envelope{Value: raw}
	if ttlSeconds > 0 {
		exp := c.clock.Now().Unix() + ttlSeconds
		env.ExpiresAt = &exp
	}
	blob, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return os.WriteFile(c.path(key), blob, 0o600)
}

// Delete removes the entry for key if present.
func (c *Cache) Delete(key string) {
	_ = os.Remove(c.path(key))
}
