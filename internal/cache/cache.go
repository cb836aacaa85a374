// Package cache stores decode results on disk, one msgpack file per key.
package cache

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// Bump when the envelope or any cached payload changes shape.
const schemaVersion uint16 = 1

// ErrSchema is returned by Get for an entry written by another schema.
var ErrSchema = errors.New("cache entry has a different schema")

// Disk is safe for concurrent use. A nil *Disk is a cache that never hits.
type Disk struct {
	mu  sync.RWMutex
	dir string
}

type envelope struct {
	Schema  uint16             `msgpack:"schema"`
	Payload msgpack.RawMessage `msgpack:"payload"`
}

// Open returns a cache rooted at dir, creating it.
func Open(dir string) (*Disk, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &Disk{dir: dir}, nil
}

// OpenDefault opens $XDG_CACHE_HOME/<app> (or ~/.cache/<app>).
func OpenDefault(app string) (*Disk, error) {
	base := os.Getenv("XDG_CACHE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		base = filepath.Join(home, ".cache")
	}
	return Open(filepath.Join(base, app))
}

// Dir is the cache root.
func (c *Disk) Dir() string { return c.dir }

func (c *Disk) pathFor(key Digest) string {
	hexKey := key.String()
	return filepath.Join(c.dir, "results", hexKey[:2], hexKey+".mp")
}

// Put serializes v and atomically replaces the entry for key.
func (c *Disk) Put(key Digest, v any) (err error) {
	if c == nil {
		return nil
	}
	payload, err := msgpack.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	p := c.pathFor(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o750); err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(p), "tmp-*")
	if err != nil {
		return err
	}
	defer func() {
		if rmErr := os.Remove(f.Name()); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) && err == nil {
			err = rmErr
		}
	}()

	if err := msgpack.NewEncoder(f).Encode(envelope{Schema: schemaVersion, Payload: payload}); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(f.Name(), p)
}

// Get decodes the entry for key into out. A missing entry is (false, nil).
func (c *Disk) Get(key Digest, out any) (bool, error) {
	if c == nil {
		return false, nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	// #nosec G304 -- path is derived from a hex digest under the cache root
	f, err := os.Open(c.pathFor(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	defer f.Close()

	var env envelope
	if err := msgpack.NewDecoder(f).Decode(&env); err != nil {
		return false, fmt.Errorf("decode cache entry %s: %w", key, err)
	}
	if env.Schema != schemaVersion {
		return false, fmt.Errorf("%w: %d", ErrSchema, env.Schema)
	}
	if err := msgpack.Unmarshal(env.Payload, out); err != nil {
		return false, fmt.Errorf("decode cache payload %s: %w", key, err)
	}
	return true, nil
}

// DropAll removes every entry.
func (c *Disk) DropAll() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	old := c.dir + ".old-" + time.Now().Format("20060102150405")
	if err := os.Rename(c.dir, old); err != nil {
		return err
	}
	if err := os.MkdirAll(c.dir, 0o750); err != nil {
		return err
	}
	return os.RemoveAll(old)
}
