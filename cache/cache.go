// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

// Package cache stores compilation results on disk, keyed by a digest of
// everything that determines them.
package cache

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/gogpu/glslopt/diag"
)

// schemaVersion changes whenever Entry or the key derivation changes, so
// stale files are ignored rather than misread.
const schemaVersion uint16 = 1

// Key identifies a compilation: source text, stage and settings.
type Key uint64

// String returns the key as 16 hex digits.
func (k Key) String() string {
	return fmt.Sprintf("%016x", uint64(k))
}

// NewKey digests a compilation's inputs. settings is a canonical
// description of every option that affects the output.
func NewKey(source string, stage uint8, settings string) Key {
	h := xxhash.New()
	var header [3]byte
	header[0] = byte(schemaVersion >> 8)
	header[1] = byte(schemaVersion)
	header[2] = stage
	_, _ = h.Write(header[:])
	_, _ = h.WriteString(settings)
	_, _ = h.Write([]byte{0})
	_, _ = h.WriteString(source)
	return Key(h.Sum64())
}

// Entry is a cached compilation result.
type Entry struct {
	Schema      uint16
	Compiled    bool
	Output      string
	RawOutput   string
	Diagnostics []diag.Diagnostic
}

// Cache is a directory of msgpack-encoded entries. It is safe for
// concurrent use.
type Cache struct {
	mu  sync.RWMutex
	dir string
}

// Open returns a cache rooted at dir, creating it if needed. An empty dir
// selects glslopt under the user cache directory.
func Open(dir string) (*Cache, error) {
	if dir == "" {
		base, err := os.UserCacheDir()
		if err != nil {
			return nil, fmt.Errorf("cache: %w", err)
		}
		dir = filepath.Join(base, "glslopt")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cache: %w", err)
	}
	return &Cache{dir: dir}, nil
}

// Dir returns the cache directory.
func (c *Cache) Dir() string {
	return c.dir
}

func (c *Cache) pathFor(key Key) string {
	return filepath.Join(c.dir, key.String()+".mp")
}

// Get returns the entry stored under key. A missing entry, or one written
// by an incompatible version, is reported as not found.
func (c *Cache) Get(key Key) (*Entry, bool, error) {
	if c == nil {
		return nil, false, nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	data, err := os.ReadFile(c.pathFor(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("cache: %w", err)
	}
	var e Entry
	if err := msgpack.Unmarshal(data, &e); err != nil {
		return nil, false, fmt.Errorf("cache: decode %s: %w", key, err)
	}
	if e.Schema != schemaVersion {
		return nil, false, nil
	}
	return &e, true, nil
}

// Put stores e under key. The file is replaced atomically.
func (c *Cache) Put(key Key, e *Entry) (err error) {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	stored := *e
	stored.Schema = schemaVersion
	data, err := msgpack.Marshal(&stored)
	if err != nil {
		return fmt.Errorf("cache: encode %s: %w", key, err)
	}
	f, err := os.CreateTemp(c.dir, "tmp-*")
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(f.Name())
		}
	}()
	if _, err = f.Write(data); err != nil {
		_ = f.Close()
		return fmt.Errorf("cache: %w", err)
	}
	if err = f.Close(); err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	if err = os.Rename(f.Name(), c.pathFor(key)); err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	return nil
}

// Clear removes every entry.
func (c *Cache) Clear() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	matches, err := filepath.Glob(filepath.Join(c.dir, "*.mp"))
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	for _, m := range matches {
		if err := os.Remove(m); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("cache: %w", err)
		}
	}
	return nil
}
