// Package lrccache remembers which LRC file was downloaded for a song.
package lrccache

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const (
	kvFormat = "%s => %s"
	kvSep    = " => "
)

// Cache is an append-only "key => value" list on disk.
type Cache struct {
	path    string
	mu      sync.Mutex
	entries map[string]string
}

// Open loads the cache at path. A missing file is an empty cache.
func Open(path string) (*Cache, error) {
	c := &Cache{path: path, entries: make(map[string]string)}

	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return c, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		kv := strings.SplitN(scanner.Text(), kvSep, 2)
		if len(kv) != 2 {
			continue
		}
		// 后写入的覆盖先写入的
		c.entries[kv[0]] = kv[1]
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read cache: %w", err)
	}
	return c, nil
}

// Key 由歌手和歌名生成缓存键
func Key(artist, title string) string {
	return strings.ToLower(strings.TrimSpace(artist)) + " - " + strings.ToLower(strings.TrimSpace(title))
}

func (c *Cache) Get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[key]
	return v, ok
}

// Add records value under key and appends it to the file.
func (c *Cache) Add(key, value string) error {
	if strings.Contains(key, "\n") || strings.Contains(value, "\n") {
		return fmt.Errorf("cache entries must be single-line")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.entries[key]; ok && old == value {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}
	f, err := os.OpenFile(c.path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open cache: %w", err)
	}
	defer f.Close()

	if _, err := fmt.Fprintf(f, kvFormat+"\n", key, value); err != nil {
		return fmt.Errorf("failed to write cache: %w", err)
	}
	c.entries[key] = value
	return nil
}
