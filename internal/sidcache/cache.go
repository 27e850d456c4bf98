// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package sidcache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/hwkim3330/velocitydrivesp-support/pkg/yang"
)

// FileStat is the fingerprint of one input file the cache key is built
// from: its path plus the size and modification time that changed it.
type FileStat struct {
	Path    string `json:"path"`
	Size    int64  `json:"size"`
	ModUnix int64  `json:"mod_unix"`
}

// StatFiles builds the FileStat list for a set of paths, sorted by path
// so the same file set always hashes to the same key regardless of the
// order it was passed in.
func StatFiles(paths []string) ([]FileStat, error) {
	out := make([]FileStat, 0, len(paths))
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("sidcache: stat %s: %w", p, err)
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			abs = p
		}
		out = append(out, FileStat{Path: abs, Size: info.Size(), ModUnix: info.ModTime().Unix()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// Key is a stable hash over a sorted FileStat list: any change to which
// files are included, their size, or their modification time yields a
// different key, invalidating whatever the cache holds under the old one.
func Key(stats []FileStat) (string, error) {
	raw, err := json.Marshal(stats)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

// entry is the on-disk cache record: the key it was built for, plus the
// schema's serialized node arena.
type entry struct {
	Key   string       `json:"key"`
	Nodes []*yang.Node `json:"nodes"`
}

// Cache persists a built schema tree to a single JSON file on disk,
// keyed by the input file set's fingerprint.
type Cache struct {
	path string
}

// New returns a Cache backed by the file at path. The file is created on
// the first successful Store; a missing file is simply a cache miss.
func New(path string) *Cache {
	return &Cache{path: path}
}

// Load returns the cached schema if its stored key matches key, or
// (nil, false) on any miss: no cache file, unreadable, corrupt, or a
// stale key from a since-changed input set.
func (c *Cache) Load(key string) (*yang.Schema, bool) {
	raw, err := os.ReadFile(c.path)
	if err != nil {
		return nil, false
	}
	var e entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, false
	}
	if e.Key != key {
		return nil, false
	}
	return yang.FromNodes(e.Nodes), true
}

// Store writes s to disk under key, replacing whatever was cached before.
func (c *Cache) Store(key string, s *yang.Schema) error {
	e := entry{Key: key, Nodes: s.Nodes()}
	raw, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(c.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(c.path, raw, 0o644)
}
