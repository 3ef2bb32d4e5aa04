package metadata

import (
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/picccassso/Ariami-sub001/internal/domain"
)

// cacheSchemaVersion pins the on-disk format. Bump when the entry layout
// changes incompatibly.
const cacheSchemaVersion = 1

// CacheEntry pairs the file fingerprint with the metadata captured at
// extraction time. Metadata stays a raw document so fields written by newer
// versions survive a load/save round trip untouched.
type CacheEntry struct {
	MtimeMs   int64           `json:"mtimeMs"`
	SizeBytes int64           `json:"sizeBytes"`
	Metadata  json.RawMessage `json:"metadata"`
}

type cacheDocument struct {
	Version int                   `json:"version"`
	Entries map[string]CacheEntry `json:"entries"`
}

// Cache is the persistent path -> (mtime, size, metadata) mapping, serialized
// as a single JSON document. An entry is fresh iff its recorded mtime and
// size equal the file's current stat.
type Cache struct {
	mu      sync.Mutex
	path    string
	entries map[string]CacheEntry
	logger  *slog.Logger
}

// LoadCache reads the cache file at path. A missing file yields an empty
// cache; a corrupt one is reset to empty with a single log line.
func LoadCache(path string, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Cache{
		path:    path,
		entries: make(map[string]CacheEntry),
		logger:  logger,
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logger.Warn("metadata cache unreadable, starting empty",
				slog.String("path", path),
				slog.String("error", err.Error()),
			)
		}
		return c
	}

	var doc cacheDocument
	if err := json.Unmarshal(data, &doc); err != nil || doc.Entries == nil {
		logger.Warn("metadata cache corrupt, starting empty",
			slog.String("path", path),
			slog.String("error", domain.ErrCacheCorrupt.Error()),
		)
		return c
	}
	c.entries = doc.Entries
	return c
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Lookup returns the cached metadata for path when the entry is fresh for
// the given fingerprint.
func (c *Cache) Lookup(path string, mtimeMs, sizeBytes int64) (domain.SongMetadata, bool) {
	c.mu.Lock()
	entry, ok := c.entries[path]
	c.mu.Unlock()
	if !ok || entry.MtimeMs != mtimeMs || entry.SizeBytes != sizeBytes {
		return domain.SongMetadata{}, false
	}

	var song domain.SongMetadata
	if err := json.Unmarshal(entry.Metadata, &song); err != nil {
		return domain.SongMetadata{}, false
	}
	return song, true
}

// Update records freshly extracted metadata for path.
func (c *Cache) Update(path string, mtimeMs, sizeBytes int64, song domain.SongMetadata) error {
	raw, err := json.Marshal(song)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.entries[path] = CacheEntry{MtimeMs: mtimeMs, SizeBytes: sizeBytes, Metadata: raw}
	c.mu.Unlock()
	return nil
}

// UpdateDuration rewrites only the duration field of the cached metadata,
// preserving every other field (known or unknown) verbatim. It reports
// whether an entry for path existed.
func (c *Cache) UpdateDuration(path string, seconds int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[path]
	if !ok {
		return false
	}
	var loose map[string]json.RawMessage
	if err := json.Unmarshal(entry.Metadata, &loose); err != nil {
		return false
	}
	dur, err := json.Marshal(seconds)
	if err != nil {
		return false
	}
	loose["duration"] = dur
	raw, err := json.Marshal(loose)
	if err != nil {
		return false
	}
	entry.Metadata = raw
	c.entries[path] = entry
	return true
}

// Remove drops the entry for path, if any.
func (c *Cache) Remove(path string) {
	c.mu.Lock()
	delete(c.entries, path)
	c.mu.Unlock()
}

// Clear drops every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]CacheEntry)
	c.mu.Unlock()
}

// ReplaceAll swaps the full entry set, used when a scan produces the merged
// cache for the surviving file set.
func (c *Cache) ReplaceAll(entries map[string]CacheEntry) {
	c.mu.Lock()
	c.entries = entries
	c.mu.Unlock()
}

// Snapshot returns a copy of the current entries.
func (c *Cache) Snapshot() map[string]CacheEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]CacheEntry, len(c.entries))
	for k, v := range c.entries {
		out[k] = v
	}
	return out
}

// Save writes the cache atomically: marshal to a temp file in the same
// directory, then rename over the target.
func (c *Cache) Save() error {
	c.mu.Lock()
	doc := cacheDocument{Version: cacheSchemaVersion, Entries: c.entries}
	data, err := json.Marshal(doc)
	c.mu.Unlock()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return err
	}
	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, c.path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}
