package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// layoutVersion names the directory holding the current entry format
const layoutVersion = "v1"

// DiskCache persists entries as JSON files under
// <dir>/v1/<namespace>/<digest[:2]>/<digest>.json
type DiskCache struct {
	dir string
	ttl time.Duration
	now func() time.Time
}

// NewDiskCache creates a disk cache. A zero ttl keeps entries forever.
func NewDiskCache(dir string, ttl time.Duration) *DiskCache {
	return &DiskCache{dir: dir, ttl: ttl, now: time.Now}
}

type diskEntry struct {
	Namespace string    `json:"namespace"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
	Data      []byte    `json:"data"`
}

func (e diskEntry) expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && now.After(e.ExpiresAt)
}

func (c *DiskCache) Get(key string) ([]byte, bool) {
	path := c.path(key)

	entry, err := readEntry(path)
	if err != nil {
		return nil, false
	}
	if entry.expired(c.now()) {
		_ = os.Remove(path)
		return nil, false
	}
	return entry.Data, true
}

// Set stores value. A zero ttl uses the cache default.
func (c *DiskCache) Set(key string, value []byte, ttl time.Duration) error {
	if ttl == 0 {
		ttl = c.ttl
	}

	namespace, _ := splitKey(key)
	now := c.now()
	entry := diskEntry{Namespace: namespace, CreatedAt: now.UTC(), Data: value}
	if ttl > 0 {
		entry.ExpiresAt = now.Add(ttl).UTC()
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}

	path := c.path(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	// Workers may write the same key at once; rename keeps each file whole
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create cache file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close cache file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("write cache file: %w", err)
	}
	return nil
}

func (c *DiskCache) Delete(key string) error {
	err := os.Remove(c.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// Clear removes every entry of the current layout
func (c *DiskCache) Clear() error {
	return os.RemoveAll(c.root())
}

// NamespaceUsage is the disk footprint of one namespace
type NamespaceUsage struct {
	Namespace string
	Entries   int
	Expired   int
	Bytes     int64
}

// Usage reports the entries on disk per namespace, sorted by name. Unreadable
// files count as expired.
func (c *DiskCache) Usage() ([]NamespaceUsage, error) {
	byNamespace := map[string]*NamespaceUsage{}
	now := c.now()

	err := c.walk(func(namespace, path string, info fs.FileInfo) error {
		u, ok := byNamespace[namespace]
		if !ok {
			u = &NamespaceUsage{Namespace: namespace}
			byNamespace[namespace] = u
		}
		u.Entries++
		u.Bytes += info.Size()
		if entry, err := readEntry(path); err != nil || entry.expired(now) {
			u.Expired++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	usage := make([]NamespaceUsage, 0, len(byNamespace))
	for _, u := range byNamespace {
		usage = append(usage, *u)
	}
	sort.Slice(usage, func(i, j int) bool { return usage[i].Namespace < usage[j].Namespace })
	return usage, nil
}

// Prune removes expired and unreadable entries and returns how many it removed
func (c *DiskCache) Prune() (int, error) {
	removed := 0
	now := c.now()

	err := c.walk(func(_ string, path string, _ fs.FileInfo) error {
		if entry, err := readEntry(path); err == nil && !entry.expired(now) {
			return nil
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		removed++
		return nil
	})
	return removed, err
}

// walk visits every entry file. A missing cache directory has no entries.
func (c *DiskCache) walk(fn func(namespace, path string, info fs.FileInfo) error) error {
	root := c.root()
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".json") {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		namespace, _, _ := strings.Cut(filepath.ToSlash(rel), "/")
		info, err := d.Info()
		if err != nil {
			return err
		}
		return fn(namespace, path, info)
	})
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func (c *DiskCache) root() string {
	return filepath.Join(c.dir, layoutVersion)
}

func (c *DiskCache) path(key string) string {
	namespace, digest := splitKey(key)
	shard := digest
	if len(shard) > 2 {
		shard = shard[:2]
	}
	return filepath.Join(c.root(), namespace, shard, digest+".json")
}

func readEntry(path string) (diskEntry, error) {
	var entry diskEntry
	data, err := os.ReadFile(path)
	if err != nil {
		return entry, err
	}
	if err := json.Unmarshal(data, &entry); err != nil {
		return entry, err
	}
	return entry, nil
}
