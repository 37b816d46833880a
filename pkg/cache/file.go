package cache

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	blobSuffix   = ".bin"
	expirySuffix = ".exp"
)

// FileCache stores each entry as a raw file below a directory, so archives
// are written once and never re-encoded. Entries with a TTL carry a sibling
// ".exp" file holding the expiry in Unix nanoseconds.
//
// Writes go through a uniquely named temporary file and a rename, so
// processes sharing the directory never observe a partial entry.
type FileCache struct {
	dir string
}

// NewFileCache creates a file cache in dir, creating it if needed.
func NewFileCache(dir string) (*FileCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &FileCache{dir: dir}, nil
}

// Dir returns the cache directory.
func (c *FileCache) Dir() string { return c.dir }

// Get returns the entry stored under key. Expired entries, and entries whose
// expiry file is unreadable, are removed and reported as misses.
func (c *FileCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	p := c.path(key)

	expired, err := readExpiry(p + expirySuffix)
	if err != nil {
		return nil, false, err
	}
	if expired {
		c.remove(p)
		return nil, false, nil
	}

	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// Set stores data under key. A ttl of 0 stores it without expiry.
func (c *FileCache) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	p := c.path(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	if err := writeAtomic(p, data); err != nil {
		return err
	}
	if ttl <= 0 {
		if err := os.Remove(p + expirySuffix); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		return nil
	}
	exp := strconv.FormatInt(time.Now().Add(ttl).UnixNano(), 10)
	return writeAtomic(p+expirySuffix, []byte(exp))
}

// Delete removes key. Deleting a missing key is not an error.
func (c *FileCache) Delete(ctx context.Context, key string) error {
	p := c.path(key)
	for _, f := range []string{p, p + expirySuffix} {
		if err := os.Remove(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}

// Close is a no-op.
func (c *FileCache) Close() error { return nil }

func (c *FileCache) remove(p string) {
	_ = os.Remove(p)
	_ = os.Remove(p + expirySuffix)
}

// path spreads entries over 256 subdirectories by the first byte of the
// key hash.
func (c *FileCache) path(key string) string {
	h := Hash([]byte(key))
	return filepath.Join(c.dir, h[:2], h[2:]+blobSuffix)
}

// readExpiry reports whether the expiry file at p lies in the past. A
// missing file never expires; an unparsable one counts as expired.
func readExpiry(p string) (bool, error) {
	raw, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	ns, err := strconv.ParseInt(strings.TrimSpace(string(raw)), 10, 64)
	if err != nil {
		return true, nil
	}
	return time.Now().UnixNano() > ns, nil
}

func writeAtomic(p string, data []byte) error {
	tmp := p + "." + uuid.NewString() + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, p); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

var _ Cache = (*FileCache)(nil)
