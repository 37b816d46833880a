package fm

import (
	"os"
	"path/filepath"
	"slices"

	"github.com/google/uuid"
)

// Disk is a [FileManager] over the real filesystem. Relative paths resolve
// under its data directory.
//
// Writes go to a uniquely named temporary file next to the target and are
// renamed into place, so several processes writing the same content to the
// same cache path never leave a torn file behind: the last rename wins.
type Disk struct {
	dir string
}

// NewDisk creates a Disk rooted at dir, creating the directory if needed.
func NewDisk(dir string) (*Disk, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	return &Disk{dir: abs}, nil
}

// Dir returns the absolute data directory.
func (d *Disk) Dir() string { return d.dir }

// ReadFile returns the contents of the file at path.
func (d *Disk) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(d.resolve(path))
}

// WriteFile atomically replaces the file at path with data.
func (d *Disk) WriteFile(path string, data []byte) error {
	target := d.resolve(path)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}

	tmp := filepath.Join(filepath.Dir(target), "."+filepath.Base(target)+"."+uuid.NewString()+".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, target); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

// MoveFile renames from to to.
func (d *Disk) MoveFile(from, to string) error {
	dst := d.resolve(to)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	return os.Rename(d.resolve(from), dst)
}

// Exists reports whether path exists on disk.
func (d *Disk) Exists(path string) bool {
	_, err := os.Stat(d.resolve(path))
	return err == nil
}

// ReadDir lists the direct children of a directory, sorted by name.
func (d *Disk) ReadDir(path string) ([]string, error) {
	entries, err := os.ReadDir(d.resolve(path))
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	slices.Sort(names)
	return names, nil
}

func (d *Disk) resolve(p string) string {
	p = filepath.FromSlash(p)
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(d.dir, p)
}

var _ FileManager = (*Disk)(nil)
