package fm

import (
	"io/fs"
	"slices"
	"sync"
)

// Memory is an in-memory [FileManager]. Its data directory is "/", so
// relative paths resolve to absolute ones.
//
// Memory is safe for concurrent use.
type Memory struct {
	mu    sync.RWMutex
	files tree
}

// NewMemory creates a Memory seeded with files. Keys may be absolute or
// relative; the seed map is copied.
func NewMemory(files map[string][]byte) *Memory {
	m := &Memory{files: make(tree, len(files))}
	for p, data := range files {
		m.files[m.resolve(p)] = slices.Clone(data)
	}
	return m
}

// ReadFile returns the contents of the file at path.
func (m *Memory) ReadFile(path string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.files.read(m.resolve(path))
}

// WriteFile stores a copy of data at path.
func (m *Memory) WriteFile(path string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[m.resolve(path)] = slices.Clone(data)
	return nil
}

// MoveFile renames a single file.
func (m *Memory) MoveFile(from, to string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	src := m.resolve(from)
	data, ok := m.files[src]
	if !ok {
		return &fs.PathError{Op: "rename", Path: src, Err: fs.ErrNotExist}
	}
	delete(m.files, src)
	m.files[m.resolve(to)] = data
	return nil
}

// Exists reports whether path is a stored file or a directory containing one.
func (m *Memory) Exists(path string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.files.exists(m.resolve(path))
}

// ReadDir lists the direct children of a directory.
func (m *Memory) ReadDir(path string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.files.readDir(m.resolve(path))
}

func (m *Memory) resolve(p string) string {
	return resolveSlash("/", p)
}

var _ FileManager = (*Memory)(nil)
