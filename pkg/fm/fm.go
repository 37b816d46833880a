// Package fm provides the file managers dependency resolution and compilation
// read sources through.
//
// # Overview
//
// A [FileManager] is a small capability surface over a hierarchical store of
// file contents keyed by path. Resolution, archive extraction and the
// compiler's source callback all go through it, so the same code runs over:
//
//   - [Memory]: a map, used by tests
//   - [Disk]: the real filesystem, rooted at a data directory (the cache root)
//   - [Archive]: a read-only view over a fetched zip or tar.gz archive
//
// # Paths
//
// Absolute paths are used as given. Relative paths resolve under the
// manager's data directory, which for [Disk] is the directory passed to
// [NewDisk] and for [Memory] is "/". Paths use forward slashes.
//
// # Materializing archives
//
// [Materialize] copies an [Archive]'s tree into another manager, which is how
// remotely fetched packages become ordinary on-disk packages:
//
//	a, err := fm.NewArchiveFromZip(data)
//	if err != nil {
//	    return err
//	}
//	n, err := fm.Materialize(disk, a, "", "libs/github.com_noir-lang_ec_v0.1.0")
package fm

import (
	"errors"
	"io/fs"
	"path"
	"slices"
	"strings"
)

// ErrReadOnly is returned by write operations on read-only managers such as [Archive].
var ErrReadOnly = errors.New("file manager is read-only")

// FileManager reads and writes file contents by path.
//
// Implementations report missing files with errors that satisfy
// errors.Is(err, fs.ErrNotExist).
type FileManager interface {
	// ReadFile returns the contents of the file at path.
	ReadFile(path string) ([]byte, error)

	// WriteFile stores data at path, creating parent directories as needed.
	// An existing file is replaced.
	WriteFile(path string, data []byte) error

	// MoveFile renames from to to, creating to's parent directories.
	MoveFile(from, to string) error

	// Exists reports whether path names an existing file or directory.
	Exists(path string) bool

	// ReadDir returns the sorted names of the direct children of the directory at path.
	ReadDir(path string) ([]string, error)
}

// tree is a flat map of cleaned slash paths to contents. Directories are
// implicit: a directory exists when some file lives below it.
type tree map[string][]byte

func (t tree) read(p string) ([]byte, error) {
	data, ok := t[p]
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: p, Err: fs.ErrNotExist}
	}
	return slices.Clone(data), nil
}

func (t tree) exists(p string) bool {
	if _, ok := t[p]; ok {
		return true
	}
	prefix := dirPrefix(p)
	for name := range t {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

func (t tree) readDir(p string) ([]string, error) {
	if _, ok := t[p]; ok {
		return nil, &fs.PathError{Op: "readdir", Path: p, Err: errors.New("not a directory")}
	}
	prefix := dirPrefix(p)
	seen := make(map[string]bool)
	var names []string
	for name := range t {
		rest, ok := strings.CutPrefix(name, prefix)
		if !ok {
			continue
		}
		child, _, _ := strings.Cut(rest, "/")
		if !seen[child] {
			seen[child] = true
			names = append(names, child)
		}
	}
	if len(names) == 0 {
		return nil, &fs.PathError{Op: "readdir", Path: p, Err: fs.ErrNotExist}
	}
	slices.Sort(names)
	return names, nil
}

// files returns the paths in t that live at or below dir, sorted.
func (t tree) files(dir string) []string {
	prefix := dirPrefix(dir)
	var out []string
	for name := range t {
		if dir == "" || dir == "." || name == dir || strings.HasPrefix(name, prefix) {
			out = append(out, name)
		}
	}
	slices.Sort(out)
	return out
}

// dirPrefix returns p with a trailing slash, so that prefix matching does not
// confuse "lib" with "lib2". The root directory has the prefix "/".
func dirPrefix(p string) string {
	if p == "" || p == "." {
		return ""
	}
	if strings.HasSuffix(p, "/") {
		return p
	}
	return p + "/"
}

// resolveSlash joins relative paths onto dir and cleans the result.
func resolveSlash(dir, p string) string {
	if path.IsAbs(p) {
		return path.Clean(p)
	}
	return path.Join(dir, p)
}
