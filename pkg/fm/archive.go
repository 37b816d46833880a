package fm

import (
	"archive/tar"
	"bytes"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"

	apperr "github.com/matzehuels/noirforge/pkg/errors"
)

// maxEntrySize bounds a single decompressed archive entry.
const maxEntrySize = 64 << 20

// Archive is a read-only [FileManager] over the contents of a source archive.
//
// Hosted tag archives wrap everything in a single top-level directory
// ("repo-v1.0.0/"); that segment is stripped from every entry, so the
// archive's root is the repository root. Paths are relative to that root;
// a leading slash is ignored.
type Archive struct {
	files tree
}

// NewArchiveFromZip decodes a zip archive held in memory.
func NewArchiveFromZip(data []byte) (*Archive, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrCodeArchiveCorrupt, err, "invalid zip archive")
	}

	a := &Archive{files: make(tree)}
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		name, ok, err := stripTopDir(f.Name)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, apperr.Wrap(apperr.ErrCodeArchiveCorrupt, err, "open entry %s", f.Name)
		}
		data, err := readEntry(rc)
		rc.Close()
		if err != nil {
			return nil, apperr.Wrap(apperr.ErrCodeArchiveCorrupt, err, "read entry %s", f.Name)
		}
		a.files[name] = data
	}
	return a, nil
}

// NewArchiveFromTarGz decodes a gzip-compressed tar archive held in memory.
func NewArchiveFromTarGz(data []byte) (*Archive, error) {
	gz, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrCodeArchiveCorrupt, err, "invalid gzip stream")
	}
	defer gz.Close()

	a := &Archive{files: make(tree)}
	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, apperr.Wrap(apperr.ErrCodeArchiveCorrupt, err, "invalid tar archive")
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		name, ok, err := stripTopDir(hdr.Name)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		data, err := readEntry(tr)
		if err != nil {
			return nil, apperr.Wrap(apperr.ErrCodeArchiveCorrupt, err, "read entry %s", hdr.Name)
		}
		a.files[name] = data
	}
	return a, nil
}

// Files returns every file path in the archive, sorted.
func (a *Archive) Files() []string {
	return a.files.files("")
}

// ReadFile returns the contents of the file at path.
func (a *Archive) ReadFile(path string) ([]byte, error) {
	return a.files.read(a.resolve(path))
}

// WriteFile always fails with [ErrReadOnly].
func (a *Archive) WriteFile(path string, data []byte) error {
	return fmt.Errorf("write %s: %w", path, ErrReadOnly)
}

// MoveFile always fails with [ErrReadOnly].
func (a *Archive) MoveFile(from, to string) error {
	return fmt.Errorf("move %s: %w", from, ErrReadOnly)
}

// Exists reports whether path is a file or directory in the archive.
func (a *Archive) Exists(path string) bool {
	return a.files.exists(a.resolve(path))
}

// ReadDir lists the direct children of a directory in the archive.
func (a *Archive) ReadDir(path string) ([]string, error) {
	return a.files.readDir(a.resolve(path))
}

func (a *Archive) resolve(p string) string {
	p = path.Clean(strings.TrimLeft(p, "/"))
	if p == "." {
		return ""
	}
	return p
}

var _ FileManager = (*Archive)(nil)

// Materialize copies the files of src below prefix into dst under destDir,
// preserving their paths relative to prefix. An empty prefix copies the whole
// archive. It returns the number of files written.
func Materialize(dst FileManager, src *Archive, prefix, destDir string) (int, error) {
	prefix = src.resolve(prefix)
	base := dirPrefix(prefix)

	n := 0
	for _, name := range src.files.files(prefix) {
		rel, ok := strings.CutPrefix(name, base)
		if !ok || rel == "" {
			continue
		}
		if err := dst.WriteFile(path.Join(destDir, rel), src.files[name]); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// stripTopDir removes the leading path segment of an archive entry name.
// Entries directly at the top level carry no repository content and are
// skipped (ok is false).
func stripTopDir(name string) (string, bool, error) {
	name = strings.TrimPrefix(name, "./")
	_, rest, found := strings.Cut(name, "/")
	if !found || rest == "" {
		return "", false, nil
	}
	if err := apperr.ValidateArchivePath(rest); err != nil {
		return "", false, err
	}
	return path.Clean(rest), true, nil
}

func readEntry(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxEntrySize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxEntrySize {
		return nil, fmt.Errorf("entry exceeds %d bytes", maxEntrySize)
	}
	return data, nil
}
