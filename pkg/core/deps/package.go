package deps

import (
	"errors"
	"io/fs"
	"maps"
	"path"
	"slices"

	"github.com/matzehuels/noirforge/pkg/fm"

	apperr "github.com/matzehuels/noirforge/pkg/errors"
)

// Package is a unit of source code: a root directory holding a manifest and
// a source directory. A Package is immutable once constructed.
type Package struct {
	root     string
	src      string
	manifest Manifest
}

// NewPackage builds a package from a manifest the caller already holds.
func NewPackage(root, src string, m Manifest) *Package {
	deps := make(map[string]Dependency, len(m.Dependencies))
	maps.Copy(deps, m.Dependencies)
	m.Dependencies = deps
	m.order = slices.Clone(m.order)
	return &Package{root: path.Clean(root), src: path.Clean(src), manifest: m}
}

// LoadPackage reads <root>/Nargo.toml through files. It fails with
// MANIFEST_NOT_FOUND when the manifest is absent and MANIFEST_PARSE_ERROR
// when it cannot be decoded.
func LoadPackage(root string, files fm.FileManager) (*Package, error) {
	root = path.Clean(root)
	manifestPath := path.Join(root, ManifestFile)

	data, err := files.ReadFile(manifestPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, apperr.Wrap(apperr.ErrCodeManifestNotFound, err, "no %s in %s", ManifestFile, root)
		}
		return nil, apperr.Wrap(apperr.ErrCodeManifestNotFound, err, "read %s", manifestPath)
	}

	m, err := ParseManifest(data)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrCodeManifestParseError, err, "%s", manifestPath)
	}
	return &Package{root: root, src: path.Join(root, "src"), manifest: m}, nil
}

// Name returns the name declared in the [package] table.
func (p *Package) Name() string { return p.manifest.Package.Name }

// Kind returns the declared package type.
func (p *Package) Kind() Kind { return p.manifest.Package.Type }

// Manifest returns a copy of the decoded manifest.
func (p *Package) Manifest() Manifest {
	m := p.manifest
	m.Dependencies = p.Dependencies()
	m.order = slices.Clone(p.manifest.order)
	return m
}

// Dependencies returns a copy of the manifest's dependency table.
func (p *Package) Dependencies() map[string]Dependency {
	out := make(map[string]Dependency, len(p.manifest.Dependencies))
	maps.Copy(out, p.manifest.Dependencies)
	return out
}

// DependencyNames returns the declared dependency names in manifest order.
func (p *Package) DependencyNames() []string { return p.manifest.Names() }

// RootPath returns the package root directory.
func (p *Package) RootPath() string { return p.root }

// SourceRootPath returns the directory module ids under this package
// resolve against, conventionally <root>/src.
func (p *Package) SourceRootPath() string { return p.src }

// EntryFilePath returns the crate entry file: src/lib.nr for libraries and
// src/main.nr for binaries and contracts.
func (p *Package) EntryFilePath() string {
	if p.Kind() == KindLibrary {
		return path.Join(p.src, "lib.nr")
	}
	return path.Join(p.src, "main.nr")
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}
