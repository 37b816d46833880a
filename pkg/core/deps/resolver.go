package deps

import (
	"context"
	"errors"
	"path"

	"github.com/matzehuels/noirforge/pkg/fm"

	apperr "github.com/matzehuels/noirforge/pkg/errors"
)

// ErrNotApplicable is returned by a [Resolver] that does not handle a kind of
// declaration. It is never a failure: the manager moves on to the next
// resolver in the chain.
var ErrNotApplicable = errors.New("resolver not applicable")

// Resolver turns a dependency declaration into a concrete package.
//
// Resolve has three outcomes:
//   - (pkg, nil): the declaration was resolved
//   - (nil, ErrNotApplicable): the resolver declines this kind of declaration
//   - (nil, err): the resolver committed to the declaration and failed
//
// from is the package that declared dep; relative locations resolve against
// its root.
type Resolver interface {
	Resolve(ctx context.Context, from *Package, dep Dependency) (*Package, error)
}

// ResolverFunc adapts a function to the [Resolver] interface.
type ResolverFunc func(ctx context.Context, from *Package, dep Dependency) (*Package, error)

// Resolve calls f.
func (f ResolverFunc) Resolve(ctx context.Context, from *Package, dep Dependency) (*Package, error) {
	return f(ctx, from, dep)
}

// LocalResolver resolves {path} declarations against a file manager.
type LocalResolver struct {
	files fm.FileManager
}

// NewLocalResolver creates a resolver reading packages through files.
func NewLocalResolver(files fm.FileManager) *LocalResolver {
	return &LocalResolver{files: files}
}

// Resolve loads the package at dep.Path, relative to from's root unless
// absolute. A target without a manifest is PATH_NOT_FOUND.
func (r *LocalResolver) Resolve(ctx context.Context, from *Package, dep Dependency) (*Package, error) {
	if !dep.IsLocal() {
		return nil, ErrNotApplicable
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dir := dep.Path
	if !path.IsAbs(dir) {
		dir = path.Join(from.RootPath(), dir)
	}

	if !r.files.Exists(path.Join(dir, ManifestFile)) {
		return nil, apperr.New(apperr.ErrCodePathNotFound, "no %s at %s", ManifestFile, dir)
	}
	pkg, err := LoadPackage(dir, r.files)
	if err != nil {
		return nil, err
	}
	return pkg, nil
}
