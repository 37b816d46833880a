package compiler

import (
	"context"
	"fmt"
	"slices"
	"sync"

	apperr "github.com/matzehuels/noirforge/pkg/errors"
)

// SourceResolver maps a module id requested by the compiler to the source
// text. It returns "" when the source cannot be read.
type SourceResolver func(id string) string

// Dependencies is the dependency graph handed to a backend.
type Dependencies struct {
	// RootDependencies are the names the project declares directly.
	RootDependencies []string `json:"root_dependencies"`
	// LibraryDependencies maps each library to the names it declares.
	LibraryDependencies map[string][]string `json:"library_dependencies"`
}

// Backend is a compiler engine.
type Backend interface {
	// InstallSourceResolver sets the callback used to read sources. It is
	// called before every Compile.
	InstallSourceResolver(fn SourceResolver)

	// Compile builds the crate rooted at entryPath. Compile failures are
	// reported as *Diagnostics.
	Compile(ctx context.Context, entryPath string, isContract bool, deps Dependencies) (*Artifact, error)
}

// Named is implemented by backends that report a name for logs and hooks.
type Named interface {
	Name() string
}

func backendName(b Backend) string {
	if n, ok := b.(Named); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", b)
}

// Factory creates a backend.
type Factory func() (Backend, error)

// Registry maps backend names to factories. It is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// DefaultRegistry is the registry the CLI looks backends up in.
var DefaultRegistry = NewRegistry()

// Register adds or replaces the factory for name.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

// New creates the backend registered as name. Unknown names are UNSUPPORTED.
func (r *Registry) New(name string) (Backend, error) {
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, apperr.New(apperr.ErrCodeUnsupported, "compiler backend %q is not available", name)
	}
	return f()
}

// Names returns the registered backend names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for n := range r.factories {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}
