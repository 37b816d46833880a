package deps

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/noirforge/pkg/core/dag"
	"github.com/matzehuels/noirforge/pkg/observability"

	apperr "github.com/matzehuels/noirforge/pkg/errors"
)

var (
	// ErrAlreadyResolved is returned by a second [Manager.ResolveAll] call.
	ErrAlreadyResolved = errors.New("dependencies already resolved")

	// ErrManagerPoisoned is returned by [Manager.ResolveAll] after an earlier
	// call failed. The manager must be discarded.
	ErrManagerPoisoned = errors.New("dependency manager unusable after failed resolution")
)

type managerState int

const (
	stateNew managerState = iota
	stateResolved
	statePoisoned
)

// ManagerOption configures a [Manager].
type ManagerOption func(*Manager)

// WithLogger sets the logger used for debug output. The default is log.Default().
func WithLogger(l *log.Logger) ManagerOption {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// Manager resolves a project's dependency graph through an ordered chain of
// resolvers and answers queries about the result.
//
// The graph is flattened by name: every name is resolved at most once, and
// later declarations of a name that is already resolved are skipped, wherever
// they appear. Resolution is sequential and depth-first.
//
// A Manager resolves one project once. It is not safe for concurrent use
// during [Manager.ResolveAll]; the query methods may be called concurrently
// afterwards.
type Manager struct {
	resolvers []Resolver
	logger    *log.Logger
	state     managerState

	root        *Package
	packages    map[string]*Package
	decls       map[string]Dependency
	order       []string
	entrypoints []string
	libraries   map[string][]string
	edges       [][2]string
}

// NewManager creates a manager that tries resolvers in order.
func NewManager(resolvers []Resolver, opts ...ManagerOption) *Manager {
	m := &Manager{
		resolvers: slices.Clone(resolvers),
		logger:    log.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.reset()
	return m
}

func (m *Manager) reset() {
	m.root = nil
	m.packages = make(map[string]*Package)
	m.decls = make(map[string]Dependency)
	m.order = nil
	m.entrypoints = nil
	m.libraries = make(map[string][]string)
	m.edges = nil
}

// ResolveAll resolves every dependency reachable from root.
//
// Any failure aborts the whole call. The registry is then cleared and the
// manager refuses further use with [ErrManagerPoisoned].
func (m *Manager) ResolveAll(ctx context.Context, root *Package) error {
	switch m.state {
	case stateResolved:
		return ErrAlreadyResolved
	case statePoisoned:
		return ErrManagerPoisoned
	}

	m.root = root
	m.entrypoints = root.DependencyNames()

	if err := m.resolvePackage(ctx, root, rootNodeID(root)); err != nil {
		m.reset()
		m.state = statePoisoned
		return err
	}
	m.state = stateResolved
	return nil
}

// resolvePackage resolves the direct dependencies of pkg, registered as id,
// and recurses into each newly resolved one.
func (m *Manager) resolvePackage(ctx context.Context, pkg *Package, id string) error {
	names := pkg.DependencyNames()
	declared := pkg.Dependencies()

	if pkg != m.root && len(names) > 0 {
		key := pkg.Name()
		if key == "" {
			key = id
		}
		m.libraries[key] = names
	}

	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return err
		}
		dep := declared[name]
		m.edges = append(m.edges, [2]string{id, name})

		if _, ok := m.packages[name]; ok {
			if prev := m.decls[name]; prev != dep {
				m.logger.Debug("skipping divergent declaration", "dependency", name, "declared_by", id, "kept", prev, "skipped", dep)
			} else {
				m.logger.Debug("skipping already resolved dependency", "dependency", name)
			}
			observability.Resolve().OnDependencySkipped(ctx, name)
			continue
		}

		resolved, err := m.resolveDependency(ctx, pkg, name, dep)
		if err != nil {
			return err
		}
		if resolved.Kind() != KindLibrary {
			m.logger.Debug("non-library package", "dependency", name, "kind", resolved.Kind(), "root", resolved.RootPath())
			return apperr.New(apperr.ErrCodeInvalidDependencyKind, "dependency %s is not a library (type %q)", name, resolved.Kind())
		}

		m.packages[name] = resolved
		m.decls[name] = dep
		m.order = append(m.order, name)

		if err := m.resolvePackage(ctx, resolved, name); err != nil {
			return err
		}
	}
	return nil
}

// resolveDependency runs the resolver chain. The first resolver that does
// not decline decides the outcome.
func (m *Manager) resolveDependency(ctx context.Context, from *Package, name string, dep Dependency) (*Package, error) {
	start := time.Now()
	observability.Resolve().OnResolveStart(ctx, name, dep.String())

	pkg, err := m.runChain(ctx, from, name, dep)

	observability.Resolve().OnResolveComplete(ctx, name, dep.String(), time.Since(start), err)
	if err == nil {
		m.logger.Debug("resolved dependency", "dependency", name, "root", pkg.RootPath(), "duration", time.Since(start).Round(time.Millisecond))
	}
	return pkg, err
}

func (m *Manager) runChain(ctx context.Context, from *Package, name string, dep Dependency) (*Package, error) {
	for _, r := range m.resolvers {
		pkg, err := r.Resolve(ctx, from, dep)
		if errors.Is(err, ErrNotApplicable) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", name, err)
		}
		if pkg != nil {
			return pkg, nil
		}
	}
	return nil, apperr.New(apperr.ErrCodeDependencyUnresolved, "dependency %s (%s) not resolved", name, dep)
}

// Root returns the package passed to ResolveAll, or nil.
func (m *Manager) Root() *Package { return m.root }

// PackageNames returns the resolved dependency names in resolution order.
func (m *Manager) PackageNames() []string { return slices.Clone(m.order) }

// EntrypointDependencies returns the names the root project declares
// directly, in manifest order.
func (m *Manager) EntrypointDependencies() []string { return slices.Clone(m.entrypoints) }

// LibraryDependencies maps each resolved package that declares dependencies,
// keyed by its declared package name, to its direct dependency names.
func (m *Manager) LibraryDependencies() map[string][]string {
	out := make(map[string][]string, len(m.libraries))
	for k, v := range m.libraries {
		out[k] = slices.Clone(v)
	}
	return out
}

// Package returns the package resolved under name.
func (m *Manager) Package(name string) (*Package, bool) {
	p, ok := m.packages[name]
	return p, ok
}

// Declaration returns the declaration that resolved name.
func (m *Manager) Declaration(name string) (Dependency, bool) {
	d, ok := m.decls[name]
	return d, ok
}

// ResolveSourcePath maps a virtual module id of the form "<name>/<subpath>"
// onto the source root of the package resolved as <name>. It reports false
// for absolute ids, for unknown names, for ids that would escape the source
// root, and before resolution.
func (m *Manager) ResolveSourcePath(id string) (string, bool) {
	if strings.HasPrefix(id, "/") {
		return "", false
	}
	var segs []string
	for _, s := range strings.Split(id, "/") {
		if s == "" {
			continue
		}
		if s == ".." {
			return "", false
		}
		segs = append(segs, s)
	}
	if len(segs) == 0 {
		return "", false
	}

	pkg, ok := m.packages[segs[0]]
	if !ok {
		return "", false
	}
	return path.Join(append([]string{pkg.SourceRootPath()}, segs[1:]...)...), true
}

// Graph exports the resolved graph: the root project and every resolved
// package as nodes, each declaration as an edge. Rows are assigned by depth.
// Node metadata carries "kind" and "root"; resolved packages also carry
// "source" (the declaration that won).
func (m *Manager) Graph() *dag.DAG {
	g := dag.New(nil)
	if m.root == nil {
		return g
	}

	rootID := rootNodeID(m.root)
	g.Meta()["root"] = rootID
	_ = g.AddNode(dag.Node{ID: rootID, Meta: dag.Metadata{
		"kind": string(m.root.Kind()),
		"root": m.root.RootPath(),
	}})
	for _, name := range m.order {
		p := m.packages[name]
		_ = g.AddNode(dag.Node{ID: name, Meta: dag.Metadata{
			"kind":   string(p.Kind()),
			"root":   p.RootPath(),
			"source": m.decls[name].String(),
		}})
	}
	for _, e := range m.edges {
		_ = g.AddEdge(dag.Edge{From: e[0], To: e[1]})
	}
	g.AssignRows()
	return g
}

// Packages returns the resolved packages keyed by name.
func (m *Manager) Packages() map[string]*Package {
	return maps.Clone(m.packages)
}

func rootNodeID(root *Package) string {
	if root.Name() != "" {
		return root.Name()
	}
	return path.Base(root.RootPath())
}
