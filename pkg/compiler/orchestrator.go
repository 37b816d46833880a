package compiler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/matzehuels/noirforge/pkg/cache"
	"github.com/matzehuels/noirforge/pkg/core/deps"
	"github.com/matzehuels/noirforge/pkg/core/deps/remote"
	"github.com/matzehuels/noirforge/pkg/fm"
	"github.com/matzehuels/noirforge/pkg/integrations"
	"github.com/matzehuels/noirforge/pkg/integrations/github"
	"github.com/matzehuels/noirforge/pkg/integrations/gitlab"
	"github.com/matzehuels/noirforge/pkg/observability"

	apperr "github.com/matzehuels/noirforge/pkg/errors"
)

// CacheDirName is the directory below the user cache root that holds
// downloaded archives and extracted packages.
const CacheDirName = "noir_wasm"

// DefaultCacheDir returns $XDG_CACHE_HOME/noir_wasm, falling back to
// ~/.cache/noir_wasm.
func DefaultCacheDir() string {
	root := os.Getenv("XDG_CACHE_HOME")
	if root == "" {
		home, _ := os.UserHomeDir()
		root = filepath.Join(home, ".cache")
	}
	return filepath.Join(root, CacheDirName)
}

// Result is one successfully compiled artifact.
type Result struct {
	Artifact *Artifact `json:"artifact"`
	// BuildID identifies this compilation.
	BuildID uuid.UUID `json:"build_id"`
	// SourceDigest is an xxhash over every source served to the backend.
	SourceDigest string `json:"source_digest"`
	// MissingSources lists module ids the backend asked for that could not
	// be read.
	MissingSources []string `json:"missing_sources,omitempty"`
}

// Option configures an [Orchestrator].
type Option func(*Orchestrator)

// WithFileManager sets the file manager sources and the dependency cache are
// read through. The default is a [fm.Disk] at [DefaultCacheDir].
func WithFileManager(files fm.FileManager) Option {
	return func(o *Orchestrator) { o.files = files }
}

// WithResolvers replaces the default resolver chain.
func WithResolvers(resolvers ...deps.Resolver) Option {
	return func(o *Orchestrator) { o.resolvers = slices.Clone(resolvers) }
}

// WithFetcher sets the downloader used by the default archive resolver.
// It has no effect together with [WithResolvers].
func WithFetcher(f remote.ArchiveFetcher) Option {
	return func(o *Orchestrator) { o.fetcher = f }
}

// WithLogger sets the logger. The default is log.Default().
func WithLogger(l *log.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithStrictSources turns unreadable sources into a compile failure instead
// of serving them as empty files.
func WithStrictSources(strict bool) Option {
	return func(o *Orchestrator) { o.strict = strict }
}

// Orchestrator resolves a project's dependencies and compiles it with a
// [Backend]. An Orchestrator may compile several projects in turn; it does
// not compile concurrently because the backend's source resolver is
// process-wide state.
type Orchestrator struct {
	files     fm.FileManager
	resolvers []deps.Resolver
	fetcher   remote.ArchiveFetcher
	backend   Backend
	logger    *log.Logger
	strict    bool

	mu sync.Mutex
}

// NewOrchestrator creates an orchestrator for backend. Unless overridden,
// sources are read from disk, archives are cached below [DefaultCacheDir],
// and dependencies resolve through a local resolver followed by an archive
// resolver.
func NewOrchestrator(backend Backend, opts ...Option) (*Orchestrator, error) {
	if backend == nil {
		return nil, apperr.New(apperr.ErrCodeInvalidInput, "compiler backend is required")
	}
	o := &Orchestrator{backend: backend, logger: log.Default()}
	for _, opt := range opts {
		opt(o)
	}

	if o.files == nil {
		disk, err := fm.NewDisk(DefaultCacheDir())
		if err != nil {
			return nil, fmt.Errorf("open cache dir: %w", err)
		}
		o.files = disk
	}
	if o.resolvers == nil {
		if o.fetcher == nil {
			o.fetcher = defaultFetcher()
		}
		o.resolvers = []deps.Resolver{
			deps.NewLocalResolver(o.files),
			remote.NewArchiveResolver(o.files, o.fetcher, remote.WithLogger(o.logger)),
		}
	}
	return o, nil
}

// defaultFetcher downloads without a byte cache: the archive resolver keeps
// its own copy on disk.
func defaultFetcher() *integrations.Fetcher {
	nc := cache.NewNullCache()
	f := integrations.NewFetcher(integrations.NewClient(nc, nil, 0, nil))
	f.Handle(github.Host, github.NewClient(nc, os.Getenv("GITHUB_TOKEN")).Client)
	f.Handle(gitlab.Host, gitlab.NewClient(nc, os.Getenv("GITLAB_TOKEN")).Client)
	return f
}

// Files returns the orchestrator's file manager.
func (o *Orchestrator) Files() fm.FileManager { return o.files }

// CompileContractProject compiles the contract project at projectPath,
// which must be absolute.
//
// Resolution errors are returned as-is. A failed compilation is logged and
// yields an empty slice and a nil error.
func (o *Orchestrator) CompileContractProject(ctx context.Context, projectPath string) ([]Result, error) {
	return o.compile(ctx, projectPath, deps.KindContract)
}

// CompileProgramProject compiles the binary project at projectPath with the
// same pipeline as [Orchestrator.CompileContractProject].
func (o *Orchestrator) CompileProgramProject(ctx context.Context, projectPath string) ([]Result, error) {
	return o.compile(ctx, projectPath, deps.KindBinary)
}

// Resolve loads the project at projectPath and resolves its dependencies
// without compiling.
func (o *Orchestrator) Resolve(ctx context.Context, projectPath string) (*deps.Manager, error) {
	root, err := o.loadRoot(projectPath)
	if err != nil {
		return nil, err
	}
	return o.resolve(ctx, root)
}

func (o *Orchestrator) loadRoot(projectPath string) (*deps.Package, error) {
	if !filepath.IsAbs(projectPath) {
		return nil, apperr.New(apperr.ErrCodeInvalidPath, "project path must be absolute: %q", projectPath)
	}
	return deps.LoadPackage(filepath.ToSlash(projectPath), o.files)
}

func (o *Orchestrator) resolve(ctx context.Context, root *deps.Package) (*deps.Manager, error) {
	m := deps.NewManager(o.resolvers, deps.WithLogger(o.logger))
	if err := m.ResolveAll(ctx, root); err != nil {
		return nil, err
	}
	o.logger.Info("resolved dependencies", "packages", strings.Join(m.PackageNames(), ", "))
	return m, nil
}

func (o *Orchestrator) compile(ctx context.Context, projectPath string, kind deps.Kind) ([]Result, error) {
	root, err := o.loadRoot(projectPath)
	if err != nil {
		return nil, err
	}
	if root.Kind() != kind {
		if kind == deps.KindContract {
			return nil, apperr.New(apperr.ErrCodeNotAContractProject, "This is not a contract project (%s is %q)", root.Name(), root.Kind())
		}
		return nil, apperr.New(apperr.ErrCodeInvalidInput, "%s is not a binary project (type %q)", root.Name(), root.Kind())
	}

	isContract := kind == deps.KindContract
	what := "program"
	if isContract {
		what = "contract"
	}
	o.logger.Info("compiling "+what, "entry", root.EntryFilePath())

	m, err := o.resolve(ctx, root)
	if err != nil {
		return nil, err
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	sources := newSourceSet()
	o.backend.InstallSourceResolver(o.sourceResolver(root, m, sources))

	name := backendName(o.backend)
	observability.Compile().OnCompileStart(ctx, root.Name(), name)
	start := time.Now()

	artifact, err := o.backend.Compile(ctx, root.EntryFilePath(), isContract, Dependencies{
		RootDependencies:    m.EntrypointDependencies(),
		LibraryDependencies: m.LibraryDependencies(),
	})
	if err == nil && artifact == nil {
		err = &Diagnostics{Message: "backend returned no artifact"}
	}
	if err == nil && o.strict {
		if missing := sources.missingIDs(); len(missing) > 0 {
			err = &Diagnostics{Message: "unreadable sources: " + strings.Join(missing, ", ")}
		}
	}

	if err != nil {
		observability.Compile().OnCompileComplete(ctx, root.Name(), name, 0, time.Since(start), err)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		diag := asDiagnostics(err)
		o.logger.Error("error compiling "+what, "err", diag.Message, "diagnostics", diag.Diagnostics)
		return []Result{}, nil
	}

	observability.Compile().OnCompileComplete(ctx, root.Name(), name, 1, time.Since(start), nil)
	o.logger.Debug("compiled", "project", root.Name(), "artifact", artifact.Name(), "duration", time.Since(start).Round(time.Millisecond))

	return []Result{{
		Artifact:       artifact,
		BuildID:        uuid.New(),
		SourceDigest:   sources.digest(),
		MissingSources: sources.missingIDs(),
	}}, nil
}

// sourceResolver serves module ids from resolved packages, falling back to
// reading the id as a path. Relative fallback paths are taken from the root
// project.
func (o *Orchestrator) sourceResolver(root *deps.Package, m *deps.Manager, sources *sourceSet) SourceResolver {
	return func(id string) string {
		p, ok := m.ResolveSourcePath(id)
		if !ok {
			p = id
			if !path.IsAbs(p) {
				p = path.Join(root.RootPath(), p)
			}
		}
		data, err := o.files.ReadFile(path.Clean(p))
		if err != nil {
			o.logger.Warn("source not readable", "id", id, "path", p, "err", err)
			sources.miss(id)
			return ""
		}
		sources.add(id, data)
		return string(data)
	}
}

// asDiagnostics returns err as *Diagnostics, wrapping other errors.
func asDiagnostics(err error) *Diagnostics {
	var d *Diagnostics
	if errors.As(err, &d) {
		return d
	}
	return &Diagnostics{Message: apperr.Wrap(apperr.ErrCodeCompileDiagnostics, err, "compile").Error()}
}

// sourceSet records what the backend was served.
type sourceSet struct {
	mu      sync.Mutex
	served  map[string][]byte
	missing map[string]struct{}
}

func newSourceSet() *sourceSet {
	return &sourceSet{served: make(map[string][]byte), missing: make(map[string]struct{})}
}

func (s *sourceSet) add(id string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.served[id] = data
}

func (s *sourceSet) miss(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.missing[id] = struct{}{}
}

func (s *sourceSet) missingIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.missing) == 0 {
		return nil
	}
	ids := make([]string, 0, len(s.missing))
	for id := range s.missing {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// digest hashes every served (id, content) pair in id order.
func (s *sourceSet) digest() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.served))
	for id := range s.served {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	h := xxhash.New()
	for _, id := range ids {
		_, _ = h.WriteString(id)
		_, _ = h.Write([]byte{0})
		_, _ = h.Write(s.served[id])
		_, _ = h.Write([]byte{0})
	}
	return fmt.Sprintf("%016x", h.Sum64())
}
