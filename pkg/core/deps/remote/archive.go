package remote

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"

	"github.com/matzehuels/noirforge/pkg/core/deps"
	"github.com/matzehuels/noirforge/pkg/fm"
	"github.com/matzehuels/noirforge/pkg/integrations"
	"github.com/matzehuels/noirforge/pkg/integrations/github"
	"github.com/matzehuels/noirforge/pkg/integrations/gitlab"
	"github.com/matzehuels/noirforge/pkg/observability"

	apperr "github.com/matzehuels/noirforge/pkg/errors"
)

// ArchiveFetcher downloads the archive at a URL.
type ArchiveFetcher interface {
	FetchArchive(ctx context.Context, url string) ([]byte, error)
}

// ArchiveFetcherFunc adapts a function to the [ArchiveFetcher] interface.
type ArchiveFetcherFunc func(ctx context.Context, url string) ([]byte, error)

// FetchArchive calls f.
func (f ArchiveFetcherFunc) FetchArchive(ctx context.Context, url string) ([]byte, error) {
	return f(ctx, url)
}

// Option configures an [ArchiveResolver].
type Option func(*ArchiveResolver)

// WithLogger sets the logger used for debug output. The default is log.Default().
func WithLogger(l *log.Logger) Option {
	return func(r *ArchiveResolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// ArchiveResolver resolves {git, tag} declarations hosted on github.com or
// gitlab.com. Declarations for other hosts and {path} declarations are
// declined.
//
// ArchiveResolver is safe for concurrent use.
type ArchiveResolver struct {
	files   fm.FileManager
	fetcher ArchiveFetcher
	root    string
	logger  *log.Logger
	group   singleflight.Group
}

// NewArchiveResolver creates a resolver that stores archives and extracted
// packages through files and downloads through fetcher. When files is an
// [fm.Disk], the cache lives below its data directory; otherwise below "/".
func NewArchiveResolver(files fm.FileManager, fetcher ArchiveFetcher, opts ...Option) *ArchiveResolver {
	root := "/"
	if d, ok := files.(interface{ Dir() string }); ok {
		root = filepath.ToSlash(d.Dir())
	}
	r := &ArchiveResolver{
		files:   files,
		fetcher: fetcher,
		root:    root,
		logger:  log.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// source is a parsed remote declaration.
type source struct {
	host, owner, repo, tag, dir string
	url                         string
}

// Resolve loads the package for dep, downloading and extracting the
// repository archive when it is not cached yet.
func (r *ArchiveResolver) Resolve(ctx context.Context, _ *deps.Package, dep deps.Dependency) (*deps.Package, error) {
	if !dep.IsRemote() {
		return nil, deps.ErrNotApplicable
	}
	src, ok, err := parseSource(dep)
	if !ok {
		return nil, deps.ErrNotApplicable
	}
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	libDir := path.Join(r.root, "libs", cacheName(path.Join(src.host, src.owner, src.repo)+"@"+src.tag))
	pkgRoot := path.Join(libDir, src.dir)
	manifest := path.Join(pkgRoot, deps.ManifestFile)

	if r.files.Exists(manifest) {
		r.logger.Debug("using extracted package", "url", src.url, "root", pkgRoot)
		return deps.LoadPackage(pkgRoot, r.files)
	}

	archive, err := r.archive(ctx, src.url)
	if err != nil {
		return nil, err
	}
	if !archive.Exists(path.Join(src.dir, deps.ManifestFile)) {
		return nil, apperr.New(apperr.ErrCodeArchiveCorrupt, "archive %s has no %s in %q", src.url, deps.ManifestFile, src.dir)
	}

	n, err := fm.Materialize(r.files, archive, "", libDir)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", src.url, err)
	}
	r.logger.Debug("extracted archive", "url", src.url, "dir", libDir, "files", n)

	return deps.LoadPackage(pkgRoot, r.files)
}

// archive returns the decoded archive at url from the on-disk cache,
// downloading it when missing or unreadable. The shared download outlives
// the cancellation of any single caller; each caller stops waiting when its
// own ctx is done.
func (r *ArchiveResolver) archive(ctx context.Context, archiveURL string) (*fm.Archive, error) {
	ch := r.group.DoChan(archiveURL, func() (any, error) {
		return r.loadArchive(context.WithoutCancel(ctx), archiveURL)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			r.logger.Debug("shared archive download", "url", archiveURL)
		}
		return res.Val.(*fm.Archive), nil
	}
}

func (r *ArchiveResolver) loadArchive(ctx context.Context, archiveURL string) (*fm.Archive, error) {
	u, err := url.Parse(archiveURL)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrCodeInvalidInput, err, "archive url %s", archiveURL)
	}
	cached := path.Join(r.root, "archives", cacheName(u.Host+u.Path)+".zip")

	if data, err := r.files.ReadFile(cached); err == nil {
		a, err := fm.NewArchiveFromZip(data)
		if err == nil {
			r.logger.Debug("using cached archive", "url", archiveURL, "path", cached)
			return a, nil
		}
		r.logger.Debug("cached archive unreadable, downloading again", "path", cached, "err", err)
	}

	data, err := r.fetch(ctx, archiveURL)
	if err != nil {
		return nil, err
	}
	a, err := fm.NewArchiveFromZip(data)
	if err != nil {
		return nil, err
	}

	tmp := cached + ".tmp"
	if err := r.files.WriteFile(tmp, data); err != nil {
		return nil, fmt.Errorf("store archive: %w", err)
	}
	if err := r.files.MoveFile(tmp, cached); err != nil {
		return nil, fmt.Errorf("store archive: %w", err)
	}
	return a, nil
}

func (r *ArchiveResolver) fetch(ctx context.Context, archiveURL string) ([]byte, error) {
	start := time.Now()
	r.logger.Debug("downloading archive", "url", archiveURL)

	data, err := r.fetcher.FetchArchive(ctx, archiveURL)
	observability.Resolve().OnArchiveFetch(ctx, archiveURL, len(data), time.Since(start), err)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if errors.Is(err, integrations.ErrNotFound) {
			return nil, apperr.Wrap(apperr.ErrCodeFetchFailed, err, "archive %s not found", archiveURL)
		}
		return nil, apperr.Wrap(apperr.ErrCodeFetchFailed, err, "download %s", archiveURL)
	}
	return data, nil
}

// parseSource maps dep onto a supported host. ok is false for hosts this
// resolver does not handle; err reports a malformed declaration for a
// supported host.
func parseSource(dep deps.Dependency) (source, bool, error) {
	raw := integrations.NormalizeRepoURL(dep.Git)
	u, err := url.Parse(raw)
	if err != nil {
		return source{}, false, nil
	}

	src := source{host: strings.ToLower(u.Host), tag: dep.Tag}
	switch src.host {
	case github.Host:
		owner, repo, ok := github.ParseRepo(raw)
		if !ok {
			return src, true, apperr.New(apperr.ErrCodeInvalidInput, "invalid GitHub repository %q", dep.Git)
		}
		src.owner, src.repo = owner, repo
		src.url = github.ArchiveURL(owner, repo, dep.Tag)
	case gitlab.Host:
		owner, repo, ok := gitlab.ParseRepo(raw)
		if !ok {
			return src, true, apperr.New(apperr.ErrCodeInvalidInput, "invalid GitLab repository %q", dep.Git)
		}
		src.owner, src.repo = owner, repo
		src.url = gitlab.ArchiveURL(owner, repo, dep.Tag)
	default:
		return source{}, false, nil
	}

	if strings.ContainsAny(dep.Tag, "/\\?#") || dep.Tag == "." || dep.Tag == ".." {
		return src, true, apperr.New(apperr.ErrCodeInvalidInput, "invalid tag %q", dep.Tag)
	}

	dir := path.Clean("/" + strings.ReplaceAll(dep.Directory, "\\", "/"))
	if dep.Directory != "" && (strings.HasPrefix(dep.Directory, "/") || containsDotDot(dep.Directory)) {
		return src, true, apperr.New(apperr.ErrCodeInvalidInput, "invalid directory %q", dep.Directory)
	}
	src.dir = strings.TrimPrefix(dir, "/")
	return src, true, nil
}

func containsDotDot(p string) bool {
	for _, seg := range strings.FieldsFunc(p, func(r rune) bool { return r == '/' || r == '\\' }) {
		if seg == ".." {
			return true
		}
	}
	return false
}

// cacheName turns key into a file name: the readable safe(key) followed by
// the xxhash of the raw key, so keys that sanitize alike stay apart.
func cacheName(key string) string {
	return fmt.Sprintf("%s-%016x", safe(key), xxhash.Sum64String(key))
}

// safe replaces every byte outside [A-Za-z0-9_-] with "_".
func safe(s string) string {
	b := []byte(s)
	for i, c := range b {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '_', c == '-':
		default:
			b[i] = '_'
		}
	}
	return string(b)
}
