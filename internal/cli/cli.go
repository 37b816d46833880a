// Package cli implements the noirforge command-line interface.
package cli

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/noirforge/pkg/buildinfo"
	"github.com/matzehuels/noirforge/pkg/cache"
	"github.com/matzehuels/noirforge/pkg/compiler"
	"github.com/matzehuels/noirforge/pkg/compiler/nargo"
	"github.com/matzehuels/noirforge/pkg/integrations"
	"github.com/matzehuels/noirforge/pkg/integrations/github"
	"github.com/matzehuels/noirforge/pkg/integrations/gitlab"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// appName is the application name used for directories and display.
	appName = "noirforge"

	// Environment variables read by the CLI.
	envRedisURL   = "NOIRFORGE_REDIS_URL"
	envNargo      = "NOIRFORGE_NARGO"
	envGitHubAuth = "GITHUB_TOKEN"
	envGitLabAuth = "GITLAB_TOKEN"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	// registry resolves --compiler names. Nil means compiler.DefaultRegistry.
	registry *compiler.Registry
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          appName,
		Short:        "Noirforge resolves and compiles Noir projects",
		Long:         `Noirforge resolves the dependency graph of a Noir contract or binary project, fetching remote libraries from GitHub and GitLab, and compiles it into a JSON artifact.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
			return nil
		},
	}

	root.SetVersionTemplate(buildinfo.Template())

	root.AddCommand(c.compileCommand())
	root.AddCommand(c.resolveCommand())
	root.AddCommand(c.graphCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// =============================================================================
// Orchestrator Factory
// =============================================================================

func (c *CLI) backends() *compiler.Registry {
	if c.registry != nil {
		return c.registry
	}
	nargo.Register(compiler.DefaultRegistry,
		nargo.WithBinary(os.Getenv(envNargo)),
		nargo.WithLogger(c.Logger),
	)
	return compiler.DefaultRegistry
}

// newOrchestrator builds an orchestrator for the named backend. The
// returned close function releases the byte cache.
func (c *CLI) newOrchestrator(ctx context.Context, backend string, noCache, strict bool) (*compiler.Orchestrator, func(), error) {
	b, err := c.backends().New(backend)
	if err != nil {
		return nil, nil, err
	}
	bc := c.newCache(ctx, noCache)
	o, err := compiler.NewOrchestrator(b,
		compiler.WithFetcher(newFetcher(bc)),
		compiler.WithLogger(c.Logger),
		compiler.WithStrictSources(strict),
	)
	if err != nil {
		bc.Close()
		return nil, nil, err
	}
	return o, func() { bc.Close() }, nil
}

// newCache selects the archive byte cache: Redis when NOIRFORGE_REDIS_URL
// is set, otherwise a file cache below cacheDir. Failures degrade to no
// caching.
func (c *CLI) newCache(ctx context.Context, noCache bool) cache.Cache {
	if noCache {
		return cache.NewNullCache()
	}
	if url := os.Getenv(envRedisURL); url != "" {
		rc, err := cache.NewRedisCache(ctx, cache.RedisConfig{URL: url})
		if err == nil {
			return cache.Observed(rc, "archive")
		}
		c.Logger.Warn("redis cache unavailable", "err", err)
	}
	dir, err := cacheDir()
	if err != nil {
		return cache.NewNullCache()
	}
	fc, err := cache.NewFileCache(filepath.Join(dir, "http"))
	if err != nil {
		c.Logger.Warn("file cache unavailable", "err", err)
		return cache.NewNullCache()
	}
	return cache.Observed(fc, "archive")
}

func newFetcher(c cache.Cache) *integrations.Fetcher {
	f := integrations.NewFetcher(integrations.NewClient(c, nil, 0, nil))
	f.Handle(github.Host, github.NewClient(c, os.Getenv(envGitHubAuth)).Client)
	f.Handle(gitlab.Host, gitlab.NewClient(c, os.Getenv(envGitLabAuth)).Client)
	return f
}

// =============================================================================
// Paths
// =============================================================================

// cacheDir returns the cache directory using XDG standard (~/.cache/noirforge/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}
