package cli

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/matzehuels/noirforge/pkg/compiler"
)

// cacheCommand creates the cache management command.
func (c *CLI) cacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage downloaded archives and extracted libraries",
	}

	cmd.AddCommand(c.cacheClearCommand())
	cmd.AddCommand(c.cachePathCommand())

	return cmd
}

// cacheDirs returns the HTTP byte cache and the dependency cache holding
// extracted libraries.
func cacheDirs() ([]string, error) {
	dir, err := cacheDir()
	if err != nil {
		return nil, fmt.Errorf("get cache dir: %w", err)
	}
	return []string{dir, compiler.DefaultCacheDir()}, nil
}

// cacheClearCommand creates the "cache clear" subcommand.
func (c *CLI) cacheClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove all cached archives and libraries",
		RunE: func(cmd *cobra.Command, args []string) error {
			dirs, err := cacheDirs()
			if err != nil {
				return err
			}

			total := 0
			for _, dir := range dirs {
				n, err := clearDir(dir)
				if err != nil {
					return err
				}
				total += n
			}

			if total == 0 {
				printInfo("Cache is empty")
				return nil
			}
			printSuccess("Cleared %d cached entries", total)
			for _, dir := range dirs {
				printDetail("Directory: %s", dir)
			}
			return nil
		},
	}
}

// clearDir removes every file below dir, then the emptied subdirectories,
// and reports the number of files removed. A missing dir is empty.
func clearDir(dir string) (int, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return 0, nil
	}

	count := 0
	var subdirs []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || path == dir {
			return nil // Skip errors, continue walking
		}
		if d.IsDir() {
			subdirs = append(subdirs, path)
			return nil
		}
		if err := os.Remove(path); err == nil {
			count++
		}
		return nil
	})
	if err != nil {
		return count, err
	}

	// Deepest first, so parents are empty by the time they are removed.
	for i := len(subdirs) - 1; i >= 0; i-- {
		os.Remove(subdirs[i])
	}
	return count, nil
}

// cachePathCommand creates the "cache path" subcommand.
func (c *CLI) cachePathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the cache directory paths",
		RunE: func(cmd *cobra.Command, args []string) error {
			dirs, err := cacheDirs()
			if err != nil {
				return err
			}
			for _, dir := range dirs {
				fmt.Fprintln(cmd.OutOrStdout(), dir)
			}
			return nil
		},
	}
}
