package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/noirforge/pkg/compiler"
	"github.com/matzehuels/noirforge/pkg/compiler/nargo"
	"github.com/matzehuels/noirforge/pkg/core/deps"
	"github.com/matzehuels/noirforge/pkg/fm"

	apperr "github.com/matzehuels/noirforge/pkg/errors"
)

// compileOpts holds the flags of the compile command.
type compileOpts struct {
	outDir     string
	backend    string
	typescript string
	iface      string
	strict     bool
	noCache    bool
}

// errCompileFailed is returned when the backend produced no artifact. The
// diagnostics have already been logged.
var errCompileFailed = errors.New("compilation failed")

// compileCommand creates the compile command.
func (c *CLI) compileCommand() *cobra.Command {
	opts := compileOpts{}

	cmd := &cobra.Command{
		Use:   "compile <project-path>",
		Short: "Compile a contract or binary project",
		Long: `Compile resolves the dependencies of a contract or bin project and writes
the artifact to <outdir>/<name>.json, where name is the contract name or
"main" for binaries.`,
		Example: `  # Compile the project in the current directory with nargo
  noirforge compile .

  # Write artifacts to ./build and fail when a source cannot be read
  noirforge compile ./token -o build --strict-sources`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runCompile(cmd.Context(), args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.outDir, "outdir", "o", "target", "output folder for artifacts, relative to the project path")
	cmd.Flags().StringVarP(&opts.backend, "compiler", "c", nargo.Name, "compiler backend")
	cmd.Flags().StringVar(&opts.typescript, "typescript", "", "output folder for TypeScript wrappers (not supported)")
	cmd.Flags().StringVarP(&opts.iface, "interface", "i", "", "output folder for contract interfaces (not supported)")
	cmd.Flags().BoolVar(&opts.strict, "strict-sources", false, "fail when the compiler requests a source that cannot be read")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable the archive download cache")

	return cmd
}

func (c *CLI) runCompile(ctx context.Context, projectPath string, opts compileOpts) error {
	if opts.typescript != "" {
		return apperr.New(apperr.ErrCodeUnsupported, "typescript wrappers are not supported")
	}
	if opts.iface != "" {
		return apperr.New(apperr.ErrCodeUnsupported, "contract interfaces are not supported")
	}

	root, err := filepath.Abs(projectPath)
	if err != nil {
		return apperr.Wrap(apperr.ErrCodeInvalidPath, err, "resolve project path %q", projectPath)
	}

	o, closeCache, err := c.newOrchestrator(ctx, opts.backend, opts.noCache, opts.strict)
	if err != nil {
		return err
	}
	defer closeCache()

	pkg, err := deps.LoadPackage(filepath.ToSlash(root), o.Files())
	if err != nil {
		return err
	}

	logger := loggerFromContext(ctx)
	logger.Info("compiling noir project", "path", root, "compiler", opts.backend)
	prog := newProgress(logger)

	var results []compiler.Result
	switch pkg.Kind() {
	case deps.KindContract:
		results, err = o.CompileContractProject(ctx, root)
	case deps.KindBinary:
		results, err = o.CompileProgramProject(ctx, root)
	default:
		return apperr.New(apperr.ErrCodeInvalidInput, "%s is a %s package; only contract and bin packages compile", pkg.Name(), pkg.Kind())
	}
	if err != nil {
		return err
	}
	if len(results) == 0 {
		return errCompileFailed
	}
	prog.done("compiled " + pkg.Name())

	outDir := opts.outDir
	if !filepath.IsAbs(outDir) {
		outDir = filepath.Join(root, outDir)
	}
	for _, r := range results {
		path, err := writeArtifact(outDir, r.Artifact)
		if err != nil {
			return err
		}
		printSuccess("Compiled %s", r.Artifact.Name())
		printFile(relativeToCwd(path))
		printDetail("build %s · sources %s", r.BuildID, r.SourceDigest)
		for _, id := range r.MissingSources {
			printWarning("source not found: %s", id)
		}
	}
	return nil
}

// writeArtifact writes a as indented JSON to dir/<name>.json. The name
// comes from the backend and must be a single path segment.
func writeArtifact(dir string, a *compiler.Artifact) (string, error) {
	if err := validateArtifactName(a.Name()); err != nil {
		return "", err
	}
	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode artifact: %w", err)
	}
	disk, err := fm.NewDisk(dir)
	if err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	name := a.Name() + ".json"
	if err := disk.WriteFile(name, append(data, '\n')); err != nil {
		return "", fmt.Errorf("write artifact: %w", err)
	}
	return filepath.Join(dir, name), nil
}

func validateArtifactName(name string) error {
	if name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return apperr.New(apperr.ErrCodeInvalidInput, "invalid artifact name %q", name)
	}
	if err := apperr.ValidateArchivePath(name); err != nil {
		return apperr.Wrap(apperr.ErrCodeInvalidInput, err, "invalid artifact name %q", name)
	}
	return nil
}

func relativeToCwd(path string) string {
	wd, err := os.Getwd()
	if err != nil {
		return path
	}
	if rel, err := filepath.Rel(wd, path); err == nil {
		return rel
	}
	return path
}
