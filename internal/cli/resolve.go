package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/noirforge/pkg/compiler"
	"github.com/matzehuels/noirforge/pkg/core/dag"
	"github.com/matzehuels/noirforge/pkg/core/deps"
	"github.com/matzehuels/noirforge/pkg/core/render/nodelink"
	graphio "github.com/matzehuels/noirforge/pkg/io"

	apperr "github.com/matzehuels/noirforge/pkg/errors"
)

// Graph output formats.
const (
	formatDOT  = "dot"
	formatSVG  = "svg"
	formatJSON = "json"
)

// resolveOpts holds the flags shared by resolve and graph.
type resolveOpts struct {
	json     bool
	noCache  bool
	format   string
	output   string
	detailed bool
}

// resolvedPackage is one entry of the resolve --json report.
type resolvedPackage struct {
	Name    string `json:"name"`
	Package string `json:"package"`
	Kind    string `json:"kind"`
	Root    string `json:"root"`
	Source  string `json:"source"`
}

// resolveReport is the resolve --json document.
type resolveReport struct {
	Project  string            `json:"project"`
	Kind     string            `json:"kind"`
	Root     string            `json:"root"`
	Packages []resolvedPackage `json:"packages"`
	compiler.Dependencies
}

// resolveCommand creates the resolve command.
func (c *CLI) resolveCommand() *cobra.Command {
	opts := resolveOpts{}

	cmd := &cobra.Command{
		Use:   "resolve <project-path>",
		Short: "Resolve and list the dependencies of a project",
		Long: `Resolve walks the dependency graph of a project, fetching remote
libraries into the cache, and lists every resolved package.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := c.resolveProject(cmd.Context(), args[0], opts.noCache)
			if err != nil {
				return err
			}
			report := newResolveReport(m)
			if opts.json {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}
			printReport(report)
			return nil
		},
	}

	cmd.Flags().BoolVar(&opts.json, "json", false, "print the resolved graph as JSON")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable the archive download cache")

	return cmd
}

// graphCommand creates the graph command.
func (c *CLI) graphCommand() *cobra.Command {
	opts := resolveOpts{}

	cmd := &cobra.Command{
		Use:   "graph <project-path>",
		Short: "Render the dependency graph of a project",
		Example: `  # Print the graph in DOT format
  noirforge graph .

  # Render an SVG with package metadata
  noirforge graph . --format svg --detailed -o deps.svg`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains([]string{formatDOT, formatSVG, formatJSON}, opts.format) {
				return apperr.New(apperr.ErrCodeInvalidInput, "unknown format %q (want %s, %s or %s)", opts.format, formatDOT, formatSVG, formatJSON)
			}
			m, err := c.resolveProject(cmd.Context(), args[0], opts.noCache)
			if err != nil {
				return err
			}

			g := m.Graph()
			data, err := renderGraph(cmd.Context(), g, opts)
			if err != nil {
				return err
			}

			if opts.output == "" {
				_, err := cmd.OutOrStdout().Write(data)
				return err
			}
			if err := os.WriteFile(opts.output, data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", opts.output, err)
			}
			printSuccess("Rendered %d packages", g.NodeCount())
			printFile(opts.output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.format, "format", "f", formatDOT, "output format: dot, svg or json")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (default stdout)")
	cmd.Flags().BoolVar(&opts.detailed, "detailed", false, "include package metadata in node labels")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable the archive download cache")

	return cmd
}

func renderGraph(ctx context.Context, g *dag.DAG, opts resolveOpts) ([]byte, error) {
	if opts.format == formatJSON {
		var buf bytes.Buffer
		if err := graphio.WriteJSON(g, &buf); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}

	root, _ := g.Meta()["root"].(string)
	dot := nodelink.ToDOT(g, nodelink.Options{Detailed: opts.detailed, Root: root})
	if opts.format == formatSVG {
		return nodelink.RenderSVG(ctx, dot)
	}
	return []byte(dot), nil
}

// resolveProject resolves the project at projectPath without compiling.
// No backend is needed, so the orchestrator gets a placeholder.
func (c *CLI) resolveProject(ctx context.Context, projectPath string, noCache bool) (*deps.Manager, error) {
	root, err := filepath.Abs(projectPath)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrCodeInvalidPath, err, "resolve project path %q", projectPath)
	}

	bc := c.newCache(ctx, noCache)
	defer bc.Close()

	o, err := compiler.NewOrchestrator(resolveOnly{},
		compiler.WithFetcher(newFetcher(bc)),
		compiler.WithLogger(c.Logger),
	)
	if err != nil {
		return nil, err
	}

	prog := newProgress(loggerFromContext(ctx))
	m, err := o.Resolve(ctx, root)
	if err != nil {
		return nil, err
	}
	prog.done(fmt.Sprintf("resolved %d packages", len(m.PackageNames())))
	return m, nil
}

// resolveOnly is the backend of an orchestrator that never compiles.
type resolveOnly struct{}

func (resolveOnly) InstallSourceResolver(compiler.SourceResolver) {}

func (resolveOnly) Compile(context.Context, string, bool, compiler.Dependencies) (*compiler.Artifact, error) {
	return nil, apperr.New(apperr.ErrCodeUnsupported, "resolve-only orchestrator cannot compile")
}

func newResolveReport(m *deps.Manager) resolveReport {
	root := m.Root()
	r := resolveReport{
		Project:  root.Name(),
		Kind:     string(root.Kind()),
		Root:     root.RootPath(),
		Packages: []resolvedPackage{},
		Dependencies: compiler.Dependencies{
			RootDependencies:    m.EntrypointDependencies(),
			LibraryDependencies: m.LibraryDependencies(),
		},
	}
	for _, name := range m.PackageNames() {
		p, _ := m.Package(name)
		d, _ := m.Declaration(name)
		r.Packages = append(r.Packages, resolvedPackage{
			Name:    name,
			Package: p.Name(),
			Kind:    string(p.Kind()),
			Root:    p.RootPath(),
			Source:  d.String(),
		})
	}
	return r
}

func printReport(r resolveReport) {
	printSuccess("Resolved %s", StyleTitle.Render(r.Project))
	printKeyValue("Kind", r.Kind)
	printKeyValue("Root", r.Root)
	printKeyValue("Packages", StyleNumber.Render(fmt.Sprint(len(r.Packages))))
	if len(r.Packages) == 0 {
		return
	}

	printNewline()
	for _, p := range r.Packages {
		line := StyleHighlight.Render(p.Name) + " " + StyleDim.Render(p.Source)
		if slices.Contains(r.RootDependencies, p.Name) {
			line += " " + StyleSuccess.Render("direct")
		}
		fmt.Println(line)
		if children := r.LibraryDependencies[p.Package]; len(children) > 0 {
			printDetail("%s %s", iconArrow, strings.Join(children, ", "))
		}
	}
}
