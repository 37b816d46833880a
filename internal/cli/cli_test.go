package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/matzehuels/noirforge/pkg/compiler"
	graphio "github.com/matzehuels/noirforge/pkg/io"

	apperr "github.com/matzehuels/noirforge/pkg/errors"
)

// stubBackend returns a canned artifact and records what it was asked to
// compile.
type stubBackend struct {
	artifact *compiler.Artifact
	err      error

	entry      string
	isContract bool
	deps       compiler.Dependencies
}

func (b *stubBackend) InstallSourceResolver(compiler.SourceResolver) {}

func (b *stubBackend) Compile(_ context.Context, entry string, isContract bool, d compiler.Dependencies) (*compiler.Artifact, error) {
	b.entry, b.isContract, b.deps = entry, isContract, d
	return b.artifact, b.err
}

func newTestCLI(t *testing.T, b *stubBackend) *CLI {
	t.Helper()
	t.Setenv("XDG_CACHE_HOME", t.TempDir())
	t.Setenv(envRedisURL, "")

	c := New(io.Discard, LogInfo)
	c.registry = compiler.NewRegistry()
	c.registry.Register("stub", func() (compiler.Backend, error) { return b, nil })
	return c
}

func execute(t *testing.T, c *CLI, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := c.RootCommand()
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

// workspace lays out a contract project "token" depending on lib1, which
// depends on lib2, and returns the project directory.
func workspace(t *testing.T, kind string) string {
	t.Helper()
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"token/Nargo.toml": "[package]\nname = \"token\"\ntype = \"" + kind + "\"\n\n[dependencies]\nlib1 = { path = \"../lib1\" }\n",
		"token/src/main.nr": "fn main() {}",
		"lib1/Nargo.toml":   "[package]\nname = \"lib1\"\ntype = \"lib\"\n\n[dependencies]\nlib2 = { path = \"../lib2\" }\n",
		"lib1/src/lib.nr":   "use dep::lib2;",
		"lib2/Nargo.toml":   "[package]\nname = \"lib2\"\ntype = \"lib\"\n",
		"lib2/src/lib.nr":   "fn two() -> Field { 2 }",
	})
	return filepath.Join(dir, "token")
}

func tokenArtifact() *compiler.Artifact {
	return &compiler.Artifact{Contract: &compiler.ContractArtifact{
		Name: "Token",
		Functions: []compiler.ContractFunction{
			{Name: "transfer", FunctionType: "open", ABI: json.RawMessage(`{"parameters":[]}`), Bytecode: "H4sI"},
		},
	}}
}

func TestCompileContract(t *testing.T) {
	b := &stubBackend{artifact: tokenArtifact()}
	c := newTestCLI(t, b)
	project := workspace(t, "contract")

	if _, err := execute(t, c, "compile", project, "-c", "stub"); err != nil {
		t.Fatalf("compile error: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(project, "target", "Token.json"))
	if err != nil {
		t.Fatalf("artifact not written: %v", err)
	}
	var got compiler.ContractArtifact
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("decode artifact: %v", err)
	}
	if got.Name != "Token" || len(got.Functions) != 1 {
		t.Errorf("artifact = %+v, want Token with 1 function", got)
	}

	if !b.isContract {
		t.Error("backend should compile a contract")
	}
	if want := filepath.ToSlash(filepath.Join(project, "src", "main.nr")); b.entry != want {
		t.Errorf("entry = %q, want %q", b.entry, want)
	}
	if !slices.Equal(b.deps.RootDependencies, []string{"lib1"}) {
		t.Errorf("root dependencies = %v, want [lib1]", b.deps.RootDependencies)
	}
	if got := b.deps.LibraryDependencies["lib1"]; !slices.Equal(got, []string{"lib2"}) {
		t.Errorf("library dependencies of lib1 = %v, want [lib2]", got)
	}
}

func TestCompileProgramOutdir(t *testing.T) {
	b := &stubBackend{artifact: &compiler.Artifact{Program: &compiler.ProgramArtifact{
		ABI:      json.RawMessage(`{"parameters":[]}`),
		Bytecode: "H4sI",
	}}}
	c := newTestCLI(t, b)
	project := workspace(t, "bin")

	if _, err := execute(t, c, "compile", project, "-c", "stub", "--outdir", "build"); err != nil {
		t.Fatalf("compile error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(project, "build", "main.json")); err != nil {
		t.Errorf("main.json not written: %v", err)
	}
	if b.isContract {
		t.Error("backend should compile a program")
	}
}

func TestCompileFailure(t *testing.T) {
	b := &stubBackend{err: &compiler.Diagnostics{
		Message:     "failed to compile",
		Diagnostics: []compiler.Diagnostic{{Message: "unknown identifier", File: "src/main.nr"}},
	}}
	c := newTestCLI(t, b)
	project := workspace(t, "contract")

	_, err := execute(t, c, "compile", project, "-c", "stub")
	if !errors.Is(err, errCompileFailed) {
		t.Errorf("compile error = %v, want errCompileFailed", err)
	}
	if _, err := os.Stat(filepath.Join(project, "target")); !os.IsNotExist(err) {
		t.Error("no output dir should be created for a failed compilation")
	}
}

func TestCompileRejects(t *testing.T) {
	tests := []struct {
		name string
		kind string
		args []string
		code apperr.Code
	}{
		{"library project", "lib", []string{"-c", "stub"}, apperr.ErrCodeInvalidInput},
		{"unknown compiler", "contract", []string{"-c", "wasm"}, apperr.ErrCodeUnsupported},
		{"typescript wrappers", "contract", []string{"-c", "stub", "--typescript", "ts"}, apperr.ErrCodeUnsupported},
		{"contract interface", "contract", []string{"-c", "stub", "-i", "iface"}, apperr.ErrCodeUnsupported},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestCLI(t, &stubBackend{artifact: tokenArtifact()})
			project := workspace(t, tt.kind)

			args := append([]string{"compile", project}, tt.args...)
			_, err := execute(t, c, args...)
			if !apperr.Is(err, tt.code) {
				t.Errorf("compile error = %v, want %s", err, tt.code)
			}
		})
	}
}

func TestCompileRejectsUnsafeArtifactName(t *testing.T) {
	tests := []string{"../escape", "nested/Token", `..\\Token`, "..", "Tok\x00en"}

	for _, name := range tests {
		t.Run(name, func(t *testing.T) {
			b := &stubBackend{artifact: &compiler.Artifact{Contract: &compiler.ContractArtifact{Name: name}}}
			c := newTestCLI(t, b)
			project := workspace(t, "contract")

			_, err := execute(t, c, "compile", project, "-c", "stub")
			if !apperr.Is(err, apperr.ErrCodeInvalidInput) {
				t.Errorf("compile error = %v, want INVALID_INPUT", err)
			}
			if _, err := os.Stat(filepath.Join(project, "escape.json")); !os.IsNotExist(err) {
				t.Error("artifact written outside the output directory")
			}
		})
	}
}

func TestCompileMissingManifest(t *testing.T) {
	c := newTestCLI(t, &stubBackend{artifact: tokenArtifact()})

	_, err := execute(t, c, "compile", t.TempDir(), "-c", "stub")
	if !apperr.Is(err, apperr.ErrCodeManifestNotFound) {
		t.Errorf("compile error = %v, want %s", err, apperr.ErrCodeManifestNotFound)
	}
}

func TestResolveJSON(t *testing.T) {
	c := newTestCLI(t, &stubBackend{})
	project := workspace(t, "contract")

	out, err := execute(t, c, "resolve", project, "--json")
	if err != nil {
		t.Fatalf("resolve error: %v", err)
	}

	var report resolveReport
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decode report: %v\n%s", err, out)
	}
	if report.Project != "token" || report.Kind != "contract" {
		t.Errorf("project = %s (%s), want token (contract)", report.Project, report.Kind)
	}

	var names []string
	for _, p := range report.Packages {
		names = append(names, p.Name)
		if p.Kind != "lib" {
			t.Errorf("package %s kind = %q, want lib", p.Name, p.Kind)
		}
	}
	if !slices.Equal(names, []string{"lib1", "lib2"}) {
		t.Errorf("packages = %v, want [lib1 lib2]", names)
	}
	if !slices.Equal(report.RootDependencies, []string{"lib1"}) {
		t.Errorf("root_dependencies = %v, want [lib1]", report.RootDependencies)
	}
	if _, ok := report.LibraryDependencies["lib2"]; ok {
		t.Error("lib2 declares nothing and should not appear in library_dependencies")
	}
}

func TestResolveUnresolvedDependency(t *testing.T) {
	c := newTestCLI(t, &stubBackend{})
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"Nargo.toml":  "[package]\nname = \"p\"\ntype = \"bin\"\n\n[dependencies]\nmissing = { path = \"../nowhere\" }\n",
		"src/main.nr": "fn main() {}",
	})

	_, err := execute(t, c, "resolve", dir)
	if err == nil {
		t.Fatal("resolve should fail for a missing local dependency")
	}
}

func TestGraphDOT(t *testing.T) {
	c := newTestCLI(t, &stubBackend{})
	project := workspace(t, "contract")

	out, err := execute(t, c, "graph", project)
	if err != nil {
		t.Fatalf("graph error: %v", err)
	}
	for _, want := range []string{"digraph G {", `"token" -> "lib1";`, `"lib1" -> "lib2";`} {
		if !strings.Contains(out, want) {
			t.Errorf("DOT output missing %q:\n%s", want, out)
		}
	}
}

func TestGraphToFile(t *testing.T) {
	c := newTestCLI(t, &stubBackend{})
	project := workspace(t, "contract")
	target := filepath.Join(t.TempDir(), "deps.dot")

	out, err := execute(t, c, "graph", project, "--detailed", "-o", target)
	if err != nil {
		t.Fatalf("graph error: %v", err)
	}
	if out != "" {
		t.Errorf("graph -o should not write to stdout, got %q", out)
	}
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if !strings.Contains(string(data), "kind: lib") {
		t.Errorf("detailed DOT should carry node metadata:\n%s", data)
	}
}

func TestGraphJSON(t *testing.T) {
	c := newTestCLI(t, &stubBackend{})
	project := workspace(t, "contract")

	out, err := execute(t, c, "graph", project, "--format", "json")
	if err != nil {
		t.Fatalf("graph error: %v", err)
	}
	g, err := graphio.ReadJSON(strings.NewReader(out))
	if err != nil {
		t.Fatalf("decode graph: %v\n%s", err, out)
	}
	if g.NodeCount() != 3 || g.EdgeCount() != 2 {
		t.Errorf("graph has %d nodes, %d edges; want 3, 2", g.NodeCount(), g.EdgeCount())
	}
	if n, ok := g.Node("lib2"); !ok || n.Row != 2 {
		t.Errorf("lib2 should sit at row 2, got %+v", n)
	}
}

func TestGraphUnknownFormat(t *testing.T) {
	c := newTestCLI(t, &stubBackend{})

	_, err := execute(t, c, "graph", workspace(t, "contract"), "--format", "png")
	if !apperr.Is(err, apperr.ErrCodeInvalidInput) {
		t.Errorf("graph error = %v, want %s", err, apperr.ErrCodeInvalidInput)
	}
}

func TestCachePath(t *testing.T) {
	c := newTestCLI(t, &stubBackend{})
	xdg := os.Getenv("XDG_CACHE_HOME")

	out, err := execute(t, c, "cache", "path")
	if err != nil {
		t.Fatalf("cache path error: %v", err)
	}
	want := filepath.Join(xdg, appName) + "\n" + filepath.Join(xdg, compiler.CacheDirName) + "\n"
	if out != want {
		t.Errorf("cache path = %q, want %q", out, want)
	}
}

func TestCompletion(t *testing.T) {
	c := newTestCLI(t, &stubBackend{})

	for _, shell := range []string{"bash", "zsh", "fish", "powershell"} {
		t.Run(shell, func(t *testing.T) {
			out, err := execute(t, c, "completion", shell)
			if err != nil {
				t.Fatalf("completion %s error: %v", shell, err)
			}
			if !strings.Contains(out, appName) {
				t.Errorf("completion %s script does not mention %q", shell, appName)
			}
		})
	}

	if _, err := execute(t, c, "completion", "tcsh"); err == nil {
		t.Error("completion tcsh should fail")
	}
}

func TestVersionFlag(t *testing.T) {
	c := newTestCLI(t, &stubBackend{})

	out, err := execute(t, c, "--version")
	if err != nil {
		t.Fatalf("--version error: %v", err)
	}
	if !strings.HasPrefix(out, appName+" version ") {
		t.Errorf("--version = %q, want prefix %q", out, appName+" version ")
	}
}

func TestPrintError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want []string
	}{
		{
			name: "coded error with cause",
			err:  apperr.Wrap(apperr.ErrCodeFetchFailed, errors.New("status 404"), "fetch ec@v0.1.0"),
			want: []string{"fetch ec@v0.1.0: status 404", "code: FETCH_FAILED"},
		},
		{
			name: "plain error",
			err:  errCompileFailed,
			want: []string{"compilation failed"},
		},
		{
			name: "diagnostics",
			err: &compiler.Diagnostics{Message: "failed to compile", Diagnostics: []compiler.Diagnostic{
				{Kind: "error", Message: "unknown identifier", File: "src/main.nr", Line: 3, Column: 13},
			}},
			want: []string{"failed to compile", "error: unknown identifier (src/main.nr:3:13)"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			PrintError(&buf, tt.err)
			for _, w := range tt.want {
				if !strings.Contains(buf.String(), w) {
					t.Errorf("PrintError() output missing %q:\n%s", w, buf.String())
				}
			}
		})
	}
}
