package compiler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/noirforge/pkg/core/deps"
	"github.com/matzehuels/noirforge/pkg/fm"

	apperr "github.com/matzehuels/noirforge/pkg/errors"
)

// fakeBackend requests a fixed list of module ids through the installed
// resolver and returns a canned result.
type fakeBackend struct {
	requests []string
	artifact *Artifact
	err      error

	resolver   SourceResolver
	served     map[string]string
	entry      string
	isContract bool
	deps       Dependencies
}

func (b *fakeBackend) InstallSourceResolver(fn SourceResolver) { b.resolver = fn }

func (b *fakeBackend) Compile(_ context.Context, entry string, isContract bool, d Dependencies) (*Artifact, error) {
	b.entry, b.isContract, b.deps = entry, isContract, d
	b.served = make(map[string]string)
	for _, id := range b.requests {
		b.served[id] = b.resolver(id)
	}
	return b.artifact, b.err
}

func (b *fakeBackend) Name() string { return "fake" }

func contractArtifact() *Artifact {
	return &Artifact{Contract: &ContractArtifact{
		Name: "TestContract",
		Functions: []ContractFunction{
			{Name: "constructor", FunctionType: "secret", ABI: json.RawMessage(`{"parameters":[]}`), Bytecode: "H4sI"},
		},
	}}
}

func fixtureFiles() *fm.Memory {
	return fm.NewMemory(map[string][]byte{
		"/proj/Nargo.toml": []byte(`[package]
name = "test_contract"
type = "contract"

[dependencies]
lib1 = { path = "../lib1" }
lib2 = { path = "../lib2" }
`),
		"/proj/src/main.nr": []byte("contract TestContract {}"),
		"/lib1/Nargo.toml":  []byte("[package]\nname = \"lib1\"\ntype = \"lib\"\n"),
		"/lib1/src/lib.nr":  []byte("fn one() -> Field { 1 }"),
		"/lib2/Nargo.toml": []byte(`[package]
name = "lib2"
type = "lib"

[dependencies]
lib3 = { path = "../lib3" }
`),
		"/lib2/src/lib.nr": []byte("use dep::lib3;"),
		"/lib3/Nargo.toml": []byte("[package]\nname = \"lib3\"\ntype = \"lib\"\n"),
		"/lib3/src/lib.nr": []byte("fn three() -> Field { 3 }"),
		"/bin/Nargo.toml":  []byte("[package]\nname = \"app\"\ntype = \"bin\"\n"),
		"/bin/src/main.nr": []byte("fn main() {}"),
	})
}

func newTestOrchestrator(t *testing.T, b Backend, files fm.FileManager, logs *bytes.Buffer, opts ...Option) *Orchestrator {
	t.Helper()
	logger := log.New(logs)
	logger.SetLevel(log.DebugLevel)
	opts = append([]Option{
		WithFileManager(files),
		WithResolvers(deps.NewLocalResolver(files)),
		WithLogger(logger),
	}, opts...)
	o, err := NewOrchestrator(b, opts...)
	require.NoError(t, err)
	return o
}

func TestCompileContractProject(t *testing.T) {
	b := &fakeBackend{
		requests: []string{"lib1/lib.nr", "lib2/lib.nr", "lib3/lib.nr", "/proj/src/main.nr", "src/main.nr"},
		artifact: contractArtifact(),
	}
	var logs bytes.Buffer
	o := newTestOrchestrator(t, b, fixtureFiles(), &logs)

	results, err := o.CompileContractProject(context.Background(), "/proj")
	require.NoError(t, err)
	require.Len(t, results, 1)

	r := results[0]
	assert.Equal(t, "TestContract", r.Artifact.Name())
	assert.NotEqual(t, uuid.Nil, r.BuildID)
	assert.Len(t, r.SourceDigest, 16)
	assert.Empty(t, r.MissingSources)

	assert.Equal(t, "/proj/src/main.nr", b.entry)
	assert.True(t, b.isContract)
	assert.Equal(t, []string{"lib1", "lib2"}, b.deps.RootDependencies)
	assert.Equal(t, map[string][]string{"lib2": {"lib3"}}, b.deps.LibraryDependencies)

	assert.Equal(t, "fn one() -> Field { 1 }", b.served["lib1/lib.nr"])
	assert.Equal(t, "fn three() -> Field { 3 }", b.served["lib3/lib.nr"])
	assert.Equal(t, "contract TestContract {}", b.served["/proj/src/main.nr"])
	assert.Equal(t, "contract TestContract {}", b.served["src/main.nr"], "relative ids are read from the project root")
	assert.Contains(t, logs.String(), "lib1, lib2, lib3")
}

func TestCompileMissingSourceServedEmpty(t *testing.T) {
	b := &fakeBackend{
		requests: []string{"lib1/missing.nr", "nowhere/x.nr"},
		artifact: contractArtifact(),
	}
	var logs bytes.Buffer
	o := newTestOrchestrator(t, b, fixtureFiles(), &logs)

	results, err := o.CompileContractProject(context.Background(), "/proj")
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.Equal(t, "", b.served["lib1/missing.nr"])
	assert.Equal(t, "", b.served["nowhere/x.nr"])
	assert.Equal(t, []string{"lib1/missing.nr", "nowhere/x.nr"}, results[0].MissingSources)
	assert.Contains(t, logs.String(), "source not readable")
}

func TestCompileStrictSources(t *testing.T) {
	b := &fakeBackend{requests: []string{"lib1/missing.nr"}, artifact: contractArtifact()}
	var logs bytes.Buffer
	o := newTestOrchestrator(t, b, fixtureFiles(), &logs, WithStrictSources(true))

	results, err := o.CompileContractProject(context.Background(), "/proj")
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Contains(t, logs.String(), "lib1/missing.nr")
}

func TestCompileDiagnosticsYieldEmptyResults(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantLog string
	}{
		{
			name: "diagnostics",
			err: &Diagnostics{
				Message:     "Aborting due to 1 previous error",
				Diagnostics: []Diagnostic{{Message: "unknown variable x", File: "src/main.nr", Span: Span{Start: 10, End: 11}, Kind: "error"}},
			},
			wantLog: "Aborting due to 1 previous error",
		},
		{
			name:    "plain error",
			err:     errors.New("engine crashed"),
			wantLog: "engine crashed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var logs bytes.Buffer
			o := newTestOrchestrator(t, &fakeBackend{err: tt.err}, fixtureFiles(), &logs)

			results, err := o.CompileContractProject(context.Background(), "/proj")
			require.NoError(t, err)
			assert.NotNil(t, results)
			assert.Empty(t, results)
			assert.Contains(t, logs.String(), "error compiling contract")
			assert.Contains(t, logs.String(), tt.wantLog)
		})
	}
}

func TestCompileNoArtifactIsFailure(t *testing.T) {
	var logs bytes.Buffer
	o := newTestOrchestrator(t, &fakeBackend{}, fixtureFiles(), &logs)

	results, err := o.CompileContractProject(context.Background(), "/proj")
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestCompileRejectsRelativePath(t *testing.T) {
	var logs bytes.Buffer
	o := newTestOrchestrator(t, &fakeBackend{}, fixtureFiles(), &logs)

	_, err := o.CompileContractProject(context.Background(), "proj")
	assert.True(t, apperr.Is(err, apperr.ErrCodeInvalidPath), "got %v", err)
}

func TestCompileNotAContractProject(t *testing.T) {
	var logs bytes.Buffer
	b := &fakeBackend{artifact: contractArtifact()}
	o := newTestOrchestrator(t, b, fixtureFiles(), &logs)

	_, err := o.CompileContractProject(context.Background(), "/bin")
	assert.True(t, apperr.Is(err, apperr.ErrCodeNotAContractProject), "got %v", err)
	assert.Empty(t, b.entry, "backend must not run")
}

func TestCompileManifestNotFound(t *testing.T) {
	var logs bytes.Buffer
	o := newTestOrchestrator(t, &fakeBackend{}, fixtureFiles(), &logs)

	_, err := o.CompileContractProject(context.Background(), "/nothing")
	assert.True(t, apperr.Is(err, apperr.ErrCodeManifestNotFound), "got %v", err)
}

func TestCompileResolutionFailurePropagates(t *testing.T) {
	files := fixtureFiles()
	require.NoError(t, files.WriteFile("/proj/Nargo.toml", []byte(`[package]
name = "test_contract"
type = "contract"

[dependencies]
gone = { path = "../gone" }
`)))
	var logs bytes.Buffer
	b := &fakeBackend{artifact: contractArtifact()}
	o := newTestOrchestrator(t, b, files, &logs)

	results, err := o.CompileContractProject(context.Background(), "/proj")
	assert.Nil(t, results)
	assert.True(t, apperr.Is(err, apperr.ErrCodePathNotFound), "got %v", err)
	assert.Empty(t, b.entry, "backend must not run")
}

func TestCompileProgramProject(t *testing.T) {
	b := &fakeBackend{artifact: &Artifact{Program: &ProgramArtifact{ABI: json.RawMessage(`{}`), Bytecode: "H4sI"}}}
	var logs bytes.Buffer
	o := newTestOrchestrator(t, b, fixtureFiles(), &logs)

	results, err := o.CompileProgramProject(context.Background(), "/bin")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.False(t, b.isContract)
	assert.Equal(t, "/bin/src/main.nr", b.entry)
	assert.Equal(t, "main", results[0].Artifact.Name())

	_, err = o.CompileProgramProject(context.Background(), "/proj")
	assert.True(t, apperr.Is(err, apperr.ErrCodeInvalidInput), "got %v", err)
}

func TestSourceDigestIsDeterministic(t *testing.T) {
	digest := func(requests ...string) string {
		b := &fakeBackend{requests: requests, artifact: contractArtifact()}
		var logs bytes.Buffer
		o := newTestOrchestrator(t, b, fixtureFiles(), &logs)
		results, err := o.CompileContractProject(context.Background(), "/proj")
		require.NoError(t, err)
		require.Len(t, results, 1)
		return results[0].SourceDigest
	}

	a := digest("lib1/lib.nr", "lib3/lib.nr")
	b := digest("lib3/lib.nr", "lib1/lib.nr")
	c := digest("lib1/lib.nr")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestOrchestratorResolve(t *testing.T) {
	var logs bytes.Buffer
	o := newTestOrchestrator(t, &fakeBackend{}, fixtureFiles(), &logs)

	m, err := o.Resolve(context.Background(), "/proj")
	require.NoError(t, err)
	assert.Equal(t, []string{"lib1", "lib2", "lib3"}, m.PackageNames())
}

func TestNewOrchestratorRequiresBackend(t *testing.T) {
	_, err := NewOrchestrator(nil)
	assert.True(t, apperr.Is(err, apperr.ErrCodeInvalidInput))
}

func TestNewOrchestratorDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CACHE_HOME", dir)

	o, err := NewOrchestrator(&fakeBackend{})
	require.NoError(t, err)

	disk, ok := o.Files().(*fm.Disk)
	require.True(t, ok, "default file manager should be on disk")
	assert.Equal(t, filepath.Join(dir, CacheDirName), disk.Dir())
	assert.Len(t, o.resolvers, 2)
}

func TestDefaultCacheDir(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", "/tmp/xdg")
	assert.Equal(t, filepath.Join("/tmp/xdg", "noir_wasm"), DefaultCacheDir())

	t.Setenv("XDG_CACHE_HOME", "")
	t.Setenv("HOME", "/home/dev")
	assert.Equal(t, filepath.Join("/home/dev", ".cache", "noir_wasm"), DefaultCacheDir())
}

func TestArtifactJSON(t *testing.T) {
	data, err := json.Marshal(contractArtifact())
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"name": "TestContract",
		"functions": [{"name": "constructor", "function_type": "secret", "abi": {"parameters": []}, "bytecode": "H4sI"}]
	}`, string(data))

	data, err = json.Marshal(&Artifact{Program: &ProgramArtifact{ABI: json.RawMessage(`{"x":1}`), Bytecode: "AA"}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"abi": {"x": 1}, "bytecode": "AA"}`, string(data))
}

func TestDiagnosticsError(t *testing.T) {
	d := &Diagnostics{Message: "failed"}
	assert.Equal(t, "failed", d.Error())

	d.Diagnostics = []Diagnostic{{Message: "a"}, {Message: "b"}}
	assert.Equal(t, "failed (2 diagnostics)", d.Error())

	assert.Equal(t, "error: unknown x (src/main.nr:3:5)",
		Diagnostic{Kind: "error", Message: "unknown x", File: "src/main.nr", Line: 3, Column: 5}.String())
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	_, err := r.New("wasm")
	assert.True(t, apperr.Is(err, apperr.ErrCodeUnsupported))

	r.Register("fake", func() (Backend, error) { return &fakeBackend{}, nil })
	r.Register("alt", func() (Backend, error) { return &fakeBackend{}, nil })
	assert.Equal(t, []string{"alt", "fake"}, r.Names())

	b, err := r.New("fake")
	require.NoError(t, err)
	assert.Equal(t, "fake", backendName(b))
}
