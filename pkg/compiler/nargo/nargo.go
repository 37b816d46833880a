// Package nargo implements a compiler backend that runs the nargo
// executable.
//
// nargo reads sources straight from the project directory and resolves
// dependencies itself, so the installed source resolver is not consulted.
// The backend runs
//
//	nargo compile [--contracts]
//
// in the project root and loads the JSON artifact nargo writes to target/.
package nargo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/noirforge/pkg/compiler"
	"github.com/matzehuels/noirforge/pkg/core/deps"

	apperr "github.com/matzehuels/noirforge/pkg/errors"
)

// Name is the name the backend registers under.
const Name = "nargo"

// DefaultBinary is the executable looked up on PATH.
const DefaultBinary = "nargo"

// execCommand is replaced in tests.
var execCommand = exec.CommandContext

// Option configures a [Backend].
type Option func(*Backend)

// WithBinary sets the nargo executable. Empty keeps the default.
func WithBinary(path string) Option {
	return func(b *Backend) {
		if path != "" {
			b.binary = path
		}
	}
}

// WithLogger sets the logger. The default is log.Default().
func WithLogger(l *log.Logger) Option {
	return func(b *Backend) {
		if l != nil {
			b.logger = l
		}
	}
}

// Backend runs nargo as a subprocess.
type Backend struct {
	binary string
	logger *log.Logger
}

// New creates a nargo backend.
func New(opts ...Option) *Backend {
	b := &Backend{binary: DefaultBinary, logger: log.Default()}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Register adds the nargo backend to r.
func Register(r *compiler.Registry, opts ...Option) {
	r.Register(Name, func() (compiler.Backend, error) { return New(opts...), nil })
}

// Name returns "nargo".
func (b *Backend) Name() string { return Name }

// InstallSourceResolver is a no-op: nargo reads the project from disk.
func (b *Backend) InstallSourceResolver(compiler.SourceResolver) {}

// Compile runs nargo in the project that owns entryPath (<root>/src/<file>)
// and returns the artifact it produced.
func (b *Backend) Compile(ctx context.Context, entryPath string, isContract bool, _ compiler.Dependencies) (*compiler.Artifact, error) {
	root := filepath.Dir(filepath.Dir(filepath.FromSlash(entryPath)))

	args := []string{"compile"}
	if isContract {
		args = append(args, "--contracts")
	}

	var stdout, stderr bytes.Buffer
	cmd := execCommand(ctx, b.binary, args...)
	cmd.Dir = root
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	b.logger.Debug("running nargo", "binary", b.binary, "args", args, "dir", root)
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, parseDiagnostics(stderr.String())
		}
		if errors.Is(err, exec.ErrNotFound) {
			return nil, apperr.Wrap(apperr.ErrCodeUnsupported, err, "nargo executable %q not found", b.binary)
		}
		return nil, fmt.Errorf("run nargo: %w", err)
	}
	if out := strings.TrimSpace(stdout.String()); out != "" {
		b.logger.Debug("nargo output", "stdout", out)
	}

	pkg, err := packageName(root)
	if err != nil {
		return nil, err
	}
	return readArtifact(filepath.Join(root, "target"), pkg, isContract)
}

// packageName reads the package name from the manifest at root. nargo
// names its artifacts after it.
func packageName(root string) (string, error) {
	data, err := os.ReadFile(filepath.Join(root, deps.ManifestFile))
	if err != nil {
		return "", apperr.Wrap(apperr.ErrCodeManifestNotFound, err, "read %s", deps.ManifestFile)
	}
	m, err := deps.ParseManifest(data)
	if err != nil {
		return "", err
	}
	return m.Package.Name, nil
}

// artifactFor reports whether file is an artifact nargo writes for pkg:
// <pkg>-<Contract>.json for contracts, <pkg>.json for programs.
func artifactFor(file, pkg string, isContract bool) bool {
	if isContract {
		return strings.HasPrefix(file, pkg+"-") && strings.HasSuffix(file, ".json")
	}
	return file == pkg+".json"
}

// targetFile is the union of nargo's contract and program JSON documents.
type targetFile struct {
	Name      string                      `json:"name"`
	Functions []compiler.ContractFunction `json:"functions"`
	ABI       json.RawMessage             `json:"abi"`
	Bytecode  string                      `json:"bytecode"`
}

// readArtifact loads the first artifact of the wanted kind written for pkg
// from dir, in file name order. Artifacts of other packages are ignored.
func readArtifact(dir, pkg string, isContract bool) (*compiler.Artifact, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &compiler.Diagnostics{Message: fmt.Sprintf("nargo produced no artifacts: %v", err)}
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && artifactFor(e.Name(), pkg, isContract) {
			names = append(names, e.Name())
		}
	}
	slices.Sort(names)

	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		var tf targetFile
		if err := json.Unmarshal(data, &tf); err != nil {
			return nil, fmt.Errorf("decode %s: %w", name, err)
		}
		switch {
		case isContract && tf.Functions != nil:
			return &compiler.Artifact{Contract: &compiler.ContractArtifact{Name: tf.Name, Functions: tf.Functions}}, nil
		case !isContract && tf.Functions == nil && tf.Bytecode != "":
			return &compiler.Artifact{Program: &compiler.ProgramArtifact{ABI: tf.ABI, Bytecode: tf.Bytecode}}, nil
		}
	}
	return nil, &compiler.Diagnostics{Message: fmt.Sprintf("nargo produced no artifact for %s in %s", pkg, dir)}
}

var (
	headerPattern   = regexp.MustCompile(`^(error|warning|bug):\s*(.*)$`)
	locationPattern = regexp.MustCompile(`┌─\s*(\S+?):(\d+):(\d+)`)
)

// parseDiagnostics turns nargo's stderr into structured diagnostics. Lines
// that are not part of a recognized report are kept only in the message.
func parseDiagnostics(stderr string) *compiler.Diagnostics {
	out := &compiler.Diagnostics{Message: strings.TrimSpace(stderr)}
	if out.Message == "" {
		out.Message = "nargo compile failed"
	}

	var cur *compiler.Diagnostic
	flush := func() {
		if cur != nil {
			out.Diagnostics = append(out.Diagnostics, *cur)
			cur = nil
		}
	}
	for _, line := range strings.Split(stderr, "\n") {
		line = strings.TrimSpace(line)
		if m := headerPattern.FindStringSubmatch(line); m != nil {
			flush()
			cur = &compiler.Diagnostic{Kind: m[1], Message: m[2]}
			continue
		}
		if cur == nil || cur.File != "" {
			continue
		}
		if m := locationPattern.FindStringSubmatch(line); m != nil {
			cur.File = m[1]
			cur.Line, _ = strconv.Atoi(m[2])
			cur.Column, _ = strconv.Atoi(m[3])
		}
	}
	flush()
	return out
}
