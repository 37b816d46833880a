package deps

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/BurntSushi/toml"

	apperr "github.com/matzehuels/noirforge/pkg/errors"
)

// ManifestFile is the name of the manifest at every package root.
const ManifestFile = "Nargo.toml"

// Kind is the type a package declares in its manifest.
type Kind string

const (
	KindBinary   Kind = "bin"
	KindLibrary  Kind = "lib"
	KindContract Kind = "contract"
)

// ParseKind maps a manifest "type" value to a Kind. Both the short
// spellings ("bin", "lib") and the long ones ("binary", "library") are
// accepted.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "bin", "binary":
		return KindBinary, nil
	case "lib", "library":
		return KindLibrary, nil
	case "contract":
		return KindContract, nil
	}
	return "", apperr.New(apperr.ErrCodeManifestParseError, "unknown package type %q", s)
}

// Dependency is a dependency declaration: either a local path or a remote
// repository pinned to a tag. Exactly one of Path and Git is set.
type Dependency struct {
	// Path is a local directory, relative to the declaring package's root
	// unless absolute.
	Path string `toml:"path,omitempty" json:"path,omitempty"`

	// Git is the repository URL of a remote dependency.
	Git string `toml:"git,omitempty" json:"git,omitempty"`
	// Tag pins the remote dependency to an immutable reference.
	Tag string `toml:"tag,omitempty" json:"tag,omitempty"`
	// Directory optionally selects a sub-directory of the repository as the
	// package root.
	Directory string `toml:"directory,omitempty" json:"directory,omitempty"`
}

// IsLocal reports whether d is a {path} declaration.
func (d Dependency) IsLocal() bool { return d.Path != "" }

// IsRemote reports whether d is a {git, tag} declaration.
func (d Dependency) IsRemote() bool { return d.Git != "" }

func (d Dependency) String() string {
	if d.IsLocal() {
		return "path:" + d.Path
	}
	s := d.Git + "@" + d.Tag
	if d.Directory != "" {
		s += "#" + d.Directory
	}
	return s
}

func (d Dependency) validate(name string) error {
	switch {
	case d.IsLocal() && d.IsRemote():
		return apperr.New(apperr.ErrCodeManifestParseError, "dependency %s: path and git are mutually exclusive", name)
	case d.IsLocal():
		if d.Tag != "" || d.Directory != "" {
			return apperr.New(apperr.ErrCodeManifestParseError, "dependency %s: tag and directory require git", name)
		}
	case d.IsRemote():
		if d.Tag == "" {
			return apperr.New(apperr.ErrCodeManifestParseError, "dependency %s: git dependencies must pin a tag", name)
		}
	default:
		return apperr.New(apperr.ErrCodeManifestParseError, "dependency %s: expected path or git", name)
	}
	return nil
}

// PackageInfo is the [package] table of a manifest.
type PackageInfo struct {
	Name string `toml:"name" json:"name"`
	Type Kind   `toml:"type" json:"type"`
}

// Manifest is a decoded Nargo.toml.
type Manifest struct {
	Package      PackageInfo           `json:"package"`
	Dependencies map[string]Dependency `json:"dependencies"`

	// order holds the dependency names in declaration order.
	order []string
}

// Names returns the dependency names in declaration order. Manifests built
// in code without an explicit order list their dependencies sorted by name.
func (m Manifest) Names() []string {
	if len(m.order) == len(m.Dependencies) {
		return append([]string(nil), m.order...)
	}
	return sortedKeys(m.Dependencies)
}

// WithOrder returns a copy of m whose dependencies are iterated in the given
// order. Names not present in m.Dependencies are ignored.
func (m Manifest) WithOrder(names ...string) Manifest {
	out := m
	out.order = nil
	for _, n := range names {
		if _, ok := m.Dependencies[n]; ok {
			out.order = append(out.order, n)
		}
	}
	return out
}

type rawManifest struct {
	Package struct {
		Name string `toml:"name"`
		Type string `toml:"type"`
	} `toml:"package"`
	Dependencies map[string]Dependency `toml:"dependencies"`
}

// ParseManifest decodes a manifest. Unknown tables and keys are ignored; a
// missing or unknown package type, an invalid dependency name or a
// malformed declaration is a MANIFEST_PARSE_ERROR.
func ParseManifest(data []byte) (Manifest, error) {
	var raw rawManifest
	md, err := toml.NewDecoder(bytes.NewReader(data)).Decode(&raw)
	if err != nil {
		return Manifest{}, apperr.Wrap(apperr.ErrCodeManifestParseError, err, "decode %s", ManifestFile)
	}

	kind, err := ParseKind(raw.Package.Type)
	if err != nil {
		return Manifest{}, err
	}

	m := Manifest{
		Package:      PackageInfo{Name: raw.Package.Name, Type: kind},
		Dependencies: make(map[string]Dependency, len(raw.Dependencies)),
	}

	for _, key := range md.Keys() {
		if len(key) < 2 || key[0] != "dependencies" {
			continue
		}
		name := key[1]
		dep, ok := raw.Dependencies[name]
		if _, seen := m.Dependencies[name]; !ok || seen {
			continue
		}
		if err := apperr.ValidateDependencyName(name); err != nil {
			return Manifest{}, err
		}
		if err := dep.validate(name); err != nil {
			return Manifest{}, err
		}
		m.Dependencies[name] = dep
		m.order = append(m.order, name)
	}

	if len(m.order) != len(raw.Dependencies) {
		return Manifest{}, apperr.New(apperr.ErrCodeManifestParseError, "inconsistent [dependencies] table")
	}
	return m, nil
}

// Encode writes m back out as TOML, dependencies in declaration order.
func (m Manifest) Encode() ([]byte, error) {
	var buf bytes.Buffer
	enc := toml.NewEncoder(&buf)
	if err := enc.Encode(struct {
		Package PackageInfo `toml:"package"`
	}{m.Package}); err != nil {
		return nil, err
	}
	if len(m.Dependencies) == 0 {
		return buf.Bytes(), nil
	}

	buf.WriteString("\n[dependencies]\n")
	for _, name := range m.Names() {
		d := m.Dependencies[name]
		var fields []string
		for _, kv := range [][2]string{{"path", d.Path}, {"git", d.Git}, {"tag", d.Tag}, {"directory", d.Directory}} {
			if kv[1] == "" {
				continue
			}
			v, err := tomlString(kv[1])
			if err != nil {
				return nil, apperr.Wrap(apperr.ErrCodeInvalidInput, err, "dependency %s: %s", name, kv[0])
			}
			fields = append(fields, kv[0]+" = "+v)
		}
		fmt.Fprintf(&buf, "%s = { %s }\n", name, strings.Join(fields, ", "))
	}
	return buf.Bytes(), nil
}

// tomlString renders s as a TOML string value.
func tomlString(s string) (string, error) {
	if !utf8.ValidString(s) {
		return "", fmt.Errorf("%q is not valid UTF-8", s)
	}
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(map[string]string{"v": s}); err != nil {
		return "", err
	}
	return strings.TrimSpace(strings.TrimPrefix(buf.String(), "v = ")), nil
}
