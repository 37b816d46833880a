package deps

import (
	"slices"
	"strings"
	"testing"

	apperr "github.com/matzehuels/noirforge/pkg/errors"
)

func TestParseManifest(t *testing.T) {
	data := []byte(`
[package]
name = "token"
type = "contract"
authors = ["someone"]

[dependencies]
zeta = { path = "../zeta" }
aztec = { git = "https://github.com/AztecProtocol/aztec-packages", tag = "v0.1.0", directory = "yarn-project/aztec-nr/aztec" }
alpha = { path = "/abs/alpha" }
`)

	m, err := ParseManifest(data)
	if err != nil {
		t.Fatalf("ParseManifest() error: %v", err)
	}
	if m.Package.Name != "token" || m.Package.Type != KindContract {
		t.Errorf("Package = %+v", m.Package)
	}
	if got, want := m.Names(), []string{"zeta", "aztec", "alpha"}; !slices.Equal(got, want) {
		t.Errorf("Names() = %v, want %v (declaration order)", got, want)
	}
	aztec := m.Dependencies["aztec"]
	if !aztec.IsRemote() || aztec.Tag != "v0.1.0" || aztec.Directory != "yarn-project/aztec-nr/aztec" {
		t.Errorf("aztec = %+v", aztec)
	}
	if !m.Dependencies["zeta"].IsLocal() {
		t.Error("zeta should be local")
	}
}

func TestParseManifestTableSyntax(t *testing.T) {
	data := []byte(`
[package]
name = "app"
type = "bin"

[dependencies.second]
path = "b"

[dependencies.first]
path = "a"
`)
	m, err := ParseManifest(data)
	if err != nil {
		t.Fatalf("ParseManifest() error: %v", err)
	}
	if got := m.Names(); !slices.Equal(got, []string{"second", "first"}) {
		t.Errorf("Names() = %v", got)
	}
}

func TestParseManifestNoDependencies(t *testing.T) {
	m, err := ParseManifest([]byte("[package]\nname = \"lib1\"\ntype = \"library\"\n"))
	if err != nil {
		t.Fatalf("ParseManifest() error: %v", err)
	}
	if m.Package.Type != KindLibrary {
		t.Errorf("Type = %q, want lib", m.Package.Type)
	}
	if len(m.Names()) != 0 {
		t.Errorf("Names() = %v, want empty", m.Names())
	}
}

func TestParseManifestErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"invalid toml", "[package\nname="},
		{"missing type", "[package]\nname = \"x\"\n"},
		{"unknown type", "[package]\nname = \"x\"\ntype = \"plugin\"\n"},
		{"both variants", "[package]\nname = \"x\"\ntype = \"lib\"\n[dependencies]\na = { path = \"a\", git = \"https://github.com/o/r\", tag = \"v1\" }\n"},
		{"neither variant", "[package]\nname = \"x\"\ntype = \"lib\"\n[dependencies]\na = { tag = \"v1\" }\n"},
		{"git without tag", "[package]\nname = \"x\"\ntype = \"lib\"\n[dependencies]\na = { git = \"https://github.com/o/r\" }\n"},
		{"bare string", "[package]\nname = \"x\"\ntype = \"lib\"\n[dependencies]\na = \"1.0\"\n"},
		{"bad name", "[package]\nname = \"x\"\ntype = \"lib\"\n[dependencies]\n\"a/b\" = { path = \"a\" }\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseManifest([]byte(tt.data))
			if !apperr.Is(err, apperr.ErrCodeManifestParseError) {
				t.Errorf("ParseManifest() error = %v, want MANIFEST_PARSE_ERROR", err)
			}
		})
	}
}

func TestParseKind(t *testing.T) {
	tests := map[string]Kind{
		"bin": KindBinary, "binary": KindBinary,
		"lib": KindLibrary, "Library": KindLibrary,
		"contract": KindContract,
	}
	for in, want := range tests {
		got, err := ParseKind(in)
		if err != nil || got != want {
			t.Errorf("ParseKind(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
}

func TestManifestEncodeRoundTrip(t *testing.T) {
	m := Manifest{
		Package: PackageInfo{Name: "lib2", Type: KindLibrary},
		Dependencies: map[string]Dependency{
			"b": {Path: "../b"},
			"a": {Git: "https://github.com/o/r", Tag: "v1", Directory: "sub"},
		},
	}.WithOrder("b", "a")

	data, err := m.Encode()
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}
	if !strings.Contains(string(data), `a = { git = "https://github.com/o/r", tag = "v1", directory = "sub" }`) {
		t.Errorf("Encode() = %s", data)
	}

	back, err := ParseManifest(data)
	if err != nil {
		t.Fatalf("ParseManifest(Encode()) error: %v", err)
	}
	if !slices.Equal(back.Names(), []string{"b", "a"}) {
		t.Errorf("order = %v", back.Names())
	}
	if back.Dependencies["a"] != m.Dependencies["a"] {
		t.Errorf("a = %+v", back.Dependencies["a"])
	}
}

func TestManifestEncodeEscapes(t *testing.T) {
	tests := []struct {
		name string
		dep  Dependency
	}{
		{"control bytes", Dependency{Path: "../lib\x01\x7f"}},
		{"quotes and backslashes", Dependency{Path: `..\"odd"\dir`}},
		{"tab and newline", Dependency{Git: "https://github.com/o/r", Tag: "v1", Directory: "sub\tdir\n"}},
		{"unicode", Dependency{Path: "../bibliothèque"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := Manifest{
				Package:      PackageInfo{Name: "app", Type: KindBinary},
				Dependencies: map[string]Dependency{"dep": tt.dep},
			}.WithOrder("dep")

			data, err := m.Encode()
			if err != nil {
				t.Fatalf("Encode() error: %v", err)
			}
			back, err := ParseManifest(data)
			if err != nil {
				t.Fatalf("ParseManifest(Encode()) error: %v\n%s", err, data)
			}
			if got := back.Dependencies["dep"]; got != tt.dep {
				t.Errorf("round trip = %+v, want %+v", got, tt.dep)
			}
		})
	}
}

func TestManifestEncodeInvalidUTF8(t *testing.T) {
	m := Manifest{
		Package:      PackageInfo{Name: "app", Type: KindBinary},
		Dependencies: map[string]Dependency{"dep": {Path: "../\xff"}},
	}.WithOrder("dep")

	if _, err := m.Encode(); !apperr.Is(err, apperr.ErrCodeInvalidInput) {
		t.Errorf("Encode() error = %v, want INVALID_INPUT", err)
	}
}

func TestDependencyString(t *testing.T) {
	tests := []struct {
		dep  Dependency
		want string
	}{
		{Dependency{Path: "../x"}, "path:../x"},
		{Dependency{Git: "https://github.com/o/r", Tag: "v1"}, "https://github.com/o/r@v1"},
		{Dependency{Git: "https://github.com/o/r", Tag: "v1", Directory: "d"}, "https://github.com/o/r@v1#d"},
	}
	for _, tt := range tests {
		if got := tt.dep.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}
