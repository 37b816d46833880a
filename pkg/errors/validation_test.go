package errors

import "testing"

func TestValidateDependencyName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"simple", "lib1", false},
		{"underscore", "aztec_nr", false},
		{"hyphen", "easy-private-state", false},
		{"leading underscore", "_internal", false},
		{"empty", "", true},
		{"slash", "a/b", true},
		{"dot", "a.b", true},
		{"traversal", "..", true},
		{"leading digit", "1lib", true},
		{"space", "my lib", true},
		{"too long", string(make([]byte, 300)), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDependencyName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateDependencyName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil && !Is(err, ErrCodeManifestParseError) {
				t.Errorf("error code = %v, want %v", GetCode(err), ErrCodeManifestParseError)
			}
		})
	}
}

func TestValidateArchivePath(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"file", "Nargo.toml", false},
		{"nested", "src/lib.nr", false},
		{"dots in name", "src/a..b.nr", false},
		{"empty", "", true},
		{"absolute", "/etc/passwd", true},
		{"parent", "../escape.nr", true},
		{"inner parent", "src/../../escape.nr", true},
		{"backslash", "src\\lib.nr", true},
		{"null byte", "src/\x00.nr", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateArchivePath(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateArchivePath(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil && !Is(err, ErrCodeArchiveCorrupt) {
				t.Errorf("error code = %v, want %v", GetCode(err), ErrCodeArchiveCorrupt)
			}
		})
	}
}

func TestValidateURL(t *testing.T) {
	tests := []struct {
		input   string
		wantErr bool
	}{
		{"https://github.com/noir-lang/ec", false},
		{"http://example.com", false},
		{"", true},
		{"git@github.com:noir-lang/ec.git", true},
		{"file:///tmp/x", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			err := ValidateURL(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateURL(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}
