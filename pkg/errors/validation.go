package errors

import (
	"regexp"
	"strings"
	"unicode"
)

// dependencyNameRegex matches names usable as the first segment of a
// virtual module id: no separators, no dots, must start with a letter or underscore.
var dependencyNameRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_-]*$`)

// ValidateDependencyName validates a dependency name declared in a manifest.
//
// Dependency names become the leading segment of the virtual module ids the
// compiler requests ("<name>/foo.nr"), so they may not contain path
// separators or traversal sequences. Maximum length is 256 characters.
func ValidateDependencyName(name string) error {
	if name == "" {
		return New(ErrCodeManifestParseError, "dependency name cannot be empty")
	}

	if len(name) > 256 {
		return New(ErrCodeManifestParseError, "dependency name too long (max 256 characters)")
	}

	if !dependencyNameRegex.MatchString(name) {
		return New(ErrCodeManifestParseError, "invalid dependency name: %q", name)
	}

	return nil
}

// ValidateArchivePath validates a file path found inside a fetched archive.
// It prevents archive entries from escaping the extraction directory.
//
// Validation rules:
//   - Path cannot be empty
//   - Maximum length of 500 characters
//   - No null bytes or control characters
//   - No absolute paths (must be relative)
//   - No path traversal segments (..)
//   - No backslashes (Windows-style paths)
func ValidateArchivePath(path string) error {
	if path == "" {
		return New(ErrCodeArchiveCorrupt, "archive entry path cannot be empty")
	}

	const maxPathLength = 500
	if len(path) > maxPathLength {
		return New(ErrCodeArchiveCorrupt, "archive entry path too long (max %d characters)", maxPathLength)
	}

	for _, r := range path {
		if r == '\x00' || unicode.IsControl(r) {
			return New(ErrCodeArchiveCorrupt, "archive entry path contains invalid characters")
		}
	}

	if strings.HasPrefix(path, "/") {
		return New(ErrCodeArchiveCorrupt, "archive entry path must be relative: %q", path)
	}

	for _, seg := range strings.Split(path, "/") {
		if seg == ".." {
			return New(ErrCodeArchiveCorrupt, "archive entry path cannot contain '..': %q", path)
		}
	}

	if strings.Contains(path, "\\") {
		return New(ErrCodeArchiveCorrupt, "archive entry path cannot contain backslashes: %q", path)
	}

	return nil
}

// ValidateURL validates a URL string for safety.
// It ensures the URL has a safe scheme (http or https).
func ValidateURL(rawURL string) error {
	if rawURL == "" {
		return New(ErrCodeInvalidInput, "URL cannot be empty")
	}

	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		return New(ErrCodeInvalidInput, "URL must use http or https scheme")
	}

	return nil
}
