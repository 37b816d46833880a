package integrations

import (
	"errors"
	"net/http"
	"strings"
	"time"
)

const archiveTimeout = 60 * time.Second

// MaxArchiveSize bounds a single archive download.
const MaxArchiveSize = 256 << 20

var (
	// ErrNotFound is returned when a repository, tag or archive doesn't exist.
	ErrNotFound = errors.New("resource not found")

	// ErrNetwork is returned for HTTP failures (timeouts, connection errors, 5xx responses).
	ErrNetwork = errors.New("network error")

	// ErrTooLarge is returned when a response body exceeds the size limit.
	ErrTooLarge = errors.New("response too large")
)

// NewHTTPClient creates an HTTP client with the given timeout. A zero
// timeout selects the archive download default of 60 seconds.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = archiveTimeout
	}
	return &http.Client{Timeout: timeout}
}

var repoURLReplacer = strings.NewReplacer(
	"git@github.com:", "https://github.com/",
	"git://github.com/", "https://github.com/",
	"git@gitlab.com:", "https://gitlab.com/",
	"git://gitlab.com/", "https://gitlab.com/",
)

// NormalizeRepoURL converts various repository URL formats to canonical HTTPS form.
// Handles git@, git://, and git+ prefixes, and removes .git suffixes and
// trailing slashes. Returns empty string if raw is empty.
func NormalizeRepoURL(raw string) string {
	if raw == "" {
		return ""
	}
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "git+")
	s = repoURLReplacer.Replace(s)
	s = strings.TrimSuffix(s, "/")
	return strings.TrimSuffix(s, ".git")
}
