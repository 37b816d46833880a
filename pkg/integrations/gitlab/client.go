package gitlab

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/matzehuels/noirforge/pkg/cache"
	"github.com/matzehuels/noirforge/pkg/integrations"
)

// Host is the code host this package serves.
const Host = "gitlab.com"

const defaultBaseURL = "https://gitlab.com"

// Owners may be nested groups ("group/subgroup").
var repoURLPattern = regexp.MustCompile(`^https?://gitlab\.com/((?:[a-zA-Z0-9_.-]+/)*[a-zA-Z0-9_.-]+)/([a-zA-Z0-9_.-]+)$`)

// Client downloads tagged source archives from GitLab.
//
// All methods are safe for concurrent use by multiple goroutines.
type Client struct {
	*integrations.Client
	baseURL string
}

// NewClient creates a GitLab client with optional authentication.
//
// Parameters:
//   - c: Cache for downloaded archives (use cache.NewNullCache() for no caching)
//   - token: GitLab personal access token (empty string for unauthenticated)
//
// The returned Client is safe for concurrent use.
func NewClient(c cache.Cache, token string) *Client {
	var headers map[string]string
	if token != "" {
		headers = map[string]string{"PRIVATE-TOKEN": token}
	}
	return &Client{
		Client:  integrations.NewClient(c, cache.NewScopedKeyer(nil, "gitlab:"), 0, headers),
		baseURL: defaultBaseURL,
	}
}

// ArchiveURL returns the zip archive URL of repository owner/repo at tag.
// owner may contain subgroups.
func ArchiveURL(owner, repo, tag string) string {
	return archiveURL(defaultBaseURL, owner, repo, tag)
}

func archiveURL(base, owner, repo, tag string) string {
	return fmt.Sprintf("%s/%s/%s/-/archive/%s/%s-%s.zip", base, owner, repo, tag, repo, tag)
}

// Archive downloads the zip archive of owner/repo at tag.
func (c *Client) Archive(ctx context.Context, owner, repo, tag string) ([]byte, error) {
	data, err := c.FetchArchive(ctx, archiveURL(c.baseURL, owner, repo, tag))
	if err != nil {
		if errors.Is(err, integrations.ErrNotFound) {
			return nil, fmt.Errorf("%w: gitlab repo %s/%s@%s", err, owner, repo, tag)
		}
		return nil, err
	}
	return data, nil
}

// ParseRepo extracts the owner (including subgroups) and repository name
// from a GitLab repository URL.
//
// This function is safe for concurrent use.
func ParseRepo(rawURL string) (owner, repo string, ok bool) {
	m := repoURLPattern.FindStringSubmatch(integrations.NormalizeRepoURL(rawURL))
	if len(m) < 3 || strings.Contains(m[1], "/-") {
		return "", "", false
	}
	for _, seg := range append(strings.Split(m[1], "/"), m[2]) {
		if seg == "." || seg == ".." || seg == "-" {
			return "", "", false
		}
	}
	return m[1], m[2], true
}
