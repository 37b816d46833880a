package github

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
const Host = "github.com"

const defaultBaseURL = "https://github.com"

var repoURLPattern = regexp.MustCompile(`^https?://github\.com/([a-zA-Z0-9][a-zA-Z0-9-]{0,38})/([a-zA-Z0-9._-]{1,100}?)(?:\.git)?/?$`)

// Client downloads tagged source archives from GitHub.
// It handles HTTP requests with caching, automatic retries, and optional authentication.
type Client struct {
	*integrations.Client
	baseURL string
}

// NewClient creates a GitHub client backed by c.
// Pass an empty string for token to use unauthenticated requests (lower rate limits).
func NewClient(c cache.Cache, token string) *Client {
	var headers map[string]string
	if token != "" {
		headers = map[string]string{"Authorization": "Bearer " + token}
	}
	return &Client{
		Client:  integrations.NewClient(c, cache.NewScopedKeyer(nil, "github:"), 0, headers),
		baseURL: defaultBaseURL,
	}
}

// ArchiveURL returns the zip archive URL of repository owner/repo at tag.
func ArchiveURL(owner, repo, tag string) string {
	return archiveURL(defaultBaseURL, owner, repo, tag)
}

func archiveURL(base, owner, repo, tag string) string {
	return fmt.Sprintf("%s/%s/%s/archive/%s.zip", base, owner, repo, tag)
}

// Archive downloads the zip archive of owner/repo at tag.
func (c *Client) Archive(ctx context.Context, owner, repo, tag string) ([]byte, error) {
	data, err := c.FetchArchive(ctx, archiveURL(c.baseURL, owner, repo, tag))
	if err != nil {
		if errors.Is(err, integrations.ErrNotFound) {
			return nil, fmt.Errorf("%w: github repo %s/%s@%s", err, owner, repo, tag)
		}
		return nil, err
	}
	return data, nil
}

// ParseRepo extracts owner and repository name from a GitHub repository URL.
// SSH and git:// forms are accepted.
func ParseRepo(rawURL string) (owner, repo string, ok bool) {
	m := repoURLPattern.FindStringSubmatch(integrations.NormalizeRepoURL(rawURL))
	if len(m) < 3 {
		return "", "", false
	}
	repo = strings.TrimSuffix(m[2], ".git")
	if repo == "" || repo == "." || repo == ".." {
		return "", "", false
	}
	return m[1], repo, true
}
