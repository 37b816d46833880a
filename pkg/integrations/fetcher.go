package integrations

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	apperr "github.com/matzehuels/noirforge/pkg/errors"
)

// Fetcher routes archive downloads to a per-host [Client], so each code host
// gets its own authentication headers. Hosts without a registered client
// use the default client.
type Fetcher struct {
	def   *Client
	hosts map[string]*Client
}

// NewFetcher creates a fetcher that falls back to def.
func NewFetcher(def *Client) *Fetcher {
	return &Fetcher{def: def, hosts: make(map[string]*Client)}
}

// Handle registers c for downloads from host. Register all hosts before
// the first call to FetchArchive.
func (f *Fetcher) Handle(host string, c *Client) {
	f.hosts[strings.ToLower(host)] = c
}

// FetchArchive downloads the archive at rawURL through the client
// registered for its host.
func (f *Fetcher) FetchArchive(ctx context.Context, rawURL string) ([]byte, error) {
	if err := apperr.ValidateURL(rawURL); err != nil {
		return nil, err
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse archive url: %w", err)
	}
	c, ok := f.hosts[strings.ToLower(u.Host)]
	if !ok {
		c = f.def
	}
	if c == nil {
		return nil, fmt.Errorf("no client for host %q", u.Host)
	}
	return c.FetchArchive(ctx, rawURL)
}
