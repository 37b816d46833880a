// Package integrations provides the HTTP plumbing used to download source
// archives from code hosts.
//
// # Client
//
// [Client] wraps an http.Client with:
//
//   - a byte cache ([cache.Cache]) consulted before every download
//   - retries with exponential backoff for network errors, 429 and 5xx
//   - default headers (authentication tokens)
//   - a size limit on response bodies
//
// Errors are mapped onto [ErrNotFound] (404) and [ErrNetwork] (everything
// else). Transient failures are wrapped in [httputil.RetryableError].
//
// # Hosts
//
// The github and gitlab subpackages build archive URLs and authenticated
// clients for their hosts. [Fetcher] routes a download to the right client
// by URL host:
//
//	f := integrations.NewFetcher(integrations.NewClient(c, nil, 0, nil))
//	f.Handle(github.Host, github.NewClient(c, os.Getenv("GITHUB_TOKEN")).Client)
//	data, err := f.FetchArchive(ctx, github.ArchiveURL("noir-lang", "ec", "v0.1.0"))
//
// # Observability
//
// Every request is reported to observability.HTTP().
package integrations
