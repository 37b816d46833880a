// Package github downloads tagged source archives from GitHub.
//
// # Usage
//
//	client := github.NewClient(c, os.Getenv("GITHUB_TOKEN"))
//	data, err := client.Archive(ctx, "noir-lang", "ec", "v0.1.0")
//
// [ArchiveURL] builds the URL without a client, for callers that download
// through an [integrations.Fetcher]:
//
//	https://github.com/{owner}/{repo}/archive/{tag}.zip
//
// # Authentication
//
// A GitHub personal access token is optional but recommended to avoid rate
// limits. It is sent as a bearer token.
//
// # URL Parsing
//
// [ParseRepo] accepts https, git@ and git:// repository URLs, with or
// without a .git suffix or trailing slash.
package github
